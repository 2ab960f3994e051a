package cmd

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/relops/pickwise/internal/domain"
)

// SurveyPrompter collects decisions from the terminal.
type SurveyPrompter struct{}

// NewSurveyPrompter creates the production Prompter.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{}
}

// AskDecision presents the per-candidate decision menu.
func (p *SurveyPrompter) AskDecision(message string) (domain.Decision, error) {
	prompt := &survey.Select{
		Message: message,
		Options: []string{
			"Apply - cherry-pick this candidate now",
			"Show diff - inspect the change first",
			"Skip - leave it out and move on",
			"Abort - stop the session here",
		},
	}
	var choice string
	if err := survey.AskOne(prompt, &choice); err != nil {
		return domain.DecideAbort, fmt.Errorf("canceled")
	}

	switch {
	case strings.HasPrefix(choice, "Apply"):
		return domain.DecideProceed, nil
	case strings.HasPrefix(choice, "Show diff"):
		return domain.DecideInspect, nil
	case strings.HasPrefix(choice, "Skip"):
		return domain.DecideSkip, nil
	default:
		return domain.DecideAbort, nil
	}
}
