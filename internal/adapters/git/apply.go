package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/relops/pickwise/internal/domain"
)

// ExecApplier implements domain.ApplyDelegate by shelling out to the git
// binary. go-git has no cherry-pick, and the operation mutates the working
// tree anyway, so the real git is the honest tool for it.
type ExecApplier struct {
	path   string
	logger Logger
}

// NewExecApplier creates an applier operating on the repository at path.
func NewExecApplier(path string, log Logger) *ExecApplier {
	return &ExecApplier{path: path, logger: log}
}

// Apply cherry-picks the commit onto targetRef. The working tree must have
// targetRef checked out; applying to a different branch than the one checked
// out would silently put commits in the wrong place, so that is refused. A
// conflicting or otherwise failed cherry-pick is reported in the result, not
// as an error.
func (a *ExecApplier) Apply(ctx context.Context, commitID, targetRef string) (domain.ApplyResult, error) {
	current, err := a.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return domain.ApplyResult{}, fmt.Errorf("failed to determine current branch: %w", err)
	}
	if current != targetRef {
		return domain.ApplyResult{}, fmt.Errorf("current branch is %q but target is %q; check out the target branch first", current, targetRef)
	}

	out, err := a.run(ctx, "cherry-pick", "-x", commitID)
	if err == nil {
		a.logger.Debug(ctx, "cherry-pick succeeded", map[string]interface{}{
			"commit": short(commitID),
			"target": targetRef,
		})
		return domain.ApplyResult{Success: true, Message: out}, nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	conflict := strings.Contains(lower, "conflict") ||
		strings.Contains(lower, "could not apply") ||
		strings.Contains(lower, "failed to apply")

	result := domain.ApplyResult{Conflict: conflict, Message: msg}
	if conflict {
		if files, ferr := a.run(ctx, "diff", "--name-only", "--diff-filter=U"); ferr == nil && files != "" {
			result.ConflictedFiles = strings.Split(files, "\n")
		}
	}

	a.logger.Warn(ctx, "cherry-pick failed", map[string]interface{}{
		"commit":           short(commitID),
		"target":           targetRef,
		"conflict":         conflict,
		"conflicted_files": result.ConflictedFiles,
	})
	return result, nil
}

// AbortInProgress aborts a half-applied cherry-pick, restoring the working
// tree.
func (a *ExecApplier) AbortInProgress(ctx context.Context) error {
	if _, err := a.run(ctx, "cherry-pick", "--abort"); err != nil {
		return fmt.Errorf("failed to abort cherry-pick: %w", err)
	}
	return nil
}

// run executes git with the given arguments in the repository directory,
// returning trimmed combined output. Failures carry the output as the error
// message.
func (a *ExecApplier) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.path
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text != "" {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), text)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return text, nil
}
