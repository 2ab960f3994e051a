// Package output provides adapters for writing application output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/relops/pickwise/internal/domain"
)

// Writer renders batches, predictions and session progress to an output
// destination. By default, it writes to stdout.
type Writer struct {
	out io.Writer
}

// NewWriter creates a new Writer that writes to stdout.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteBulkReport renders the bulk analysis table: one row per candidate in
// batch order with its predicted tier and conflict metrics.
func (w *Writer) WriteBulkReport(batch domain.OrderedBatch, preds []domain.ConflictPrediction, warnings []error) error {
	counts := map[domain.Tier]int{}
	unknown := 0
	for _, p := range preds {
		if p.Status == domain.PredictionUnknown {
			unknown++
			continue
		}
		counts[p.Tier]++
	}

	fmt.Fprintf(w.out, "Cherry-pick analysis: %s\n", batch.TargetRef)
	fmt.Fprintf(w.out, "Candidates: %d | clean: %d | simple: %d | moderate: %d | complex: %d",
		batch.Len(), counts[domain.TierClean], counts[domain.TierSimple],
		counts[domain.TierModerate], counts[domain.TierComplex])
	if unknown > 0 {
		fmt.Fprintf(w.out, " | unknown: %d", unknown)
	}
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out)

	fmt.Fprintf(w.out, "%-8s %-10s %-6s %-10s %6s %8s %6s  %s\n",
		"PR", "SHA", "POS", "TIER", "FILES", "REGIONS", "LINES", "TITLE")
	for i, cand := range batch.Items {
		p := preds[i]
		tier := p.Tier.String()
		if p.Status == domain.PredictionUnknown {
			tier = "unknown"
		}
		if p.LowConfidence {
			tier += "*"
		}
		fmt.Fprintf(w.out, "#%-7d %-10s %-6d %-10s %6d %8d %6d  %s\n",
			cand.Number, cand.Commit.ShortID(), cand.TrunkPosition, tier,
			p.FileCount, p.RegionCount, p.LineCount, truncate(cand.DisplayTitle(), 60))
	}

	w.WriteWarnings(warnings)
	return nil
}

// BulkJSON is the JSON document shape of a bulk report.
type BulkJSON struct {
	TargetRef   string           `json:"target_ref"`
	Candidates  int              `json:"candidates"`
	Predictions []PredictionJSON `json:"predictions"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// PredictionJSON is one candidate's prediction in JSON output.
type PredictionJSON struct {
	Number        int                   `json:"pr_number"`
	SHA           string                `json:"sha"`
	TrunkPosition int                   `json:"trunk_position"`
	Title         string                `json:"title,omitempty"`
	Status        string                `json:"status"`
	Tier          string                `json:"tier"`
	LowConfidence bool                  `json:"low_confidence,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	Files         int                   `json:"files"`
	Regions       int                   `json:"regions"`
	Lines         int                   `json:"lines"`
	Conflicts     []domain.FileConflict `json:"conflicts,omitempty"`
}
// WriteBulkJSON renders the bulk analysis as indented JSON for programmatic
// use.
func (w *Writer) WriteBulkJSON(batch domain.OrderedBatch, preds []domain.ConflictPrediction, warnings []error) error {
	doc := BulkJSON{TargetRef: batch.TargetRef, Candidates: batch.Len()}
	for i, cand := range batch.Items {
		p := preds[i]
		status := "ok"
		if p.Status == domain.PredictionUnknown {
			status = "unknown"
		}
		doc.Predictions = append(doc.Predictions, PredictionJSON{
			Number:        cand.Number,
			SHA:           cand.Commit.ID,
			TrunkPosition: cand.TrunkPosition,
			Title:         cand.DisplayTitle(),
			Status:        status,
			Tier:          p.Tier.String(),
			LowConfidence: p.LowConfidence,
			Reason:        p.Reason,
			Files:         p.FileCount,
			Regions:       p.RegionCount,
			Lines:         p.LineCount,
			Conflicts:     p.Files,
		})
	}
	for _, warn := range warnings {
		doc.Warnings = append(doc.Warnings, warn.Error())
	}

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCandidateHeader renders the per-candidate header of the interactive
// session.
func (w *Writer) WriteCandidateHeader(index, total int, cand domain.Candidate) {
	fmt.Fprintf(w.out, "\n(%d/%d) PR #%d  %s\n", index+1, total, cand.Number, cand.Commit.ShortID())
	fmt.Fprintf(w.out, "  %s\n", truncate(cand.DisplayTitle(), 100))
	if cand.HasMetadata && cand.Author != "" {
		fmt.Fprintf(w.out, "  author: %s\n", cand.Author)
	}
}

// WritePrediction renders a compact prediction summary with the top
// conflicting files.
func (w *Writer) WritePrediction(p domain.ConflictPrediction) {
	switch {
	case p.Status == domain.PredictionUnknown:
		fmt.Fprintf(w.out, "  prediction unavailable: %s\n", p.Reason)
		return
	case !p.HasConflicts():
		fmt.Fprintln(w.out, "  no conflicts predicted")
	default:
		note := ""
		if p.LowConfidence {
			note = " (low confidence)"
		}
		fmt.Fprintf(w.out, "  %d file(s), %d region(s), ~%d line(s) -> %s%s\n",
			p.FileCount, p.RegionCount, p.LineCount, p.Tier, note)
		for i, fc := range p.Files {
			if i == 3 {
				fmt.Fprintf(w.out, "    ... and %d more file(s)\n", len(p.Files)-3)
				break
			}
			fmt.Fprintf(w.out, "    %s [%s]: %d region(s), %d line(s) %s\n",
				fc.Path, fc.Kind, len(fc.Regions), fc.Lines, regionRanges(fc))
		}
	}
}

// WriteWarnings lists per-item resolution warnings.
func (w *Writer) WriteWarnings(warnings []error) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w.out, "\n%d candidate(s) could not be resolved:\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(w.out, "  - %s\n", warn.Error())
	}
}

// WriteApplyResult renders the outcome of a delegated apply.
func (w *Writer) WriteApplyResult(result domain.ApplyResult) {
	if result.Success {
		fmt.Fprintln(w.out, "  applied")
		return
	}
	fmt.Fprintf(w.out, "  apply failed: %s\n", result.Message)
	for _, f := range result.ConflictedFiles {
		fmt.Fprintf(w.out, "    conflicted: %s\n", f)
	}
}

// WriteDiff renders raw change content for inspection.
func (w *Writer) WriteDiff(text string) {
	fmt.Fprintln(w.out)
	fmt.Fprint(w.out, text)
	if len(text) > 0 && text[len(text)-1] != '\n' {
		fmt.Fprintln(w.out)
	}
	fmt.Fprintln(w.out)
}

// WriteSessionSummary renders final session progress.
func (w *Writer) WriteSessionSummary(phase domain.SessionPhase, progress domain.Progress) {
	fmt.Fprintf(w.out, "\nsession %s: %d applied, %d skipped, %d remaining\n",
		phase, progress.Applied, progress.Skipped, progress.Remaining)
}

func regionRanges(fc domain.FileConflict) string {
	if len(fc.Regions) == 0 {
		return ""
	}
	s := "(lines "
	for i, r := range fc.Regions {
		if i > 0 {
			s += ", "
		}
		s += r.Range.String()
	}
	return s + ")"
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
