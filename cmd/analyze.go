package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/relops/pickwise/internal/adapters/output"
	"github.com/relops/pickwise/internal/domain"
	"github.com/relops/pickwise/internal/usecases"
)

// analyze flags.
var (
	analyzePRs      []string
	analyzeTrunk    string
	analyzeJSON     bool
	analyzeStateOut string
)

func newAnalyzeCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <target-branch>",
		Short: "Predict conflicts for a batch of candidates without mutating the repository",
		Long: `analyze resolves the given PR numbers against trunk, orders them in trunk
order and predicts conflicts for every candidate against the current tip of
the target branch.

The report is a point-in-time snapshot: predictions beyond the first
unapplied candidate are approximate, because each applied candidate moves the
target tip the later ones will actually meet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringSliceVarP(&analyzePRs, "prs", "p", nil,
		"PR numbers to analyze (repeatable or comma-separated; \"123\" or \"123:sha\")")
	cmd.Flags().StringVarP(&analyzeTrunk, "trunk", "t", "main",
		"Trunk ref the candidates were merged to")
	cmd.Flags().BoolVar(&analyzeJSON, "json", false,
		"Emit the report as JSON")
	cmd.Flags().StringVar(&analyzeStateOut, "state", "",
		"Path to save the ordered batch snapshot (YAML)")
	_ = cmd.MarkFlagRequired("prs")

	return cmd
}

func runAnalyze(ctx context.Context, deps *Dependencies, targetRef string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := setup(ctx, deps)
	if err != nil {
		return err
	}

	batch, warnings, err := buildBatch(ctx, deps, rt, analyzeTrunk, targetRef, analyzePRs)
	if err != nil {
		return err
	}

	analyzer := usecases.NewBulkAnalyzer(newPredictor(rt), rt.cfg.Workers, rt.log)
	preds, err := analyzer.Analyze(ctx, batch)
	if err != nil {
		return err
	}

	if analyzeStateOut != "" && deps.StoreFactory != nil {
		snap := domain.Snapshot{
			TargetRef: targetRef,
			SavedAt:   time.Now().UTC(),
			Batch:     batch,
			Session:   domain.SessionState{Phase: domain.PhaseReady},
		}
		if err := deps.StoreFactory(analyzeStateOut).Save(ctx, snap); err != nil {
			rt.log.Error(ctx, "failed to save snapshot", err, map[string]interface{}{
				"path": analyzeStateOut,
			})
			return err
		}
		rt.log.Info(ctx, "snapshot saved", map[string]interface{}{
			"path":       analyzeStateOut,
			"candidates": batch.Len(),
		})
	}

	writer := output.NewWriterWithOutput(rt.stdout)
	if analyzeJSON {
		return writer.WriteBulkJSON(batch, preds, warnings)
	}
	return writer.WriteBulkReport(batch, preds, warnings)
}
