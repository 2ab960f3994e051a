// Package cmd provides the CLI commands for pickwise.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relops/pickwise/internal/domain"
	"github.com/relops/pickwise/internal/infrastructure/config"
	"github.com/relops/pickwise/internal/usecases"
)

// Logger defines the logging interface used by the commands.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Prompter collects interactive decisions during a pick session.
type Prompter interface {
	// AskDecision asks what to do with the current candidate.
	AskDecision(prompt string) (domain.Decision, error)
}

// Dependencies holds all injectable dependencies for the commands.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func(cfg *config.Config) Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*config.Config, error)

	// ReaderFactory creates a RepositoryReader for the given path.
	ReaderFactory func(path string, log Logger) (domain.RepositoryReader, error)

	// MetadataFactory creates a MetadataSource, or returns nil when the
	// metadata integration is not configured. A nil source is not an error;
	// candidates simply carry no enrichment.
	MetadataFactory func(ctx context.Context, cfg *config.Config, log Logger) (domain.MetadataSource, error)

	// ApplierFactory creates the ApplyDelegate for the given repository path.
	ApplierFactory func(path string, log Logger) domain.ApplyDelegate

	// StoreFactory creates a StateStore for the given snapshot path.
	StoreFactory func(path string) domain.StateStore

	// Prompter collects interactive decisions.
	Prompter Prompter

	// Stdout is the writer for reports and session output.
	Stdout io.Writer

	// Stderr is the writer for warnings and errors.
	Stderr io.Writer
}

// Command-line flags.
var (
	repoPath string
	verbose  bool
)

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for pickwise.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pickwise",
		Short: "Predict and order cherry-picks from trunk onto a release branch",
		Long: `pickwise assists porting merged changesets from trunk onto a long-lived
release branch. It resolves PR numbers to trunk commits, orders them in trunk
order, predicts per-file conflicts without touching the working tree, and can
drive an interactive cherry-pick session.

Examples:
  # Bulk conflict analysis for a batch of PRs
  pickwise analyze release-1.2 --prs 101,104,107

  # Interactive session, auto-applying clean candidates
  pickwise pick release-1.2 --prs 101,104,107 --auto-clean

  # Analyze a repository other than the current directory
  pickwise analyze release-1.2 --prs 101 --repo /path/to/repo`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", ".",
		"Path to the git repository")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(deps))
	rootCmd.AddCommand(newPickCmd(deps))

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles the shared wiring both subcommands need.
type runtime struct {
	cfg    *config.Config
	log    Logger
	reader domain.RepositoryReader
	stdout io.Writer
	stderr io.Writer
}

// setup loads configuration, builds the logger and opens the repository.
func setup(ctx context.Context, deps *Dependencies) (*runtime, error) {
	if deps == nil {
		return nil, errors.New("dependencies not configured")
	}

	cfg, err := deps.ConfigLoader()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := deps.LoggerFactory(cfg)

	reader, err := deps.ReaderFactory(repoPath, log)
	if err != nil {
		log.Error(ctx, "failed to open git repository", err, map[string]interface{}{
			"path": repoPath,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("not a git repository: %s", repoPath)
		}
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		log:    log,
		reader: reader,
		stdout: stdoutOf(deps),
		stderr: stderrOf(deps),
	}, nil
}

// buildBatch resolves and orders the requested candidates against trunk.
func buildBatch(
	ctx context.Context,
	deps *Dependencies,
	rt *runtime,
	trunkRef, targetRef string,
	prSpecs []string,
) (domain.OrderedBatch, []error, error) {
	refs, err := parseCandidateRefs(prSpecs)
	if err != nil {
		return domain.OrderedBatch{}, nil, err
	}
	if len(refs) == 0 {
		return domain.OrderedBatch{}, nil, domain.ErrEmptyBatch
	}

	var metadata domain.MetadataSource
	if deps.MetadataFactory != nil {
		metadata, err = deps.MetadataFactory(ctx, rt.cfg, rt.log)
		if err != nil {
			// Enrichment is optional; a misconfigured integration should
			// not block offline analysis.
			rt.log.Warn(ctx, "metadata source unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			metadata = nil
		}
	}

	indexer := usecases.NewChangesetIndexer(rt.reader, metadata, rt.cfg.SearchWindow, rt.log)
	candidates, warnings, err := indexer.Index(ctx, trunkRef, refs)
	if err != nil {
		return domain.OrderedBatch{}, nil, err
	}

	batch := usecases.NewOrderingEngine().Order(targetRef, candidates)
	return batch, warnings, nil
}

// newPredictor builds the prediction pipeline from configured thresholds.
func newPredictor(rt *runtime) *usecases.ConflictPredictor {
	classifier := usecases.NewComplexityClassifier(usecases.Thresholds{
		ModerateFiles:   rt.cfg.ModerateFiles,
		ModerateRegions: rt.cfg.ModerateRegions,
		ModerateLines:   rt.cfg.ModerateLines,
		ComplexFiles:    rt.cfg.ComplexFiles,
		ComplexRegions:  rt.cfg.ComplexRegions,
		ComplexLines:    rt.cfg.ComplexLines,
	})
	extractor := usecases.NewChangeExtractor(rt.reader, rt.log)
	return usecases.NewConflictPredictor(rt.reader, extractor, classifier, rt.log)
}

// parseCandidateRefs parses --prs values. Each element is a PR number,
// optionally with a recorded commit id ("123" or "123:abc1234"). Elements may
// be comma-separated within a single flag value.
func parseCandidateRefs(specs []string) ([]usecases.CandidateRef, error) {
	var refs []usecases.CandidateRef
	seen := map[int]bool{}
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			numPart, sha, _ := strings.Cut(part, ":")
			number, err := strconv.Atoi(strings.TrimPrefix(numPart, "#"))
			if err != nil || number <= 0 {
				return nil, fmt.Errorf("invalid PR reference %q", part)
			}
			if seen[number] {
				continue
			}
			seen[number] = true
			refs = append(refs, usecases.CandidateRef{Number: number, RecordedSHA: sha})
		}
	}
	return refs, nil
}

func stdoutOf(deps *Dependencies) io.Writer {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return os.Stdout
}

func stderrOf(deps *Dependencies) io.Writer {
	if deps != nil && deps.Stderr != nil {
		return deps.Stderr
	}
	return os.Stderr
}
