// Package main is the entry point for the pickwise CLI application.
// pickwise predicts cherry-pick conflicts, orders candidate batches in trunk
// order and drives interactive apply sessions onto a release branch.
package main

import (
	"context"
	"os"

	"github.com/relops/pickwise/cmd"
	"github.com/relops/pickwise/internal/adapters/git"
	"github.com/relops/pickwise/internal/adapters/githubapi"
	logadapter "github.com/relops/pickwise/internal/adapters/logger"
	"github.com/relops/pickwise/internal/adapters/store"
	"github.com/relops/pickwise/internal/domain"
	"github.com/relops/pickwise/internal/infrastructure/config"
)

func main() {
	cmd.SetDefaultDependencies(buildDependencies())
	cmd.Execute()
}

// buildDependencies wires the production adapters behind the cmd interfaces.
func buildDependencies() *cmd.Dependencies {
	return &cmd.Dependencies{
		LoggerFactory: func(cfg *config.Config) cmd.Logger {
			return logadapter.New(logadapter.Options{
				Level:    cfg.LogLevel,
				AppName:  cfg.LogAppName,
				FilePath: cfg.LogFile,
			})
		},

		ConfigLoader: config.Load,

		ReaderFactory: func(path string, log cmd.Logger) (domain.RepositoryReader, error) {
			return git.NewGoGitReader(path, log)
		},

		MetadataFactory: func(ctx context.Context, cfg *config.Config, _ cmd.Logger) (domain.MetadataSource, error) {
			if cfg.GitHubRepo == "" {
				return nil, nil
			}
			return githubapi.NewClient(ctx, cfg.GitHubRepo, cfg.GitHubToken)
		},

		ApplierFactory: func(path string, log cmd.Logger) domain.ApplyDelegate {
			return git.NewExecApplier(path, log)
		},

		StoreFactory: func(path string) domain.StateStore {
			return store.NewYAMLStore(path)
		},

		Prompter: cmd.NewSurveyPrompter(),

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
