// Package config provides configuration loading for the pickwise
// application. All settings come from environment variables with sensible
// defaults; only the GitHub integration is optional.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	// EnvLogLevel is the log level (debug, info, warn, error).
	EnvLogLevel = "PICKWISE_LOG_LEVEL"

	// EnvLogFile is an optional path for rotated file logging. When unset,
	// logs go to stderr.
	EnvLogFile = "PICKWISE_LOG_FILE"

	// EnvGitHubToken is the token used for GitHub API metadata lookups.
	EnvGitHubToken = "GITHUB_TOKEN"

	// EnvGitHubRepo is the "owner/repo" slug used for GitHub API metadata
	// lookups. Metadata enrichment is disabled when unset.
	EnvGitHubRepo = "PICKWISE_GITHUB_REPO"

	// EnvSearchWindow bounds how many trunk commits are walked when
	// resolving PR numbers to commits.
	EnvSearchWindow = "PICKWISE_SEARCH_WINDOW"

	// EnvWorkers sets the bulk analysis concurrency.
	EnvWorkers = "PICKWISE_WORKERS"

	// Complexity classification cutoffs.
	EnvModerateFiles   = "PICKWISE_MODERATE_FILES"
	EnvModerateRegions = "PICKWISE_MODERATE_REGIONS"
	EnvModerateLines   = "PICKWISE_MODERATE_LINES"
	EnvComplexFiles    = "PICKWISE_COMPLEX_FILES"
	EnvComplexRegions  = "PICKWISE_COMPLEX_REGIONS"
	EnvComplexLines    = "PICKWISE_COMPLEX_LINES"
)

// Default values.
const (
	DefaultLogLevel     = "info"
	DefaultLogAppName   = "pickwise"
	DefaultSearchWindow = 5000
	DefaultWorkers      = 4

	DefaultModerateFiles   = 3
	DefaultModerateRegions = 5
	DefaultModerateLines   = 20
	DefaultComplexFiles    = 10
	DefaultComplexRegions  = 10
	DefaultComplexLines    = 100
)

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string

	// LogFile is an optional rotated log file path.
	LogFile string

	// GitHubToken authenticates GitHub API metadata lookups.
	GitHubToken string

	// GitHubRepo is the "owner/repo" slug for metadata lookups. Empty
	// disables enrichment.
	GitHubRepo string

	// SearchWindow bounds the trunk history walk during PR resolution.
	SearchWindow int

	// Workers is the bulk analysis concurrency.
	Workers int

	// Classification cutoffs. A candidate reaching any complex cutoff is
	// complex; any moderate cutoff, moderate.
	ModerateFiles   int
	ModerateRegions int
	ModerateLines   int
	ComplexFiles    int
	ComplexRegions  int
	ComplexLines    int
}

// Load loads the application configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:    getEnvDefault(EnvLogLevel, DefaultLogLevel),
		LogAppName:  DefaultLogAppName,
		LogFile:     os.Getenv(EnvLogFile),
		GitHubToken: os.Getenv(EnvGitHubToken),
		GitHubRepo:  os.Getenv(EnvGitHubRepo),
	}

	if cfg.GitHubRepo != "" && !strings.Contains(cfg.GitHubRepo, "/") {
		return nil, fmt.Errorf("%s must be in owner/repo form, got %q", EnvGitHubRepo, cfg.GitHubRepo)
	}

	var err error
	if cfg.SearchWindow, err = getEnvInt(EnvSearchWindow, DefaultSearchWindow); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt(EnvWorkers, DefaultWorkers); err != nil {
		return nil, err
	}
	if cfg.ModerateFiles, err = getEnvInt(EnvModerateFiles, DefaultModerateFiles); err != nil {
		return nil, err
	}
	if cfg.ModerateRegions, err = getEnvInt(EnvModerateRegions, DefaultModerateRegions); err != nil {
		return nil, err
	}
	if cfg.ModerateLines, err = getEnvInt(EnvModerateLines, DefaultModerateLines); err != nil {
		return nil, err
	}
	if cfg.ComplexFiles, err = getEnvInt(EnvComplexFiles, DefaultComplexFiles); err != nil {
		return nil, err
	}
	if cfg.ComplexRegions, err = getEnvInt(EnvComplexRegions, DefaultComplexRegions); err != nil {
		return nil, err
	}
	if cfg.ComplexLines, err = getEnvInt(EnvComplexLines, DefaultComplexLines); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
