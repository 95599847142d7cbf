package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPaths []string // hcl graph files or directories
	RulePaths  []string // hcl rule files or directories

	OutputPath   string // rewritten graph; empty or "-" writes to the app's output writer
	MetricsPath  string // Prometheus textfile; empty disables
	ValidateOnly bool

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.GraphPaths) == 0 {
		return nil, errors.New("at least one graph path is required")
	}
	if cfg.ValidateOnly && cfg.OutputPath != "" {
		return nil, errors.New("an output path cannot be combined with validate-only")
	}
	return &cfg, nil
}
