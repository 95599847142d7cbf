package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/specialistvlad/opgraph/internal/metrics"
	"github.com/specialistvlad/opgraph/internal/opgraph"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	loader  config.Loader
	writer  config.Writer
	metrics *metrics.Recorder

	graph *opgraph.Graph
}

// NewApp is the constructor for the main application. The rewritten graph
// goes to outW unless an output path is configured; logs go to logW.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader, writer config.Writer) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:    outW,
		logger:  logger,
		config:  appConfig,
		loader:  loader,
		writer:  writer,
		metrics: metrics.New(),
	}
}

// Graph returns the graph produced by the last Run. This is primarily for
// testing.
func (a *App) Graph() *opgraph.Graph {
	return a.graph
}

// Metrics returns the application's metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
