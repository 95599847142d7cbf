package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/specialistvlad/opgraph/internal/builder"
	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/rewrite"
	"github.com/specialistvlad/opgraph/internal/rules"
)

// Run loads the configured files, builds the graph, applies every rule as a
// separate pass and writes the result.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	if a.config.MetricsPath != "" {
		defer func() {
			if werr := a.metrics.WriteFile(a.config.MetricsPath); werr != nil {
				a.logger.Error("Failed to write metrics.", "error", werr)
				if err == nil {
					err = werr
				}
			}
		}()
	}

	paths := append(append([]string{}, a.config.GraphPaths...), a.config.RulePaths...)
	model, err := a.loader.Load(ctx, paths...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Debug("Configuration loaded and translated into unified model.")

	g, err := builder.Build(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to build operator graph: %w", err)
	}
	nodes, vars := g.Len()
	a.metrics.ObserveGraph("input", nodes, vars)
	a.graph = g

	if a.config.ValidateOnly {
		a.logger.Info("Graph is valid.", "nodes", nodes, "variables", vars, "rules", len(model.Rules))
		return nil
	}

	compiled, err := rules.Compile(model.Rules, model.Kinds)
	if err != nil {
		return fmt.Errorf("failed to compile rules: %w", err)
	}

	g, err = a.applyRules(ctx, g, compiled)
	if err != nil {
		return err
	}
	nodes, vars = g.Len()
	a.metrics.ObserveGraph("output", nodes, vars)
	a.graph = g

	if err := a.write(ctx, g); err != nil {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// applyRules runs each rule as one rewrite pass over the previous pass's
// result.
func (a *App) applyRules(ctx context.Context, g *opgraph.Graph, compiled []*rules.Rule) (*opgraph.Graph, error) {
	if len(compiled) == 0 {
		a.logger.Warn("No rules found, graph is written unchanged.")
		return g, nil
	}
	for _, r := range compiled {
		ruleCtx := ctxlog.WithLogger(ctx, a.logger.With("rule", r.Name))
		start := time.Now()
		next, res, err := rewrite.ReplaceWithStats(ruleCtx, g, r.Matcher, r.Processor)
		a.metrics.ObserveRule(r.Name, res, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("rule %q failed: %w", r.Name, err)
		}
		a.logger.Info("Rule applied.", "rule", r.Name, "matched", res.Matched, "applied", res.Applied, "skipped", res.Skipped)
		g = next
	}
	return g, nil
}

func (a *App) write(ctx context.Context, g *opgraph.Graph) error {
	model, err := builder.Export(g)
	if err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	if a.config.OutputPath == "" || a.config.OutputPath == "-" {
		return a.writer.Write(ctx, a.outW, model)
	}
	return writeFile(ctx, a.config.OutputPath, a.writer, model)
}

func writeFile(ctx context.Context, path string, w config.Writer, model *config.Model) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()
	if err := w.Write(ctx, f, model); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Rewritten graph written.", "path", path)
	return nil
}
