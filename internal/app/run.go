package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/aotgraph/internal/compilation"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/graphexport"
	"github.com/specialistvlad/aotgraph/internal/manifest"
	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/telemetry"
)

// Run loads the input, compiles it and writes the image and diagnostics.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	cfg := a.config
	a.logger.Debug("App.Run method started.")

	a.startHealthcheckServer()
	defer a.closeHealthcheckServer()

	if cfg.TracePath != "" {
		stop, traceErr := a.startTracing(cfg.TracePath)
		if traceErr != nil {
			return traceErr
		}
		defer func() {
			if stopErr := stop(); err == nil {
				err = stopErr
			}
		}()
	}

	asm, err := manifest.LoadFile(ctx, cfg.InputPath)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}
	group, err := asm.ModuleGroup(modulegroup.WithInstrumentedModules(cfg.InstrumentedModules...))
	if err != nil {
		return fmt.Errorf("failed to build module group: %w", err)
	}

	c, err := compilation.New(compilation.Config{
		Parallelism: cfg.Parallelism,
		Resilient:   cfg.Resilient,
		Verbose:     cfg.Verbose,
		MapFile:     cfg.MapFile,
		TrackEdges:  cfg.DependencyLogPath != "" || cfg.Neo4jURI != "",
	}, compilation.Deps{
		TypeSystem: asm.TypeSystem,
		Group:      group,
		IL:         asm.IL(),
		Input:      asm.Input,
		Roots:      []compilation.RootProvider{asm},
	})
	if err != nil {
		return fmt.Errorf("failed to set up compilation: %w", err)
	}
	a.setCompilation(c)

	a.logger.Info("Starting compilation.", "input", cfg.InputPath, "parallelism", cfg.Parallelism)
	if err := c.Compile(ctx, cfg.OutputPath); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	if cfg.DependencyLogPath != "" {
		if err := c.WriteDependencyLog(cfg.DependencyLogPath); err != nil {
			return fmt.Errorf("failed to write dependency log: %w", err)
		}
		a.logger.Info("Dependency log written.", "path", cfg.DependencyLogPath)
	}

	if cfg.Neo4jURI != "" {
		if err := a.exportGraph(ctx, c); err != nil {
			return err
		}
	}

	a.logger.Info("Compilation finished.", "output", cfg.OutputPath, "status", c.Status())
	return nil
}

// startTracing exports every span of the run to path. The returned func
// flushes the spans and closes the file.
func (a *App) startTracing(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	provider, err := telemetry.InstallJSON(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.logger.Debug("Tracing enabled.", "path", path)
	return func() error {
		shutdownErr := provider.Shutdown(context.WithoutCancel(a.ctx))
		if err := f.Close(); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("failed to close trace file: %w", err)
		}
		return shutdownErr
	}, nil
}

func (a *App) exportGraph(ctx context.Context, c *compilation.Compilation) error {
	cfg := a.config
	exporter, err := graphexport.NewNeo4jExporter(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		return err
	}
	defer exporter.Close(ctx)
	if err := c.ExportDependencyGraph(ctx, exporter); err != nil {
		return fmt.Errorf("failed to export dependency graph: %w", err)
	}
	return nil
}
