package compilation

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/aotgraph/internal/codegen"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// job is one method of a batch. The worker calls done.Done when the node's
// code, or its absence, is committed.
type job struct {
	node *nodes.MethodCodeNode
	done *sync.WaitGroup
}

// computeGraph runs the mark loop with a pool of workers serving the
// compile batches. Each worker owns one codegen context for its lifetime.
func (c *Compilation) computeGraph(ctx context.Context) (err error) {
	c.phase.Store(PhaseComputing)
	ctx, span := telemetry.Start(ctx, telemetry.SpanComputeGraph, attribute.Int("parallelism", c.cfg.Parallelism))
	defer func() { telemetry.End(span, err) }()

	g, gctx := errgroup.WithContext(ctx)
	c.jobs = make(chan job)
	for i := range c.cfg.Parallelism {
		cg := codegen.NewContext(c, i)
		g.Go(func() error {
			return c.worker(gctx, cg)
		})
	}

	markErr := c.analyzer.ComputeMarkedNodes(gctx)
	close(c.jobs)
	if err := g.Wait(); err != nil {
		return err
	}
	if markErr != nil {
		return fmt.Errorf("failed to compute dependency graph: %w", markErr)
	}
	return nil
}

// worker compiles methods until the job channel closes.
func (c *Compilation) worker(ctx context.Context, cg *codegen.Context) error {
	logger := ctxlog.FromContext(ctx).With("workerID", cg.WorkerID())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Worker started.")

	for j := range c.jobs {
		err := c.compileMethod(ctx, cg, j.node)
		j.done.Done()
		if err != nil {
			logger.Error("Method compilation failed.", "method", j.node.Method().String(), "error", err)
			return err
		}
	}
	logger.Debug("Worker finished.", "compiled", cg.Compiled())
	return nil
}

// computeDependencies is the analyzer's batch routine. It returns once every
// node of the batch has committed its outcome.
func (c *Compilation) computeDependencies(ctx context.Context, batch []nodes.Node) (err error) {
	n := c.batches.Add(1)
	ctx, span := telemetry.Start(ctx, telemetry.SpanCompileBatch,
		attribute.Int64("batch", n), attribute.Int("size", len(batch)))
	defer func() { telemetry.End(span, err) }()

	var wg sync.WaitGroup
	for _, node := range batch {
		code, ok := node.(*nodes.MethodCodeNode)
		if !ok {
			wg.Wait()
			return fmt.Errorf("node %s cannot be computed by the compile routine", node.Name())
		}
		wg.Add(1)
		select {
		case c.jobs <- job{node: code, done: &wg}:
		case <-ctx.Done():
			wg.Done()
			wg.Wait()
			return ctx.Err()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	if cache := c.il.Load(); cache.Len() > ilcache.Threshold {
		ctxlog.FromContext(ctx).Debug("Renewing IL cache.", "entries", cache.Len())
		c.il.Store(cache.Renew())
	}
	return nil
}

// compileMethod runs the backend on one method and commits the outcome.
// Only a failure outside resilient mode is returned.
func (c *Compilation) compileMethod(ctx context.Context, cg *codegen.Context, node *nodes.MethodCodeNode) error {
	m := node.Method()
	logger := ctxlog.FromContext(ctx).With("method", m.String())
	if c.cfg.Verbose {
		logger.Info("Compiling method.")
	}

	data, err := c.backend.CompileMethod(ctxlog.WithLogger(ctx, logger), cg, m)
	kind := codegen.Classify(err)
	c.results[kind].Add(1)

	switch kind {
	case codegen.Compiled:
		node.SetCode(data)
		return nil
	case codegen.SkippedResolutionFailure:
		logger.Warn("Method skipped because a type system entity could not be resolved.", "error", err)
	case codegen.SkippedRequiresRuntimeJit:
		logger.Info("Method left to the runtime JIT.", "reason", err)
	case codegen.Failed:
		if !c.cfg.Resilient {
			return fmt.Errorf("failed to compile %s: %w", m, err)
		}
		logger.Warn("Method failed to compile; continuing in resilient mode.", "error", err)
	}
	node.SetUncompiled()
	return nil
}
