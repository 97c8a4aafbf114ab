// Package compilation drives a run: it roots the graph, compiles methods in
// parallel as the graph discovers them and hands the marked nodes to the
// object writer.
package compilation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/specialistvlad/aotgraph/internal/codegen"
	"github.com/specialistvlad/aotgraph/internal/ctxlog"
	"github.com/specialistvlad/aotgraph/internal/depgraph"
	"github.com/specialistvlad/aotgraph/internal/graphexport"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/modulegroup"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/objwriter"
	"github.com/specialistvlad/aotgraph/internal/telemetry"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"go.opentelemetry.io/otel/attribute"
)

// GraphExporter receives the marked graph after a run.
type GraphExporter interface {
	Export(ctx context.Context, g graphexport.Graph) error
}

// Compilation is one run over a module group.
type Compilation struct {
	cfg      Config
	ts       *typesystem.Context
	group    *modulegroup.Group
	factory  *nodes.Factory
	analyzer *depgraph.Analyzer[*nodes.Factory]
	backend  codegen.Backend
	il       atomic.Pointer[ilcache.Cache]
	input    []byte

	// jobs is live only while Compile runs.
	jobs chan job

	phase   atomic.Value // Phase
	batches atomic.Int64
	results [codegen.Failed + 1]atomic.Int64
}

// New builds the graph, registers the compile routine and collects roots.
func New(cfg Config, deps Deps) (*Compilation, error) {
	if deps.TypeSystem == nil || deps.Group == nil || deps.IL == nil {
		return nil, errors.New("compilation needs a type system, a module group and an IL provider")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	backend := deps.Backend
	if backend == nil {
		backend = codegen.ReferenceBackend{}
	}

	c := &Compilation{
		cfg:     cfg,
		ts:      deps.TypeSystem,
		group:   deps.Group,
		factory: nodes.NewFactory(deps.TypeSystem, deps.Group),
		backend: backend,
		input:   deps.Input,
	}
	c.il.Store(ilcache.New(deps.IL, deps.Group))
	c.phase.Store(PhaseRooting)
	c.analyzer = depgraph.NewAnalyzer(c.factory, depgraph.Options{TrackEdges: cfg.TrackEdges})
	c.analyzer.SetComputeDependencyRoutine(c.computeDependencies)

	for _, s := range c.factory.ImportSections() {
		c.analyzer.AddRoot(s, "Import section")
	}
	rooting := &RootingService{c: c}
	for _, p := range deps.Roots {
		if err := p.AddCompilationRoots(rooting); err != nil {
			return nil, err
		}
	}
	c.phase.Store(PhaseIdle)
	return c, nil
}

func (c *Compilation) Factory() *nodes.Factory { return c.factory }

func (c *Compilation) TypeSystem() *typesystem.Context { return c.ts }

// GetMethodIL returns m's body from the current IL cache.
func (c *Compilation) GetMethodIL(m *typesystem.Method) (*ilcache.MethodIL, error) {
	return c.il.Load().GetMethodIL(m)
}

// CanInline applies the module group's inlining policy.
func (c *Compilation) CanInline(caller, callee *typesystem.Method) bool {
	return c.group.CanInline(caller, callee)
}

func (c *Compilation) IsModuleInstrumented(m *typesystem.Module) bool {
	return c.group.IsModuleInstrumented(m)
}

// ILCacheLen reports the entries of the current IL cache.
func (c *Compilation) ILCacheLen() int { return c.il.Load().Len() }

// MarkedNodes returns the marked nodes in mark order.
func (c *Compilation) MarkedNodes() []nodes.Node { return c.analyzer.MarkedNodeList() }

// Compile computes the graph and writes the image to outputPath.
func (c *Compilation) Compile(ctx context.Context, outputPath string) (err error) {
	logger := ctxlog.FromContext(ctx)

	if err := c.computeGraph(ctx); err != nil {
		return err
	}
	c.factory.SetMarkingComplete()
	logger.Info("Dependency graph computed.",
		"marked", c.analyzer.MarkedCount(),
		"batches", c.batches.Load(),
		"compiled", c.results[codegen.Compiled].Load(),
	)

	c.phase.Store(PhaseEmitting)
	ctx, span := telemetry.Start(ctx, telemetry.SpanEmitObject, attribute.String("output", outputPath))
	defer func() { telemetry.End(span, err) }()

	w := objwriter.New(c.factory)
	if err := w.WriteFile(ctx, outputPath, c.input, c.analyzer.MarkedNodeList(), objwriter.Options{MapFile: c.cfg.MapFile}); err != nil {
		return err
	}
	c.phase.Store(PhaseDone)
	return nil
}

// WriteDependencyLog writes the graph as DGML. Edges are present only when
// the compilation tracks them.
func (c *Compilation) WriteDependencyLog(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dependency log: %w", err)
	}
	if err := depgraph.WriteDGML(f, c.analyzer); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportDependencyGraph hands the marked graph to exporter.
func (c *Compilation) ExportDependencyGraph(ctx context.Context, exporter GraphExporter) (err error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanExportGraph)
	defer func() { telemetry.End(span, err) }()
	return exporter.Export(ctx, c.Graph())
}

// Graph converts the marked nodes and recorded edges for export.
func (c *Compilation) Graph() graphexport.Graph {
	marked := c.analyzer.MarkedNodeList()
	ids := make(map[nodes.Node]int, len(marked))
	g := graphexport.Graph{Nodes: []graphexport.Node{{ID: 0, Name: "Roots", Kind: "Roots"}}}
	for i, n := range marked {
		ids[n] = i + 1
		g.Nodes = append(g.Nodes, graphexport.Node{ID: i + 1, Name: n.Name(), Kind: nodeKind(n)})
	}
	for _, e := range c.analyzer.Edges() {
		from := 0
		if e.From != nil {
			from = ids[e.From]
		}
		g.Edges = append(g.Edges, graphexport.Edge{From: from, To: ids[e.To], Reason: e.Reason})
	}
	return g
}

func nodeKind(n nodes.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*nodes.")
}
