package compilation

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/aotgraph/internal/codegen"
	"github.com/specialistvlad/aotgraph/internal/graphexport"
	"github.com/specialistvlad/aotgraph/internal/ilcache"
	"github.com/specialistvlad/aotgraph/internal/nodes"
	"github.com/specialistvlad/aotgraph/internal/objwriter"
	"github.com/specialistvlad/aotgraph/internal/telemetry"
	"github.com/specialistvlad/aotgraph/internal/testutil"
	"github.com/specialistvlad/aotgraph/internal/typesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type bodies map[*typesystem.Method]*ilcache.MethodIL

var input = []byte("MZ app assembly")

func newCompilation(t *testing.T, fx *testutil.Fixture, il bodies, cfg Config, roots ...*typesystem.Method) *Compilation {
	t.Helper()
	c, err := New(cfg, Deps{
		TypeSystem: fx.TS,
		Group:      fx.Group,
		IL:         ilcache.NewStaticProvider(il),
		Input:      input,
		Roots:      []RootProvider{MethodRoots{Methods: roots, Reason: "Test root"}},
	})
	require.NoError(t, err)
	return c
}

func compileTo(t *testing.T, c *Compilation) string {
	t.Helper()
	ctx, _ := testutil.NewLoggerContext(t)
	out := filepath.Join(t.TempDir(), "out.r2r")
	require.NoError(t, c.Compile(ctx, out))
	return out
}

func TestCompile_SingleRoot(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{
		fx.Main: {Instructions: []ilcache.Instruction{
			{Op: ilcache.OpNewObj, Type: fx.Program},
			{Op: ilcache.OpCall, Method: fx.Helper},
		}},
		fx.Helper: {Instructions: []ilcache.Instruction{{Op: ilcache.OpLdToken, Type: fx.Util}}},
	}, Config{Parallelism: 2}, fx.Main)

	out := compileTo(t, c)

	f := c.Factory()
	for _, m := range []*typesystem.Method{fx.Main, fx.Helper} {
		node := f.CompiledMethodNode(m)
		assert.True(t, node.Marked(), "%s is marked", m)
		assert.True(t, node.HasCode(), "%s has code", m)
	}
	constructed, err := f.ConstructedTypeSymbol(fx.Program)
	require.NoError(t, err)
	assert.True(t, constructed.Marked())

	image, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, objwriter.Magic, string(image[:4]))
	assert.True(t, bytes.Contains(image, input), "input component is embedded")

	status := c.Status()
	assert.Equal(t, PhaseDone, status.Phase)
	assert.Equal(t, int64(2), status.Results[codegen.Compiled.String()])
	assert.Equal(t, int64(2), status.Batches, "Helper is discovered from Main's code")
}

func TestCompile_InstantiatingStub(t *testing.T) {
	fx := testutil.NewFixture(t)
	echoString := fx.InstMethod(t, fx.Echo, fx.TS.StringType())
	echoCanon := fx.InstMethod(t, fx.Echo, fx.TS.Canon())
	c := newCompilation(t, fx, bodies{
		fx.Main: {Instructions: []ilcache.Instruction{{Op: ilcache.OpCall, Method: echoString}}},
		fx.Echo: {Instructions: []ilcache.Instruction{{Op: ilcache.OpNewArr, Type: fx.TS.ArrayOf(fx.TS.MethodParameter(0))}}},
	}, Config{}, fx.Main)

	compileTo(t, c)

	f := c.Factory()
	stub, err := f.MethodCallImport(nodes.NewMethodWithToken(echoString, typesystem.ModuleToken{}, nil), false, true)
	require.NoError(t, err)
	assert.True(t, stub.Marked())
	assert.True(t, f.CompiledMethodNode(echoCanon).HasCode())
	assert.False(t, f.CompiledMethodNode(echoString).Marked(), "exact instantiation is not compiled")

	lookup, err := f.GenericLookupHelper(nodes.LookupMethodParam, nodes.FixupNewArray,
		nodes.LookupArgument{Type: fx.TS.ArrayOf(fx.TS.MethodParameter(0))}, nodes.GenericContext{Method: echoCanon})
	require.NoError(t, err)
	assert.True(t, lookup.Marked())
}

func TestCompile_ResolutionFailureKeepsGoing(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{
		fx.Main:   {Instructions: []ilcache.Instruction{{Op: ilcache.OpCall, Method: fx.Helper}}},
		fx.Helper: {Instructions: []ilcache.Instruction{{Op: ilcache.OpNewObj, Type: fx.Broken}}},
	}, Config{}, fx.Main)

	compileTo(t, c)

	f := c.Factory()
	assert.True(t, f.CompiledMethodNode(fx.Main).HasCode())
	helper := f.CompiledMethodNode(fx.Helper)
	assert.True(t, helper.Marked())
	assert.False(t, helper.HasCode())

	fallback, err := f.MethodCallImport(nodes.NewMethodWithToken(fx.Helper, typesystem.ModuleToken{}, nil), false, false)
	require.NoError(t, err)
	assert.True(t, fallback.Marked(), "callers reach the skipped method through a call cell")
	assert.Equal(t, int64(1), c.Status().Results[codegen.SkippedResolutionFailure.String()])
}

func TestCompile_CodegenFailure(t *testing.T) {
	testCases := []struct {
		name      string
		resilient bool
		wantErr   bool
	}{
		{"fatal by default", false, true},
		{"skipped when resilient", true, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fx := testutil.NewFixture(t)
			c := newCompilation(t, fx, bodies{
				fx.Main: {Instructions: []ilcache.Instruction{{Op: ilcache.OpLocalloc}}},
			}, Config{Parallelism: 3, Resilient: tc.resilient}, fx.Main)

			ctx, _ := testutil.NewLoggerContext(t)
			err := c.Compile(ctx, filepath.Join(t.TempDir(), "out.r2r"))
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to compile")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), c.Status().Results[codegen.Failed.String()])
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	run := func(parallelism int, reverseRoots bool) ([]byte, []byte) {
		fx := testutil.NewFixture(t)
		echoString := fx.InstMethod(t, fx.Echo, fx.TS.StringType())
		roots := []*typesystem.Method{fx.Main, fx.Beep, fx.Secure}
		if reverseRoots {
			slices.Reverse(roots)
		}
		c := newCompilation(t, fx, bodies{
			fx.Main: {Instructions: []ilcache.Instruction{
				{Op: ilcache.OpCall, Method: echoString},
				{Op: ilcache.OpCall, Method: fx.Helper},
				{Op: ilcache.OpCall, Method: fx.Call},
				{Op: ilcache.OpLdsflda, Field: fx.Counter},
				{Op: ilcache.OpDelegate, Type: fx.Handler, Method: fx.Helper},
			}},
			fx.Helper: {Instructions: []ilcache.Instruction{{Op: ilcache.OpNewArr, Type: fx.TS.ArrayOf(fx.Int32())}}},
			fx.Echo:   {Instructions: []ilcache.Instruction{{Op: ilcache.OpLdToken, Type: fx.TS.MethodParameter(0)}}},
			fx.Secure: {Instructions: []ilcache.Instruction{{Op: ilcache.OpNewObj, Type: fx.Extern}}},
		}, Config{Parallelism: parallelism, MapFile: true}, roots...)

		out := compileTo(t, c)
		image, err := os.ReadFile(out)
		require.NoError(t, err)
		mapFile, err := os.ReadFile(out + ".map")
		require.NoError(t, err)
		return image, mapFile
	}

	wantImage, wantMap := run(4, false)
	testCases := []struct {
		name         string
		parallelism  int
		reverseRoots bool
	}{
		{"same inputs", 4, false},
		{"roots seeded in reverse order", 4, true},
		{"single worker with reversed roots", 1, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			image, mapFile := run(tc.parallelism, tc.reverseRoots)
			if diff := cmp.Diff(wantImage, image); diff != "" {
				t.Errorf("image differs (-first +this):\n%s", diff)
			}
			if diff := cmp.Diff(string(wantMap), string(mapFile)); diff != "" {
				t.Errorf("map differs (-first +this):\n%s", diff)
			}
		})
	}
}

func TestCompile_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := telemetry.Install(recorder)
	t.Cleanup(func() { require.NoError(t, provider.Shutdown(context.Background())) })

	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{
		fx.Main: {Instructions: []ilcache.Instruction{{Op: ilcache.OpCall, Method: fx.Helper}}},
	}, Config{}, fx.Main)
	compileTo(t, c)

	count := map[string]int{}
	for _, span := range recorder.Ended() {
		count[span.Name()]++
	}
	assert.Equal(t, 1, count[telemetry.SpanComputeGraph])
	assert.Equal(t, int(c.Status().Batches), count[telemetry.SpanCompileBatch])
	assert.Equal(t, 2, count[telemetry.SpanCompileBatch], "Main, then Helper")
	assert.Equal(t, 1, count[telemetry.SpanEmitObject])
}

func TestCompile_FixedPointIsIdempotent(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{
		fx.Main: {Instructions: []ilcache.Instruction{{Op: ilcache.OpCall, Method: fx.Helper}}},
	}, Config{}, fx.Main)
	compileTo(t, c)

	marked := c.analyzer.MarkedCount()
	ctx, _ := testutil.NewLoggerContext(t)
	require.NoError(t, c.analyzer.ComputeMarkedNodes(ctx))
	assert.Equal(t, marked, c.analyzer.MarkedCount())
}

func TestCompile_OneContextPerWorker(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{fx.Main: {}}, Config{Parallelism: 5}, fx.Main)

	before := codegen.ContextsCreated()
	compileTo(t, c)
	assert.Equal(t, before+5, codegen.ContextsCreated())
}

func TestNew_Roots(t *testing.T) {
	fx := testutil.NewFixture(t)

	t.Run("type root", func(t *testing.T) {
		c, err := New(Config{}, Deps{TypeSystem: fx.TS, Group: fx.Group, IL: ilcache.NewStaticProvider(nil), Roots: []RootProvider{typeRoot{fx.Util}}})
		require.NoError(t, err)
		sym, err := c.Factory().ConstructedTypeSymbol(fx.Util)
		require.NoError(t, err)
		assert.True(t, sym.Marked())
	})

	t.Run("unloadable root is fatal", func(t *testing.T) {
		_, err := New(Config{}, Deps{TypeSystem: fx.TS, Group: fx.Group, IL: ilcache.NewStaticProvider(nil),
			Roots: []RootProvider{MethodRoots{Methods: []*typesystem.Method{fx.Run}, Reason: "Test root"}}})
		var tse *typesystem.TypeSystemError
		require.ErrorAs(t, err, &tse)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := New(Config{}, Deps{})
		require.Error(t, err)
	})

	t.Run("roots canonicalize", func(t *testing.T) {
		echoString := fx.InstMethod(t, fx.Echo, fx.TS.StringType())
		c, err := New(Config{}, Deps{TypeSystem: fx.TS, Group: fx.Group, IL: ilcache.NewStaticProvider(nil),
			Roots: []RootProvider{MethodRoots{Methods: []*typesystem.Method{echoString}, Reason: "Test root"}}})
		require.NoError(t, err)
		assert.True(t, c.Factory().CompiledMethodNode(fx.InstMethod(t, fx.Echo, fx.TS.Canon())).Marked())
	})
}

type typeRoot struct{ t *typesystem.Type }

func (r typeRoot) AddCompilationRoots(s *RootingService) error {
	return s.AddTypeRoot(r.t, "Test type root")
}

func TestComputeDependencies_RenewsILCache(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{fx.Echo: {}}, Config{})

	arg := fx.Int32()
	for range ilcache.Threshold + 1 {
		_, err := c.GetMethodIL(fx.InstMethod(t, fx.Echo, arg))
		require.NoError(t, err)
		arg = fx.TS.ArrayOf(arg)
	}
	require.Greater(t, c.ILCacheLen(), ilcache.Threshold)

	ctx, _ := testutil.NewLoggerContext(t)
	require.NoError(t, c.computeDependencies(ctx, nil))
	assert.Zero(t, c.ILCacheLen())
}

type recordingExporter struct{ got graphexport.Graph }

func (e *recordingExporter) Export(_ context.Context, g graphexport.Graph) error {
	e.got = g
	return nil
}

func TestDependencyLogAndExport(t *testing.T) {
	fx := testutil.NewFixture(t)
	c := newCompilation(t, fx, bodies{
		fx.Main: {Instructions: []ilcache.Instruction{{Op: ilcache.OpCall, Method: fx.Helper}}},
	}, Config{TrackEdges: true}, fx.Main)
	compileTo(t, c)

	logPath := filepath.Join(t.TempDir(), "deps.dgml")
	require.NoError(t, c.WriteDependencyLog(logPath))
	dgml, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(dgml), "DirectedGraph")
	assert.Contains(t, string(dgml), "Test root")

	exporter := &recordingExporter{}
	ctx, _ := testutil.NewLoggerContext(t)
	require.NoError(t, c.ExportDependencyGraph(ctx, exporter))
	require.NotEmpty(t, exporter.got.Nodes)
	assert.Equal(t, "Roots", exporter.got.Nodes[0].Name)
	assert.Len(t, exporter.got.Nodes, c.analyzer.MarkedCount()+1)

	var fromRoot []string
	for _, e := range exporter.got.Edges {
		if e.From == 0 {
			fromRoot = append(fromRoot, exporter.got.Nodes[e.To].Kind)
		}
	}
	assert.Contains(t, fromRoot, "MethodCodeNode")
	assert.Contains(t, fromRoot, "ImportSection")
}
