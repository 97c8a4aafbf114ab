package depgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFactory hands out nodes by name so dependencies can be created lazily,
// the same way real nodes ask their factory during expansion.
type testFactory struct {
	nodes map[string]*testNode
	edges map[string][]string
	// needsCode lists nodes whose dependencies become available only after
	// they went through the batch routine.
	needsCode map[string]bool
	marked    []string
}

func newTestFactory(edges map[string][]string, needsCode ...string) *testFactory {
	f := &testFactory{nodes: map[string]*testNode{}, edges: edges, needsCode: map[string]bool{}}
	for _, n := range needsCode {
		f.needsCode[n] = true
	}
	return f
}

func (f *testFactory) get(name string) *testNode {
	if n, ok := f.nodes[name]; ok {
		return n
	}
	n := &testNode{name: name, computed: !f.needsCode[name]}
	f.nodes[name] = n
	return n
}

type testNode struct {
	NodeCore
	name     string
	computed bool
	expanded int
}

func (n *testNode) Name() string                        { return n.name }
func (n *testNode) StaticDependenciesAreComputed() bool { return n.computed }
func (n *testNode) GetStaticDependencies(f *testFactory) DependencyList[*testFactory] {
	n.expanded++
	var deps DependencyList[*testFactory]
	for _, target := range f.edges[n.name] {
		deps.Add(f.get(target), "uses "+target)
	}
	return deps
}
func (n *testNode) OnMarked(f *testFactory) { f.marked = append(f.marked, n.name) }

func names(list []Node[*testFactory]) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Name())
	}
	return out
}

func TestComputeMarkedNodes_FixedPoint(t *testing.T) {
	f := newTestFactory(map[string][]string{
		"root": {"a", "b"},
		"a":    {"c"},
		"b":    {"c", "d"},
		"d":    {"root"},
	})
	a := NewAnalyzer(f, Options{})
	a.AddRoot(f.get("root"), "test root")

	require.NoError(t, a.ComputeMarkedNodes(context.Background()))
	assert.ElementsMatch(t, []string{"root", "a", "b", "c", "d"}, names(a.MarkedNodeList()))
	assert.Equal(t, 5, a.MarkedCount())
	assert.ElementsMatch(t, []string{"root", "a", "b", "c", "d"}, f.marked, "OnMarked fires once per node")

	for _, n := range f.nodes {
		assert.Equal(t, 1, n.expanded, "node %s expanded more than once", n.name)
	}
	assert.Zero(t, a.Batches())
}

func TestComputeMarkedNodes_Idempotent(t *testing.T) {
	f := newTestFactory(map[string][]string{"root": {"m1"}, "m1": {"sig"}}, "m1")
	a := NewAnalyzer(f, Options{})
	a.SetComputeDependencyRoutine(func(ctx context.Context, batch []Node[*testFactory]) error {
		for _, n := range batch {
			n.(*testNode).computed = true
		}
		return nil
	})
	a.AddRoot(f.get("root"), "test root")

	require.NoError(t, a.ComputeMarkedNodes(context.Background()))
	first := names(a.MarkedNodeList())

	require.NoError(t, a.ComputeMarkedNodes(context.Background()))
	assert.Equal(t, first, names(a.MarkedNodeList()))
	assert.Equal(t, 1, a.Batches())
}

func TestComputeMarkedNodes_BatchesDeferredNodes(t *testing.T) {
	f := newTestFactory(map[string][]string{
		"root": {"m1", "m2"},
		"m1":   {"m3", "sig1"},
		"m2":   {"sig2"},
	}, "m1", "m2", "m3")

	var batches [][]string
	a := NewAnalyzer(f, Options{})
	a.SetComputeDependencyRoutine(func(ctx context.Context, batch []Node[*testFactory]) error {
		batches = append(batches, names(batch))
		for _, n := range batch {
			n.(*testNode).computed = true
		}
		return nil
	})
	a.AddRoot(f.get("root"), "test root")

	require.NoError(t, a.ComputeMarkedNodes(context.Background()))
	require.Len(t, batches, 2)
	assert.ElementsMatch(t, []string{"m1", "m2"}, batches[0], "both methods arrive in one batch")
	assert.Equal(t, []string{"m3"}, batches[1])
	assert.ElementsMatch(t, []string{"root", "m1", "m2", "m3", "sig1", "sig2"}, names(a.MarkedNodeList()))
}

func TestComputeMarkedNodes_Errors(t *testing.T) {
	t.Run("routine failure is fatal", func(t *testing.T) {
		f := newTestFactory(map[string][]string{"root": {"m"}}, "m")
		a := NewAnalyzer(f, Options{})
		boom := errors.New("boom")
		a.SetComputeDependencyRoutine(func(context.Context, []Node[*testFactory]) error { return boom })
		a.AddRoot(f.get("root"), "root")
		err := a.ComputeMarkedNodes(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing routine", func(t *testing.T) {
		f := newTestFactory(nil, "m")
		a := NewAnalyzer(f, Options{})
		a.AddRoot(f.get("m"), "root")
		assert.ErrorIs(t, a.ComputeMarkedNodes(context.Background()), ErrNoRoutine)
	})

	t.Run("routine leaves node uncomputed", func(t *testing.T) {
		f := newTestFactory(nil, "m")
		a := NewAnalyzer(f, Options{})
		a.SetComputeDependencyRoutine(func(context.Context, []Node[*testFactory]) error { return nil })
		a.AddRoot(f.get("m"), "root")
		assert.ErrorContains(t, a.ComputeMarkedNodes(context.Background()), "still has no dependencies")
	})

	t.Run("nil dependency panics", func(t *testing.T) {
		f := newTestFactory(nil)
		a := NewAnalyzer(f, Options{})
		assert.Panics(t, func() { a.AddRoot(nil, "root") })
	})
}

func TestWriteDGML(t *testing.T) {
	f := newTestFactory(map[string][]string{"root": {"leaf"}})
	a := NewAnalyzer(f, Options{TrackEdges: true})
	a.AddRoot(f.get("root"), "entrypoint")
	require.NoError(t, a.ComputeMarkedNodes(context.Background()))

	require.Len(t, a.Roots(), 1)
	assert.Len(t, a.Edges(), 2)

	var buf bytes.Buffer
	require.NoError(t, WriteDGML(&buf, a))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<DirectedGraph xmlns="http://schemas.microsoft.com/vs/2009/dgml">`)
	assert.Contains(t, out, `<Node Id="1" Label="root"></Node>`)
	assert.Contains(t, out, `<Link Source="0" Target="1" Reason="entrypoint"></Link>`)
	assert.Contains(t, out, fmt.Sprintf(`<Link Source="1" Target="2" Reason="%s"></Link>`, "uses leaf"))
}
