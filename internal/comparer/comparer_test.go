package comparer

import (
	"cmp"
	"math/rand"
	"slices"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	class int
	key   string
}

func (n *fakeNode) Name() string   { return n.key }
func (n *fakeNode) ClassCode() int { return n.class }
func (n *fakeNode) CompareToImpl(other Node, _ *Comparer) int {
	return cmp.Compare(n.key, other.(*fakeNode).key)
}

func TestCompare_ClassCodeFirst(t *testing.T) {
	c := New()
	a := &fakeNode{class: 1, key: "z"}
	b := &fakeNode{class: 2, key: "a"}

	assert.Negative(t, c.Compare(a, b))
	assert.Positive(t, c.Compare(b, a))
	assert.Zero(t, c.Compare(a, a))
	assert.Negative(t, c.Compare(nil, a))
	assert.Positive(t, c.Compare(a, nil))
}

func TestSortNodes_IndependentOfInputOrder(t *testing.T) {
	c := New()
	var nodes []*fakeNode
	for class := 3; class > 0; class-- {
		for _, key := range []string{"delta", "alpha", "charlie", "bravo"} {
			nodes = append(nodes, &fakeNode{class: class, key: key})
		}
	}

	want := slices.Clone(nodes)
	SortNodes(c, want)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := slices.Clone(nodes)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		SortNodes(c, shuffled)
		if diff := gocmp.Diff(want, shuffled, gocmp.AllowUnexported(fakeNode{})); diff != "" {
			t.Fatalf("order depends on input order (-want +got):\n%s", diff)
		}
	}

	for i := 1; i < len(want); i++ {
		assert.Negative(t, c.Compare(want[i-1], want[i]))
	}
}

func TestCheckUnique(t *testing.T) {
	c := New()
	a := &fakeNode{class: 1, key: "same"}
	b := &fakeNode{class: 1, key: "same"}

	nodes := []*fakeNode{a, b}
	err := CheckUnique(c, nodes)
	var dup *DuplicateNodeError
	require.ErrorAs(t, err, &dup)
	assert.Contains(t, err.Error(), "same")

	assert.NoError(t, CheckUnique(c, []*fakeNode{a, a}))
	assert.Panics(t, func() { SortNodes(c, nodes) })
}
