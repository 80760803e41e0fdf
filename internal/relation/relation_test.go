package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

var now = calendar.New(100, 1)

func TestSetWritesReciprocal(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Parent, now))

	l, ok := g.Label("a", "b")
	require.True(t, ok)
	assert.Equal(t, Parent, l)

	l, ok = g.Label("b", "a")
	require.True(t, ok)
	assert.Equal(t, Child, l)
}

func TestSetRejectsBadEdges(t *testing.T) {
	g := NewGraph()
	assert.Error(t, g.Set("a", "a", Friend, now))
	assert.ErrorIs(t, g.Set("a", "b", Label("nemesis"), now), ErrUnknownLabel)
	assert.Error(t, g.Set("a", "b", MartialSibling, now), "derived labels are not assertable")
}

func TestLoverEdgeRecordsStamp(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Lover, now))

	s, ok := g.LoverSince("a", "b")
	require.True(t, ok)
	assert.Equal(t, now, s)
	s, ok = g.LoverSince("b", "a")
	require.True(t, ok)
	assert.Equal(t, now, s)

	// Breaking up and re-labeling clears the stamp.
	require.NoError(t, g.Set("a", "b", Enemy, now.Add(12)))
	_, ok = g.LoverSince("a", "b")
	assert.False(t, ok)
}

func TestCancelRespectsInnate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Sibling, now))
	assert.ErrorIs(t, g.Cancel("a", "b", Sibling), ErrInnate)

	require.NoError(t, g.Set("c", "d", Friend, now))
	require.NoError(t, g.Cancel("c", "d", Friend))
	_, ok := g.Label("c", "d")
	assert.False(t, ok)
	_, ok = g.Label("d", "c")
	assert.False(t, ok)

	// Cancelling a missing edge is a no-op.
	assert.NoError(t, g.Cancel("x", "y", Friend))
}

func TestCancelRefusesMismatchedLabel(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Friend, now))
	// The bond changed since the caller last looked; nothing is torn down.
	require.NoError(t, g.Set("a", "b", Lover, now.Add(1)))

	assert.Error(t, g.Cancel("a", "b", Friend))
	l, ok := g.Label("a", "b")
	require.True(t, ok)
	assert.Equal(t, Lover, l)

	require.NoError(t, g.Cancel("a", "b", Lover))
	_, ok = g.Label("a", "b")
	assert.False(t, ok)
}

func TestDerivedSecondDegree(t *testing.T) {
	g := NewGraph()
	// p is parent of a and b; gp is parent of p.
	require.NoError(t, g.Set("a", "p", Parent, now))
	require.NoError(t, g.Set("b", "p", Parent, now))
	require.NoError(t, g.Set("p", "gp", Parent, now))
	// m is master of a and c; gm is master of m.
	require.NoError(t, g.Set("a", "m", Master, now))
	require.NoError(t, g.Set("c", "m", Master, now))
	require.NoError(t, g.Set("m", "gm", Master, now))

	d := g.Derived("a")
	assert.Equal(t, Sibling, d["b"])
	assert.Equal(t, GrandParent, d["gp"])
	assert.Equal(t, MartialSibling, d["c"])
	assert.Equal(t, MartialGrandmaster, d["gm"])

	d = g.Derived("gp")
	assert.Equal(t, GrandChild, d["a"])
	assert.Equal(t, GrandChild, d["b"])

	d = g.Derived("gm")
	assert.Equal(t, MartialGrandchild, d["a"])
	assert.Equal(t, MartialGrandchild, d["c"])
}

func TestDerivedNeverShadowsAsserted(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "p", Parent, now))
	require.NoError(t, g.Set("b", "p", Parent, now))
	// a and b are also asserted sworn siblings; the asserted edge wins.
	require.NoError(t, g.Set("a", "b", SwornSibling, now))

	d := g.Derived("a")
	_, shadowed := d["b"]
	assert.False(t, shadowed)
}

func TestRemoveAllDropsBothSides(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Friend, now))
	require.NoError(t, g.Set("a", "c", Enemy, now))
	g.RemoveAll("a")

	assert.Empty(t, g.EdgesOf("a"))
	assert.Empty(t, g.EdgesOf("b"))
	assert.Empty(t, g.EdgesOf("c"))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Lover, now))
	require.NoError(t, g.Set("a", "c", Friend, now))

	snap := g.Snapshot()
	g2 := NewGraph()
	require.NoError(t, g2.Restore(snap))

	l, ok := g2.Label("b", "a")
	require.True(t, ok)
	assert.Equal(t, Lover, l)
	s, ok := g2.LoverSince("a", "b")
	require.True(t, ok)
	assert.Equal(t, now, s)
}

func TestRestoreRejectsLopsidedSnapshot(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Set("a", "b", Friend, now))

	// One-way edge: the reciprocal is missing.
	err := g.Restore([]Edge{{Owner: "c", Target: "d", Label: Friend}})
	assert.Error(t, err)

	// Wrong reciprocal: parent paired with parent.
	err = g.Restore([]Edge{
		{Owner: "c", Target: "d", Label: Parent},
		{Owner: "d", Target: "c", Label: Parent},
	})
	assert.Error(t, err)

	// A failed restore leaves the graph as it was.
	l, ok := g.Label("a", "b")
	require.True(t, ok)
	assert.Equal(t, Friend, l)
}

func TestPossibleNew(t *testing.T) {
	// Open pair, opposite gender, big level gap upward.
	got := PossibleNew("", 10, 40, true)
	assert.Contains(t, got, Lover)
	assert.Contains(t, got, Master)
	assert.NotContains(t, got, Disciple)
	assert.Contains(t, got, Friend)
	assert.Contains(t, got, Enemy)
	assert.Contains(t, got, SwornSibling)

	// Same gender, gap downward.
	got = PossibleNew("", 40, 10, false)
	assert.NotContains(t, got, Lover)
	assert.NotContains(t, got, Master)
	assert.Contains(t, got, Disciple)

	// Friends can deepen or sour.
	got = PossibleNew(Friend, 10, 12, true)
	assert.Contains(t, got, Lover)
	assert.Contains(t, got, SwornSibling)
	assert.Contains(t, got, Enemy)
	assert.NotContains(t, got, Friend)

	// Bound pairs get nothing.
	assert.Empty(t, PossibleNew(Lover, 10, 10, true))
	assert.Empty(t, PossibleNew(Parent, 10, 50, false))
}
