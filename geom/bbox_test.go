package geom

import "testing"

import "github.com/stretchr/testify/require"

func box(minx, miny, maxx, maxy float64) BBox {
	return NewBBox([]float64{minx, miny}, []float64{maxx, maxy})
}

func TestIntersectsAndDisjoint(t *testing.T) {
	a := box(0, 0, 2, 2)
	b := box(1, 1, 3, 3)
	c := box(5, 5, 6, 6)

	require.True(t, a.Intersects(b))
	require.False(t, a.Intersects(c))
	require.True(t, a.Disjoint(c))
	require.False(t, a.Disjoint(b))
}

func TestContainsAndInside(t *testing.T) {
	outer := box(0, 0, 10, 10)
	inner := box(2, 2, 4, 4)

	require.True(t, outer.Contains(inner))
	require.True(t, inner.Inside(outer))
	require.False(t, outer.Inside(inner))
}

func TestCoveredByBoundaryTouch(t *testing.T) {
	outer := box(0, 0, 10, 10)
	edge := box(0, 0, 5, 5)

	require.True(t, edge.CoveredBy(outer))
	require.False(t, edge.Inside(outer))
}

func TestEqualWithinEpsilon(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(0, 0, 1+Epsilon/2, 1)

	require.True(t, a.Equal(b))
}

func TestUnionAndExpand(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(2, 2, 3, 3)

	u := a.Union(b)
	require.Equal(t, []float64{0, 0}, u.Min)
	require.Equal(t, []float64{3, 3}, u.Max)

	a.ExpandToInclude(b)
	require.Equal(t, u, a)
}

func TestEnlargementArea(t *testing.T) {
	a := box(0, 0, 2, 2)
	b := box(1, 1, 3, 3)

	// union area 3*3=9, a area 4, enlargement 5
	require.InDelta(t, 5.0, a.EnlargementArea(b), 1e-9)
}

func TestOverlapVsMeet(t *testing.T) {
	a := box(0, 0, 2, 2)
	touching := box(2, 0, 4, 2)
	overlapping := box(1, 1, 3, 3)

	require.True(t, a.Meet(touching))
	require.False(t, a.Overlap(touching))
	require.True(t, a.Overlap(overlapping))
	require.False(t, a.Meet(overlapping))
}

func TestPredicateEval(t *testing.T) {
	q := box(0, 0, 5, 5)
	c := box(1, 1, 2, 2)

	require.True(t, Intersects.Eval(q, c))
	require.True(t, Contains.Eval(q, c))
	require.False(t, Disjoint.Eval(q, c))
}
