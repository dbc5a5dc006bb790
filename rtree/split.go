package rtree

import (
	"math"
	"sort"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// SplitType selects the partitioning strategy Split uses, spec.md §4.5.
type SplitType int

const (
	SplitExponential SplitType = iota
	SplitQuadratic
	SplitLinear
	SplitGreene
	SplitAngTan
	SplitRStar
)

func (s SplitType) String() string {
	switch s {
	case SplitQuadratic:
		return "quadratic"
	case SplitLinear:
		return "linear"
	case SplitGreene:
		return "greene"
	case SplitAngTan:
		return "ang-tan"
	case SplitRStar:
		return "rstar"
	default:
		return "exponential"
	}
}

// splitResult is the two node entry-groups a split produces.
type splitResult struct {
	group1 []codec.Entry
	group2 []codec.Entry
}

// SplitEntries exposes the partitioning step for callers outside this
// package that need to grow a root from two entry groups without driving a
// full Tree (the FOR-tree core's root-growth-on-MergeBack path).
func SplitEntries(cfg Config, height int, entries []codec.Entry, parentBBox geom.BBox) (group1, group2 []codec.Entry) {
	res := split(cfg, height, entries, parentBBox)
	return res.group1, res.group2
}

// split partitions entries (already including the overflowing addition)
// into two groups, each respecting min, using the configured strategy.
func split(cfg Config, height int, entries []codec.Entry, parentBBox geom.BBox) splitResult {
	m := cfg.minFor(height)
	switch cfg.SplitType {
	case SplitQuadratic:
		return splitQuadratic(entries, m)
	case SplitLinear:
		return splitLinear(entries, m)
	case SplitGreene:
		return splitGreene(entries, m)
	case SplitAngTan:
		return splitAngTan(entries, m, parentBBox)
	case SplitRStar:
		return splitRStar(entries, m)
	default: // SplitExponential
		return splitExponential(entries, m)
	}
}

func unionAll(es []codec.Entry) geom.BBox {
	b := es[0].BBox.Clone()
	for _, e := range es[1:] {
		b.ExpandToInclude(e.BBox)
	}
	return b
}

// assignRemainder distributes the entries not yet placed, honoring the
// hard-coded under-flow rule (spec.md §4.5): once one side hits m, force
// everything else to the other side if the light side would otherwise fall
// short of m.
func assignRemainder(pickNext func(g1, g2 []codec.Entry, remaining []codec.Entry) (codec.Entry, bool), g1, g2 []codec.Entry, remaining []codec.Entry, m int) ([]codec.Entry, []codec.Entry) {
	for len(remaining) > 0 {
		if len(g1)+len(remaining) == m {
			g1 = append(g1, remaining...)
			return g1, g2
		}
		if len(g2)+len(remaining) == m {
			g2 = append(g2, remaining...)
			return g1, g2
		}
		e, toFirst := pickNext(g1, g2, remaining)
		idx := indexOfEntry(remaining, e)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		if toFirst {
			g1 = append(g1, e)
		} else {
			g2 = append(g2, e)
		}
	}
	return g1, g2
}

func indexOfEntry(es []codec.Entry, target codec.Entry) int {
	for i, e := range es {
		if e.Pointer == target.Pointer && e.BBox.Dim() == target.BBox.Dim() {
			same := true
			for d := 0; d < e.BBox.Dim(); d++ {
				if e.BBox.Min[d] != target.BBox.Min[d] || e.BBox.Max[d] != target.BBox.Max[d] {
					same = false
					break
				}
			}
			if same {
				return i
			}
		}
	}
	return 0
}

// splitQuadratic implements the quadratic-cost algorithm: pick-seeds
// maximizes wasted area, pick-next maximizes the absolute enlargement
// difference between the two groups.
func splitQuadratic(entries []codec.Entry, m int) splitResult {
	i, j := quadraticSeeds(entries)
	g1 := []codec.Entry{entries[i]}
	g2 := []codec.Entry{entries[j]}
	remaining := removeIndices(entries, i, j)

	g1, g2 = assignRemainder(func(a, b, rem []codec.Entry) (codec.Entry, bool) {
		ba, bb := unionAll(a), unionAll(b)
		bestIdx := 0
		bestDiff := math.Inf(-1)
		toFirst := true
		for idx, e := range rem {
			d1 := ba.EnlargementArea(e.BBox)
			d2 := bb.EnlargementArea(e.BBox)
			diff := math.Abs(d1 - d2)
			if diff > bestDiff {
				bestDiff = diff
				bestIdx = idx
				toFirst = d1 < d2 || (d1 == d2 && ba.Area() < bb.Area())
			}
		}
		return rem[bestIdx], toFirst
	}, g1, g2, remaining, m)

	return splitResult{group1: g1, group2: g2}
}

func quadraticSeeds(entries []codec.Entry) (int, int) {
	bestI, bestJ := 0, 1
	bestWaste := math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			u := entries[i].BBox.Clone()
			u.ExpandToInclude(entries[j].BBox)
			waste := u.Area() - entries[i].BBox.Area() - entries[j].BBox.Area()
			if waste > bestWaste {
				bestWaste = waste
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

func removeIndices(entries []codec.Entry, i, j int) []codec.Entry {
	out := make([]codec.Entry, 0, len(entries)-2)
	for k, e := range entries {
		if k == i || k == j {
			continue
		}
		out = append(out, e)
	}
	return out
}

// splitLinear implements the linear-cost algorithm: pick-seeds maximizes
// normalized separation along any single axis; pick-next takes entries in
// arbitrary (array) order.
func splitLinear(entries []codec.Entry, m int) splitResult {
	dim := entries[0].BBox.Dim()
	bestI, bestJ := 0, 1
	bestNorm := math.Inf(-1)
	overallBBox := unionAll(entries)

	for d := 0; d < dim; d++ {
		lowI, highI := 0, 0
		for i := 1; i < len(entries); i++ {
			if entries[i].BBox.Min[d] > entries[lowI].BBox.Min[d] {
				lowI = i
			}
			if entries[i].BBox.Max[d] < entries[highI].BBox.Max[d] {
				highI = i
			}
		}
		width := overallBBox.Max[d] - overallBBox.Min[d]
		if width <= 0 {
			continue
		}
		separation := (entries[lowI].BBox.Min[d] - entries[highI].BBox.Max[d]) / width
		if lowI != highI && separation > bestNorm {
			bestNorm = separation
			bestI, bestJ = lowI, highI
		}
	}
	if bestI == bestJ {
		bestI, bestJ = 0, 1 // deterministic fallback: rectangles all overlap
	}

	g1 := []codec.Entry{entries[bestI]}
	g2 := []codec.Entry{entries[bestJ]}
	remaining := removeIndices(entries, bestI, bestJ)

	g1, g2 = assignRemainder(func(a, b, rem []codec.Entry) (codec.Entry, bool) {
		ba, bb := unionAll(a), unionAll(b)
		e := rem[0]
		return e, ba.EnlargementArea(e.BBox) <= bb.EnlargementArea(e.BBox)
	}, g1, g2, remaining, m)

	return splitResult{group1: g1, group2: g2}
}

// splitGreene picks the axis of greatest normalized seed separation, sorts
// on the lower coordinate along it, and splits at the midpoint.
func splitGreene(entries []codec.Entry, m int) splitResult {
	dim := entries[0].BBox.Dim()
	overallBBox := unionAll(entries)
	bestAxis := 0
	bestSep := math.Inf(-1)

	for d := 0; d < dim; d++ {
		lowI, highI := 0, 0
		for i := 1; i < len(entries); i++ {
			if entries[i].BBox.Min[d] > entries[lowI].BBox.Min[d] {
				lowI = i
			}
			if entries[i].BBox.Max[d] < entries[highI].BBox.Max[d] {
				highI = i
			}
		}
		width := overallBBox.Max[d] - overallBBox.Min[d]
		if width <= 0 {
			continue
		}
		sep := (entries[lowI].BBox.Min[d] - entries[highI].BBox.Max[d]) / width
		if sep > bestSep {
			bestSep = sep
			bestAxis = d
		}
	}

	sorted := append([]codec.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BBox.Min[bestAxis] < sorted[j].BBox.Min[bestAxis] })

	mid := len(sorted) / 2
	if mid < m {
		mid = m
	}
	if len(sorted)-mid < m {
		mid = len(sorted) - m
	}
	return splitResult{group1: sorted[:mid], group2: sorted[mid:]}
}

// splitAngTan classifies each entry by which quadrant of the parent bbox it
// sits closer to and chooses the axis minimizing the larger side's count.
func splitAngTan(entries []codec.Entry, m int, parentBBox geom.BBox) splitResult {
	if parentBBox.Dim() == 0 {
		parentBBox = unionAll(entries)
	}
	center := parentBBox.Center()
	dim := len(center)

	bestAxis := 0
	bestMax := math.MaxInt32
	for d := 0; d < dim; d++ {
		left, right := 0, 0
		for _, e := range entries {
			ec := e.BBox.Center()
			if ec[d] <= center[d] {
				left++
			} else {
				right++
			}
		}
		m2 := left
		if right > m2 {
			m2 = right
		}
		if m2 < bestMax {
			bestMax = m2
			bestAxis = d
		}
	}

	var g1, g2 []codec.Entry
	for _, e := range entries {
		if e.BBox.Center()[bestAxis] <= center[bestAxis] {
			g1 = append(g1, e)
		} else {
			g2 = append(g2, e)
		}
	}
	return rebalance(g1, g2, m)
}

// rebalance moves entries between groups (taking the last entry of the
// larger group each time) until both respect the minimum occupancy.
func rebalance(g1, g2 []codec.Entry, m int) splitResult {
	for len(g1) < m && len(g2) > m {
		g1 = append(g1, g2[len(g2)-1])
		g2 = g2[:len(g2)-1]
	}
	for len(g2) < m && len(g1) > m {
		g2 = append(g2, g1[len(g1)-1])
		g1 = g1[:len(g1)-1]
	}
	return splitResult{group1: g1, group2: g2}
}

// splitRStar implements the R*-tree split: for each axis, sort by lower and
// by upper bound, enumerate the M-2m+2 distributions, pick the axis with
// minimum summed margin, then the distribution with minimum overlap (ties
// broken by area).
func splitRStar(entries []codec.Entry, m int) splitResult {
	dim := entries[0].BBox.Dim()
	M := len(entries)

	type distribution struct {
		g1, g2           []codec.Entry
		overlap, area    float64
	}

	bestAxisMargin := math.Inf(1)
	var bestAxisDists []distribution

	for d := 0; d < dim; d++ {
		for _, byUpper := range []bool{false, true} {
			sorted := append([]codec.Entry(nil), entries...)
			if byUpper {
				sort.Slice(sorted, func(i, j int) bool { return sorted[i].BBox.Max[d] < sorted[j].BBox.Max[d] })
			} else {
				sort.Slice(sorted, func(i, j int) bool { return sorted[i].BBox.Min[d] < sorted[j].BBox.Min[d] })
			}

			marginSum := 0.0
			var dists []distribution
			for k := m; k <= M-m; k++ {
				g1 := sorted[:k]
				g2 := sorted[k:]
				b1, b2 := unionAll(g1), unionAll(g2)
				marginSum += b1.Margin() + b2.Margin()
				dists = append(dists, distribution{g1: g1, g2: g2, overlap: b1.OverlapArea(b2), area: b1.Area() + b2.Area()})
			}
			if marginSum < bestAxisMargin {
				bestAxisMargin = marginSum
				bestAxisDists = dists
			}
		}
	}

	best := bestAxisDists[0]
	for _, dd := range bestAxisDists[1:] {
		if dd.overlap < best.overlap || (dd.overlap == best.overlap && dd.area < best.area) {
			best = dd
		}
	}
	return splitResult{group1: append([]codec.Entry(nil), best.g1...), group2: append([]codec.Entry(nil), best.g2...)}
}

// splitExponential enumerates every partition of size >= m and picks the
// one with minimum total area. Exponential in M; intended as an upper
// bound for small M, per spec.md §4.5.
func splitExponential(entries []codec.Entry, m int) splitResult {
	n := len(entries)
	bestArea := math.Inf(1)
	var best splitResult
	found := false

	for mask := 1; mask < (1 << n); mask++ {
		var g1, g2 []codec.Entry
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				g1 = append(g1, entries[i])
			} else {
				g2 = append(g2, entries[i])
			}
		}
		if len(g1) < m || len(g2) < m {
			continue
		}
		// canonical form: skip the mirror partition once one side's seen.
		if len(g2) > 0 && g2[0].Pointer < g1[0].Pointer {
			continue
		}
		area := unionAll(g1).Area() + unionAll(g2).Area()
		if area < bestArea {
			bestArea = area
			best = splitResult{group1: g1, group2: g2}
			found = true
		}
	}
	if !found {
		return splitQuadratic(entries, m)
	}
	return best
}
