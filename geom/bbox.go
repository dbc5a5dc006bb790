// Package geom implements the bounding-box algebra and predicate set the
// spatial index core operates on. It deliberately does not compute MBRs
// from polygons or any richer geometry; callers own that computation and
// hand the core a BBox (or a Geometry that can produce one).
package geom

import "math"

// Epsilon is the fixed absolute tolerance used by every comparison below.
const Epsilon = 1e-5

// BBox is an axis-aligned bounding box over D dimensions. Min and Max must
// have equal, non-zero length and satisfy Min[i] <= Max[i]+Epsilon for all i.
type BBox struct {
	Min []float64
	Max []float64
}

// NewBBox builds a BBox of dimension D, copying min/max.
func NewBBox(min, max []float64) BBox {
	m := make([]float64, len(min))
	x := make([]float64, len(max))
	copy(m, min)
	copy(x, max)
	return BBox{Min: m, Max: x}
}

// Dim returns the number of dimensions.
func (b BBox) Dim() int { return len(b.Min) }

// Clone returns a deep copy.
func (b BBox) Clone() BBox {
	return NewBBox(b.Min, b.Max)
}

func approxLE(a, b float64) bool { return a <= b+Epsilon }
func approxGE(a, b float64) bool { return a >= b-Epsilon }
func approxEQ(a, b float64) bool { return math.Abs(a-b) <= Epsilon }

// Intersects reports whether the two boxes share any point (closed boxes).
func (b BBox) Intersects(o BBox) bool {
	for i := 0; i < b.Dim(); i++ {
		if !approxLE(b.Min[i], o.Max[i]) || !approxLE(o.Min[i], b.Max[i]) {
			return false
		}
	}
	return true
}

// Disjoint is the negation of Intersects.
func (b BBox) Disjoint(o BBox) bool { return !b.Intersects(o) }

// Inside reports whether b lies entirely inside o, not touching its boundary.
func (b BBox) Inside(o BBox) bool {
	strictlyInside := false
	for i := 0; i < b.Dim(); i++ {
		if !(o.Min[i] < b.Min[i]-Epsilon && b.Max[i] < o.Max[i]-Epsilon) {
			return false
		}
		if o.Min[i] < b.Min[i]-Epsilon && b.Max[i] < o.Max[i]-Epsilon {
			strictlyInside = true
		}
	}
	return strictlyInside || b.Dim() == 0
}

// Contains is the inverse of Inside: o lies strictly inside b.
func (b BBox) Contains(o BBox) bool { return o.Inside(b) }

// CoveredBy reports whether every point of b lies in o (boundary allowed).
func (b BBox) CoveredBy(o BBox) bool {
	for i := 0; i < b.Dim(); i++ {
		if !approxGE(b.Min[i], o.Min[i]) || !approxLE(b.Max[i], o.Max[i]) {
			return false
		}
	}
	return true
}

// Covers is the inverse of CoveredBy.
func (b BBox) Covers(o BBox) bool { return o.CoveredBy(b) }

// InsideOrCoveredBy reports Inside(o) || CoveredBy(o).
func (b BBox) InsideOrCoveredBy(o BBox) bool { return b.Inside(o) || b.CoveredBy(o) }

// ContainsOrCovers is the symmetric inverse.
func (b BBox) ContainsOrCovers(o BBox) bool { return b.Contains(o) || b.Covers(o) }

// Equal reports whether the two boxes coincide within Epsilon.
func (b BBox) Equal(o BBox) bool {
	if b.Dim() != o.Dim() {
		return false
	}
	for i := 0; i < b.Dim(); i++ {
		if !approxEQ(b.Min[i], o.Min[i]) || !approxEQ(b.Max[i], o.Max[i]) {
			return false
		}
	}
	return true
}

// Meet reports a proper boundary touch: the boxes intersect but neither
// contains an interior point of the other (9-IM "meet").
func (b BBox) Meet(o BBox) bool {
	if !b.Intersects(o) {
		return false
	}
	return !b.overlapsInterior(o)
}

func (b BBox) overlapsInterior(o BBox) bool {
	for i := 0; i < b.Dim(); i++ {
		lo := math.Max(b.Min[i], o.Min[i])
		hi := math.Min(b.Max[i], o.Max[i])
		if hi-lo <= Epsilon {
			return false
		}
	}
	return true
}

// Overlap is the 9-IM "proper overlap": interiors intersect and neither box
// covers the other.
func (b BBox) Overlap(o BBox) bool {
	if !b.overlapsInterior(o) {
		return false
	}
	if b.CoveredBy(o) || o.CoveredBy(b) {
		return false
	}
	return true
}

// Area returns the D-dimensional volume.
func (b BBox) Area() float64 {
	area := 1.0
	for i := 0; i < b.Dim(); i++ {
		area *= b.Max[i] - b.Min[i]
	}
	return area
}

// Margin returns the sum of edge lengths (used by the R*-tree split).
func (b BBox) Margin() float64 {
	m := 0.0
	for i := 0; i < b.Dim(); i++ {
		m += b.Max[i] - b.Min[i]
	}
	return m
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	min := make([]float64, b.Dim())
	max := make([]float64, b.Dim())
	for i := 0; i < b.Dim(); i++ {
		min[i] = math.Min(b.Min[i], o.Min[i])
		max[i] = math.Max(b.Max[i], o.Max[i])
	}
	return BBox{Min: min, Max: max}
}

// ExpandToInclude mutates b in place to also cover o (incremental union).
func (b *BBox) ExpandToInclude(o BBox) {
	for i := 0; i < b.Dim(); i++ {
		if o.Min[i] < b.Min[i] {
			b.Min[i] = o.Min[i]
		}
		if o.Max[i] > b.Max[i] {
			b.Max[i] = o.Max[i]
		}
	}
}

// EnlargementArea returns the area added to b's union with o, over b's own
// area: the "required expansion area" used by ChooseSubtree.
func (b BBox) EnlargementArea(o BBox) float64 {
	return b.Union(o).Area() - b.Area()
}

// OverlapArea returns the area of the intersection of b and o, or 0 if
// disjoint.
func (b BBox) OverlapArea(o BBox) float64 {
	area := 1.0
	for i := 0; i < b.Dim(); i++ {
		lo := math.Max(b.Min[i], o.Min[i])
		hi := math.Min(b.Max[i], o.Max[i])
		if hi < lo {
			return 0
		}
		area *= hi - lo
	}
	return area
}

// Center returns the geometric center point.
func (b BBox) Center() []float64 {
	c := make([]float64, b.Dim())
	for i := 0; i < b.Dim(); i++ {
		c[i] = (b.Min[i] + b.Max[i]) / 2
	}
	return c
}

// CenterDistance returns the Euclidean distance between the two boxes'
// centers.
func (b BBox) CenterDistance(o BBox) float64 {
	ca, cb := b.Center(), o.Center()
	sum := 0.0
	for i := range ca {
		d := ca[i] - cb[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Geometry is the minimal external collaborator interface: anything that
// can produce its own minimum bounding rectangle. The core never computes
// an MBR from raw polygon data itself.
type Geometry interface {
	MBR() BBox
}
