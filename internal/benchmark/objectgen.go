package benchmark

import (
	"math"
	mrand "math/rand"
	"sync/atomic"

	"github.com/intellect4all/geoindex/geom"
)

// ObjectDistribution defines how generated objects are spread across the
// index's search workload: which ids get touched, and how densely.
type ObjectDistribution string

const (
	DistUniform    ObjectDistribution = "uniform"    // every object equally likely
	DistZipfian    ObjectDistribution = "zipfian"    // 80/20 rule (realistic hotspot)
	DistSequential ObjectDistribution = "sequential" // scan in insertion order
	DistLatest     ObjectDistribution = "latest"     // recently inserted objects favored
)

// ObjectGenerator produces deterministic (pointer, bbox) pairs for a
// two-dimensional extent space, playing the role a key generator plays for
// a byte-oriented engine: NumObjects stands in for the keyspace size, and
// Extent fixes the size of every generated bounding box so density (and
// hence split/merge-back behavior) only varies with SpaceSize.
type ObjectGenerator struct {
	numObjects int
	spaceSize  float64
	extent     float64
	dist       ObjectDistribution
	rng        *mrand.Rand

	zipf *mrand.Zipf

	seqCounter atomic.Int64
}

func NewObjectGenerator(numObjects int, spaceSize, extent float64, dist ObjectDistribution, seed int64) *ObjectGenerator {
	rng := mrand.New(mrand.NewSource(seed))

	g := &ObjectGenerator{
		numObjects: numObjects,
		spaceSize:  spaceSize,
		extent:     extent,
		dist:       dist,
		rng:        rng,
	}

	if dist == DistZipfian {
		g.zipf = mrand.NewZipf(rng, 1.1, 1, uint64(numObjects-1))
	}

	return g
}

// NextPointer picks the next object id per the configured distribution.
func (g *ObjectGenerator) NextPointer() uint32 {
	var id int

	switch g.dist {
	case DistUniform:
		id = g.rng.Intn(g.numObjects)

	case DistZipfian:
		id = int(g.zipf.Uint64())

	case DistSequential:
		id = int(g.seqCounter.Add(1) % int64(g.numObjects))

	case DistLatest:
		window := g.numObjects / 10
		if window < 100 {
			window = 100
		}
		offset := int(math.Abs(g.rng.NormFloat64()) * float64(window))
		id = g.numObjects - 1 - offset
		if id < 0 {
			id = 0
		}

	default:
		id = g.rng.Intn(g.numObjects)
	}

	return uint32(id)
}

// GenerateSequential returns the nth object in insertion order, used to
// preload a fixed initial population before the timed workload starts.
func (g *ObjectGenerator) GenerateSequential(n int) uint32 {
	return uint32(n % g.numObjects)
}

// bbox places pointer's object deterministically in [0, spaceSize)^2:
// spreads ids across the space via two different strides per axis so
// nearby ids don't collide on one diagonal.
func (g *ObjectGenerator) bbox(pointer uint32) box {
	x := math.Mod(float64(pointer)*2654435761, g.spaceSize)
	y := math.Mod(float64(pointer)*40503, g.spaceSize)
	min := []float64{x, y}
	max := []float64{x + g.extent, y + g.extent}
	return box(geom.NewBBox(min, max))
}

// box is a trivial geom.Geometry whose MBR is itself.
type box geom.BBox

func (b box) MBR() geom.BBox { return geom.BBox(b) }

// NextGeometry returns NextPointer's id paired with its deterministic box.
func (g *ObjectGenerator) NextGeometry() (uint32, box) {
	p := g.NextPointer()
	return p, g.bbox(p)
}

// GeometryFor returns the deterministic box a given pointer maps to,
// needed to drive Remove/Update (which need the same bbox Insert used).
func (g *ObjectGenerator) GeometryFor(pointer uint32) box {
	return g.bbox(pointer)
}
