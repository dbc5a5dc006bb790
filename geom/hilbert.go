package geom

// HilbertValue maps a 2-D point into its position along a Hilbert curve of
// the given order (bits per axis), after quantizing x,y into [0, 2^order).
// Only D=2 is supported, matching the spec's "D fixed at build time,
// nominally 2" and the Hilbert R-tree's LHV bookkeeping.
func HilbertValue(x, y uint32, order uint) uint64 {
	var rx, ry uint32
	var d uint64
	side := uint32(1) << order
	for s := side / 2; s > 0; s /= 2 {
		if x&s > 0 {
			rx = 1
		} else {
			rx = 0
		}
		if y&s > 0 {
			ry = 1
		} else {
			ry = 0
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		x, y = rot(s, x, y, rx, ry)
	}
	return d
}

func rot(n uint32, x, y, rx, ry uint32) (uint32, uint32) {
	if ry == 0 {
		if rx == 1 {
			x = n - 1 - x
			y = n - 1 - y
		}
		x, y = y, x
	}
	return x, y
}

// QuantizeCenter converts a bbox center into the [0, 2^order) integer grid
// used by HilbertValue, given the coordinate space bounds.
func QuantizeCenter(b BBox, spaceMin, spaceMax []float64, order uint) (uint32, uint32) {
	side := float64(uint32(1) << order)
	c := b.Center()
	qx := quantize(c[0], spaceMin[0], spaceMax[0], side)
	qy := quantize(c[1], spaceMin[1], spaceMax[1], side)
	return qx, qy
}

func quantize(v, lo, hi, side float64) uint32 {
	if hi <= lo {
		return 0
	}
	f := (v - lo) / (hi - lo)
	if f < 0 {
		f = 0
	}
	if f >= 1 {
		f = 1 - 1e-9
	}
	return uint32(f * side)
}
