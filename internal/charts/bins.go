// Package charts turns a derived view into chart data: shared-edge
// histograms stacked per species, a single-series mass histogram and a
// species-coloured scatter. Rendering to SVG and PNG lives alongside.
package charts

import (
	"math"
)

// MaxBins caps any requested bin count.
const MaxBins = 200

// ResolveBins maps a requested bin count onto the count actually used for n
// values. Non-positive requests select Sturges' rule; large requests clamp to
// MaxBins. The result is always at least 1.
func ResolveBins(requested, n int) int {
	if requested > MaxBins {
		return MaxBins
	}
	if requested > 0 {
		return requested
	}
	if n <= 1 {
		return 1
	}
	auto := int(math.Ceil(math.Log2(float64(n)))) + 1
	if auto > MaxBins {
		return MaxBins
	}
	return auto
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Edges returns bins+1 equal-width bin boundaries covering values. A single
// distinct value yields one bin of width 1 centred on it. Empty input yields
// nil.
func Edges(values []float64, bins int) []float64 {
	lo, hi, n := math.Inf(1), math.Inf(-1), 0
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		n++
	}
	if n == 0 {
		return nil
	}
	if lo == hi {
		return []float64{lo - 0.5, lo + 0.5}
	}
	bins = ResolveBins(bins, n)
	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	return edges
}

// binIndex returns the bin v falls in. The last bin is closed on the right.
func binIndex(edges []float64, v float64) int {
	bins := len(edges) - 1
	if bins <= 0 {
		return -1
	}
	if !finite(v) || v < edges[0] || v > edges[bins] {
		return -1
	}
	width := (edges[bins] - edges[0]) / float64(bins)
	if !finite(width) || width <= 0 {
		return -1
	}
	i := int((v - edges[0]) / width)
	if i < 0 {
		i = 0
	}
	if i >= bins {
		i = bins - 1
	}
	// floating point can land one bin off near an edge
	for i > 0 && v < edges[i] {
		i--
	}
	for i < bins-1 && v >= edges[i+1] {
		i++
	}
	return i
}
