package singlecell

import (
	"math"

	"github.com/james-bowman/sparse"
)

// Normalize rescales each cell's counts to opts.ScaleFactor total depth and
// applies a natural-log(1+x) transform, writing the result to Norm on a new
// snapshot. The transform is deterministic. It is NOT idempotent on raw
// counts: feeding an already-normalized matrix back in as counts produces a
// different result, so the pipeline runs a single canonical normalization
// and re-running it is recorded in stats.Renormalized rather than silently
// recomputed state.
func Normalize(d *Dataset, opts NormalizeOpts, stats *Stats) *Dataset {
	if d.Norm != nil && stats != nil {
		stats.Renormalized++
	}
	nd := d.derive("normalize")
	nd.Norm = normalizeCounts(d.Counts, opts.ScaleFactor)
	return nd
}

func normalizeCounts(counts *sparse.CSR, scaleFactor float64) *sparse.CSR {
	r, c := counts.Dims()
	sums := rowSums(counts)
	ia := make([]int, 1, r+1)
	var ja []int
	var data []float64
	for i := 0; i < r; i++ {
		scale := 0.0
		if sums[i] > 0 {
			scale = scaleFactor / sums[i]
		}
		counts.DoRowNonZero(i, func(_, j int, v float64) {
			ja = append(ja, j)
			data = append(data, math.Log1p(v*scale))
		})
		ia = append(ia, len(ja))
	}
	return sparse.NewCSR(r, c, ia, ja, data)
}
