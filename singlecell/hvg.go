package singlecell

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
)

// SelectVariableFeatures ranks genes by variance-stabilized dispersion and
// flags the top opts.NumFeatures as variable, recomputing GeneStats on a
// new snapshot. The procedure follows the vst recipe: fit a local trend of
// log10 variance against log10 mean over the raw counts, standardize each
// gene's counts by the trend-expected standard deviation with z-scores
// clipped at sqrt(nCells), and rank genes by the variance of the clipped
// z-scores.
func SelectVariableFeatures(d *Dataset, opts HVGOpts, stats *Stats) *Dataset {
	nCells := d.NCells()
	nGenes := d.NGenes()
	clipMax := math.Sqrt(float64(nCells))

	gs := make([]GeneStat, nGenes)
	ci := newColumnIndex(d.Counts)
	for g := 0; g < nGenes; g++ {
		var sum, sumsq float64
		for _, v := range ci.vals[g] {
			sum += v
			sumsq += v * v
		}
		mean := sum / float64(nCells)
		gs[g].Mean = mean
		if nCells > 1 {
			gs[g].Var = (sumsq - float64(nCells)*mean*mean) / float64(nCells-1)
		}
	}

	expectedSD := fitMeanVarTrend(gs, opts.TrendSpan)

	for g := 0; g < nGenes; g++ {
		sd := expectedSD[g]
		if sd <= 0 || gs[g].Var <= 0 {
			continue
		}
		mean := gs[g].Mean
		clamp := func(z float64) float64 {
			if z > clipMax {
				return clipMax
			}
			if z < -clipMax {
				return -clipMax
			}
			return z
		}
		var sumZ, sumZ2 float64
		for _, v := range ci.vals[g] {
			z := clamp((v - mean) / sd)
			sumZ += z
			sumZ2 += z * z
		}
		zeroZ := clamp((0 - mean) / sd)
		nZero := float64(nCells - len(ci.vals[g]))
		sumZ += nZero * zeroZ
		sumZ2 += nZero * zeroZ * zeroZ
		meanZ := sumZ / float64(nCells)
		if nCells > 1 {
			gs[g].StdVar = (sumZ2 - float64(nCells)*meanZ*meanZ) / float64(nCells-1)
		}
	}

	order := make([]int, nGenes)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return gs[order[a]].StdVar > gs[order[b]].StdVar
	})
	n := opts.NumFeatures
	if n > nGenes {
		n = nGenes
	}
	variable := make([]int, 0, n)
	for _, g := range order[:n] {
		if gs[g].StdVar <= 0 {
			break
		}
		gs[g].Variable = true
		variable = append(variable, g)
	}
	if stats != nil {
		stats.VariableGenes += len(variable)
	}
	log.Printf("selected %d variable features of %d genes", len(variable), nGenes)

	nd := d.derive("variable-features")
	nd.GeneStats = gs
	nd.Variable = variable
	return nd
}

// fitMeanVarTrend predicts a per-gene standard deviation from a local
// linear fit of log10 variance on log10 mean. Genes are sorted by mean and
// each prediction uses a sliding window holding span*nGenes neighbors; the
// window regression is solved in closed form from running sums. The fit is
// sensitive to the post-QC cell count through the per-gene moments.
func fitMeanVarTrend(gs []GeneStat, span float64) []float64 {
	type pt struct {
		gene int
		x, y float64
	}
	var pts []pt
	for g := range gs {
		if gs[g].Mean > 0 && gs[g].Var > 0 {
			pts = append(pts, pt{g, math.Log10(gs[g].Mean), math.Log10(gs[g].Var)})
		}
	}
	sd := make([]float64, len(gs))
	n := len(pts)
	if n == 0 {
		return sd
	}
	sort.Slice(pts, func(a, b int) bool { return pts[a].x < pts[b].x })

	w := int(span * float64(n))
	if w < 3 {
		w = 3
	}
	if w > n {
		w = n
	}
	// Running sums over the current window [lo, hi).
	var sx, sy, sxx, sxy float64
	lo, hi := 0, 0
	add := func(p pt) { sx += p.x; sy += p.y; sxx += p.x * p.x; sxy += p.x * p.y }
	del := func(p pt) { sx -= p.x; sy -= p.y; sxx -= p.x * p.x; sxy -= p.x * p.y }
	for i, p := range pts {
		// Keep the window centered on i.
		for hi < n && hi < i+w/2+1 {
			add(pts[hi])
			hi++
		}
		for hi-lo > w {
			del(pts[lo])
			lo++
		}
		m := float64(hi - lo)
		den := m*sxx - sx*sx
		var fit float64
		if den != 0 {
			beta := (m*sxy - sx*sy) / den
			alpha := (sy - beta*sx) / m
			fit = alpha + beta*p.x
		} else {
			fit = sy / m
		}
		sd[p.gene] = math.Sqrt(math.Pow(10, fit))
	}
	return sd
}
