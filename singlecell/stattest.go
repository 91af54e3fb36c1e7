package singlecell

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// wilcoxonRankSum returns the two-tailed p-value of the Mann-Whitney U
// test between two samples, using the normal approximation with tie and
// continuity corrections. vals1/vals2 hold the nonzero observations;
// n1/n2 are the full group sizes, the remainder being implicit zeros.
func wilcoxonRankSum(vals1 []float64, n1 int, vals2 []float64, n2 int) float64 {
	if n1 == 0 || n2 == 0 {
		return 1
	}
	type entry struct {
		val   float64
		group int
	}
	combined := make([]entry, 0, n1+n2)
	for _, v := range vals1 {
		combined = append(combined, entry{v, 1})
	}
	for _, v := range vals2 {
		combined = append(combined, entry{v, 2})
	}
	for i := len(vals1); i < n1; i++ {
		combined = append(combined, entry{0, 1})
	}
	for i := len(vals2); i < n2; i++ {
		combined = append(combined, entry{0, 2})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].val < combined[j].val })

	total := len(combined)
	ranks := make([]float64, total)
	tieSum := 0.0
	for i := 0; i < total; {
		j := i
		for j < total && combined[j].val == combined[i].val {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}

	r1 := 0.0
	for i, e := range combined {
		if e.group == 1 {
			r1 += ranks[i]
		}
	}
	n1f, n2f := float64(n1), float64(n2)
	u1 := r1 - n1f*(n1f+1)/2
	u := math.Min(u1, n1f*n2f-u1)
	mu := n1f * n2f / 2

	nf := float64(total)
	sigma := math.Sqrt(n1f * n2f * ((nf + 1) - tieSum/(nf*(nf-1))) / 12)
	if sigma < 1e-10 {
		return 1
	}
	z := (u - mu + 0.5) / sigma
	return 2 * distuv.UnitNormal.CDF(-math.Abs(z))
}

// benjaminiHochberg adjusts p-values for false discovery rate. The output
// is parallel to the input.
func benjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return pvals[idx[i]] < pvals[idx[j]] })

	adj := make([]float64, n)
	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		p := pvals[idx[i]] * float64(n) / float64(i+1)
		if p > 1 {
			p = 1
		}
		if p < minP {
			minP = p
		} else {
			p = minP
		}
		adj[idx[i]] = p
	}
	return adj
}
