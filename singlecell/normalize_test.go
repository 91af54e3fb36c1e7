package singlecell

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestNormalize(t *testing.T) {
	d := testDataset(t, [][]float64{
		{4, 0, 6},
		{0, 20, 0},
		{0, 0, 0},
	}, []string{"A", "B", "C"})

	var stats Stats
	nd := Normalize(d, NormalizeOpts{ScaleFactor: 100}, &stats)
	expect.EQ(t, stats.Renormalized, 0)
	expect.Nil(t, d.Norm)

	got := testDense(nd.Norm)
	expectNear(t, got[0][0], math.Log1p(40), 1e-12)
	expectNear(t, got[0][2], math.Log1p(60), 1e-12)
	expectNear(t, got[1][1], math.Log1p(100), 1e-12)
	expect.EQ(t, got[2], []float64{0, 0, 0})

	// Raw counts survive unchanged on the new snapshot.
	expect.EQ(t, testDense(nd.Counts), testDense(d.Counts))
}

func TestNormalizeDeterministic(t *testing.T) {
	counts := [][]float64{
		{3, 1, 0, 7},
		{0, 2, 2, 0},
	}
	a := Normalize(testDataset(t, counts, []string{"A", "B", "C", "D"}), DefaultOpts.Normalize, nil)
	b := Normalize(testDataset(t, counts, []string{"A", "B", "C", "D"}), DefaultOpts.Normalize, nil)
	expect.EQ(t, testDense(a.Norm), testDense(b.Norm))
}

// Normalization is not idempotent: the log-transformed values no longer sum
// to the scale factor, so a second pass over them would shift every entry.
// The pipeline therefore normalizes raw counts exactly once and counts any
// repeat invocation instead of silently recomputing.
func TestNormalizeRepeatCounted(t *testing.T) {
	d := testDataset(t, [][]float64{{4, 6}}, []string{"A", "B"})
	var stats Stats
	nd := Normalize(d, DefaultOpts.Normalize, &stats)
	expect.EQ(t, stats.Renormalized, 0)
	again := Normalize(nd, DefaultOpts.Normalize, &stats)
	expect.EQ(t, stats.Renormalized, 1)
	// Same raw input, same transform.
	expect.EQ(t, testDense(again.Norm), testDense(nd.Norm))
}
