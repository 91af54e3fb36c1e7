package singlecell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestComponentsUsed(t *testing.T) {
	opts := DefaultOpts.Reduce
	for _, tc := range []struct {
		pct  []float64
		want int
	}{
		// Cumulative candidate fires at index 5 (cum 95, pct 4); the
		// drop candidate sits later, so the earlier one wins.
		{[]float64{40, 20, 15, 10, 6, 4, 3, 2, 1}, 6},
		// A flat spectrum never satisfies either candidate before the
		// end; everything is retained.
		{[]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}, 10},
		// Sharp elbow after the second component.
		{[]float64{50, 45, 1, 1, 1, 1, 1}, 3},
		{[]float64{100}, 1},
		{nil, 0},
	} {
		expect.EQ(t, ComponentsUsed(tc.pct, opts), tc.want)
	}
}

func TestRunPCA(t *testing.T) {
	// Two well-separated cell groups along the first gene axis.
	counts := [][]float64{
		{100, 1, 1, 2},
		{90, 2, 1, 1},
		{95, 1, 2, 1},
		{1, 100, 2, 1},
		{2, 95, 1, 1},
		{1, 90, 1, 2},
	}
	genes := []string{"A", "B", "C", "D"}
	d := Normalize(testDataset(t, counts, genes), DefaultOpts.Normalize, nil)
	hvgOpts := HVGOpts{NumFeatures: 4, TrendSpan: 1}
	d = SelectVariableFeatures(d, hvgOpts, nil)

	var stats Stats
	opts := ReduceOpts{MaxComponents: 3, ScaleMax: 10, CumVarCutoff: 90, PctVarCutoff: 5, VarDropCutoff: 0.1}
	nd, err := RunPCA(d, opts, &stats)
	assert.NoError(t, err)
	expect.EQ(t, len(nd.PCs), 6)
	expect.EQ(t, len(nd.PCs[0]), len(nd.PCVariance))
	expect.True(t, nd.NumPCs >= 1)
	expect.EQ(t, stats.ComponentsUsed, nd.NumPCs)

	// Percent variances are a descending sequence summing to 100.
	total := 0.0
	for i, v := range nd.PCVariance {
		total += v
		if i > 0 {
			expect.True(t, v <= nd.PCVariance[i-1])
		}
	}
	expectNear(t, total, 100, 1e-6)

	// PC1 must separate the two groups.
	sameSide := func(a, b float64) bool { return (a > 0) == (b > 0) }
	expect.True(t, sameSide(nd.PCs[0][0], nd.PCs[1][0]))
	expect.True(t, sameSide(nd.PCs[0][0], nd.PCs[2][0]))
	expect.False(t, sameSide(nd.PCs[0][0], nd.PCs[3][0]))
	expect.False(t, sameSide(nd.PCs[0][0], nd.PCs[5][0]))
}

func TestRunPCARequiresVariableGenes(t *testing.T) {
	d := Normalize(testDataset(t, [][]float64{{1, 2}, {2, 1}}, []string{"A", "B"}), DefaultOpts.Normalize, nil)
	_, err := RunPCA(d, DefaultOpts.Reduce, nil)
	assert.NotNil(t, err)
}
