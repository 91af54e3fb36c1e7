package singlecell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// markerDataset fakes a clustered, normalized dataset: gene UP0 marks the
// first five cells, UP1 the rest, FLAT is uniform and RARE nearly absent.
func markerDataset(t *testing.T) *Dataset {
	t.Helper()
	genes := []string{"UP0", "FLAT", "UP1", "RARE"}
	norm := make([][]float64, 10)
	for i := range norm {
		norm[i] = make([]float64, len(genes))
		norm[i][1] = 1
		if i < 5 {
			norm[i][0] = 2
		} else {
			norm[i][2] = 2
		}
	}
	norm[0][3] = 1
	norm[5][3] = 1

	counts := make([][]float64, 10)
	for i := range counts {
		counts[i] = []float64{1, 1, 1, 1}
	}
	d := testDataset(t, counts, genes)
	d.Norm = testCSR(norm)
	d.NumClusters = 2
	d.Clusters = []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	return d
}

func TestFindMarkers(t *testing.T) {
	d := markerDataset(t)
	var stats Stats
	markers, err := FindMarkers(d, DefaultOpts.StrictMarkers, &stats)
	assert.NoError(t, err)

	byCluster := map[int][]Marker{}
	for _, m := range markers {
		byCluster[m.Cluster] = append(byCluster[m.Cluster], m)
	}
	assert.EQ(t, len(byCluster[0]), 1)
	assert.EQ(t, len(byCluster[1]), 1)

	m0 := byCluster[0][0]
	expect.EQ(t, m0.Gene, "UP0")
	expect.EQ(t, m0.Pct1, 1.0)
	expect.EQ(t, m0.Pct2, 0.0)
	expect.EQ(t, m0.PctDiff, 1.0)
	// log2((expm1(2)+1)/1)
	expectNear(t, m0.AvgLog2FC, 2.885390, 1e-5)
	expect.True(t, m0.PVal < 0.05)
	expect.True(t, m0.PAdj >= m0.PVal)

	expect.EQ(t, byCluster[1][0].Gene, "UP1")
	expect.EQ(t, stats.MarkersKept, 2)
}

func TestFindMarkersLooseKeepsMore(t *testing.T) {
	d := markerDataset(t)
	strict, err := FindMarkers(d, DefaultOpts.StrictMarkers, nil)
	assert.NoError(t, err)
	loose, err := FindMarkers(d, DefaultOpts.LooseMarkers, nil)
	assert.NoError(t, err)
	expect.True(t, len(loose) >= len(strict))
	// Uniform and negative genes stay excluded even under the loose
	// thresholds: markers are positive-only.
	for _, m := range loose {
		expect.True(t, m.Gene != "FLAT")
		expect.True(t, m.AvgLog2FC >= DefaultOpts.LooseMarkers.MinLog2FC)
	}
}

func TestFindMarkersRequiresState(t *testing.T) {
	d := testDataset(t, [][]float64{{1}, {1}}, []string{"A"})
	_, err := FindMarkers(d, DefaultOpts.StrictMarkers, nil)
	assert.NotNil(t, err) // no normalized matrix

	d.Norm = d.Counts
	_, err = FindMarkers(d, DefaultOpts.StrictMarkers, nil)
	assert.NotNil(t, err) // no clusters
}

func TestTopMarkers(t *testing.T) {
	markers := []Marker{
		{Cluster: 0, Gene: "A"},
		{Cluster: 0, Gene: "B"},
		{Cluster: 0, Gene: "C"},
		{Cluster: 1, Gene: "D"},
	}
	top := TopMarkers(markers, 2)
	expect.EQ(t, len(top[0]), 2)
	expect.EQ(t, top[0][0].Gene, "A")
	expect.EQ(t, top[1][0].Gene, "D")
}
