package singlecell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// twoCliqueGraph joins a 5-clique and a 4-clique by a single weak edge.
func twoCliqueGraph() *SNNGraph {
	g := &SNNGraph{NCells: 9, K: 4}
	addClique := func(members []int) {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				g.Edges = append(g.Edges, SNNEdge{I: members[a], J: members[b], Weight: 1})
			}
		}
	}
	addClique([]int{0, 1, 2, 3, 4})
	addClique([]int{5, 6, 7, 8})
	g.Edges = append(g.Edges, SNNEdge{I: 4, J: 5, Weight: 0.07})
	return g
}

func clusterTestDataset(t *testing.T, nCells int) *Dataset {
	t.Helper()
	counts := make([][]float64, nCells)
	for i := range counts {
		counts[i] = []float64{1}
	}
	return testDataset(t, counts, []string{"A"})
}

func TestClusterCells(t *testing.T) {
	g := twoCliqueGraph()
	d := clusterTestDataset(t, g.NCells)

	var stats Stats
	nd, err := ClusterCells(d, g, ClusterOpts{Resolution: 0.8}, &stats)
	assert.NoError(t, err)
	expect.EQ(t, nd.NumClusters, 2)
	expect.EQ(t, stats.Clusters, 2)
	// Cluster 0 is the larger community.
	expect.EQ(t, nd.Clusters, []int{0, 0, 0, 0, 0, 1, 1, 1, 1})
	for i, c := range nd.Clusters {
		expect.EQ(t, nd.Cells[i].Cluster, c)
	}
	// The input snapshot keeps its unassigned markers.
	expect.EQ(t, d.Clusters[0], ClusterUnassigned)
	expect.EQ(t, d.Cells[0].Cluster, ClusterUnassigned)
}

func TestClusterCellsGraphMismatch(t *testing.T) {
	g := twoCliqueGraph()
	d := clusterTestDataset(t, 3)
	_, err := ClusterCells(d, g, DefaultOpts.Cluster, nil)
	assert.NotNil(t, err)
}

// Raising the resolution can only hold or increase the community count.
func TestClusterResolutionMonotone(t *testing.T) {
	g := twoCliqueGraph()
	low := partitionSNN(g, 0.4, 1)
	high := partitionSNN(g, 1.2, 1)
	nLow, nHigh := 0, 0
	for _, l := range low {
		if l+1 > nLow {
			nLow = l + 1
		}
	}
	for _, l := range high {
		if l+1 > nHigh {
			nHigh = l + 1
		}
	}
	expect.True(t, nLow <= nHigh)
	expect.True(t, nLow >= 1)
}

func TestPartitionSNNDeterministic(t *testing.T) {
	g := twoCliqueGraph()
	expect.EQ(t, partitionSNN(g, 0.8, 42), partitionSNN(g, 0.8, 42))
}
