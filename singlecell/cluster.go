package singlecell

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// ClusterCells partitions the SNN graph by modularity optimization at
// opts.Resolution and writes per-cell cluster ids on a new snapshot.
// Higher resolution yields more, smaller clusters. Ids are assigned by
// descending community size, so cluster 0 is always the largest.
func ClusterCells(d *Dataset, g *SNNGraph, opts ClusterOpts, stats *Stats) (*Dataset, error) {
	if g.NCells != d.NCells() {
		return nil, errors.E(errors.Invalid, "SNN graph does not match dataset cell count")
	}
	labels := partitionSNN(g, opts.Resolution, uint64(datasetSeed(d)))

	nClusters := 0
	for _, l := range labels {
		if l+1 > nClusters {
			nClusters = l + 1
		}
	}
	nd := d.derive("cluster")
	nd.Clusters = labels
	nd.NumClusters = nClusters
	nd.Cells = d.cloneCells()
	for i := range nd.Cells {
		nd.Cells[i].Cluster = labels[i]
	}
	if stats != nil {
		stats.Clusters += nClusters
	}
	log.Printf("clustering: %d communities at resolution %g", nClusters, opts.Resolution)
	return nd, nil
}

// partitionSNN runs Louvain community detection over the weighted SNN
// graph and returns per-cell cluster ids relabeled by descending
// community size.
func partitionSNN(g *SNNGraph, resolution float64, seed uint64) []int {
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < g.NCells; i++ {
		wg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(e.I), simple.Node(e.J), e.Weight))
	}
	reduced := community.Modularize(wg, resolution, rand.NewSource(seed))
	comms := reduced.Communities()
	sort.Slice(comms, func(a, b int) bool {
		if len(comms[a]) != len(comms[b]) {
			return len(comms[a]) > len(comms[b])
		}
		// Size ties broken by smallest member id for stable output.
		return minNodeID(comms[a]) < minNodeID(comms[b])
	})
	labels := make([]int, g.NCells)
	for id, comm := range comms {
		for _, node := range comm {
			labels[int(node.ID())] = id
		}
	}
	return labels
}

func minNodeID(nodes []graph.Node) int64 {
	min := nodes[0].ID()
	for _, n := range nodes[1:] {
		if n.ID() < min {
			min = n.ID()
		}
	}
	return min
}
