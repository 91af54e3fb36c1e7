package singlecell

import (
	"sort"

	"github.com/biogo/store/kdtree"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// SNNEdge is one shared-nearest-neighbor edge; I < J always holds.
type SNNEdge struct {
	I, J   int
	Weight float64
}

// SNNGraph is the shared-nearest-neighbor graph over the retained PCA
// space: cells are connected when their nearest-neighbor sets overlap,
// with Jaccard overlap as edge weight.
type SNNGraph struct {
	NCells    int
	K         int
	Neighbors [][]int
	Edges     []SNNEdge
}

// cellPoint is a kdtree point tagged with its cell index.
type cellPoint struct {
	kdtree.Point
	cell int
}

func (p cellPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.Point.Compare(c.(cellPoint).Point, d)
}
func (p cellPoint) Dims() int { return len(p.Point) }
func (p cellPoint) Distance(c kdtree.Comparable) float64 {
	return p.Point.Distance(c.(cellPoint).Point)
}

// cellPoints implements kdtree.Interface over []cellPoint.
type cellPoints []cellPoint

func (p cellPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p cellPoints) Len() int                      { return len(p) }
func (p cellPoints) Pivot(d kdtree.Dim) int {
	return cellPlane{cellPoints: p, Dim: d}.Pivot()
}
func (p cellPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type cellPlane struct {
	kdtree.Dim
	cellPoints
}

func (p cellPlane) Less(i, j int) bool {
	return p.cellPoints[i].Point[p.Dim] < p.cellPoints[j].Point[p.Dim]
}
func (p cellPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p cellPlane) Slice(start, end int) kdtree.SortSlicer {
	p.cellPoints = p.cellPoints[start:end]
	return p
}
func (p cellPlane) Swap(i, j int) {
	p.cellPoints[i], p.cellPoints[j] = p.cellPoints[j], p.cellPoints[i]
}

// BuildSNNGraph finds each cell's k nearest neighbors in the retained PCA
// space and connects cells by the Jaccard overlap of their neighbor sets,
// pruning edges below opts.SNNPrune.
func BuildSNNGraph(d *Dataset, opts NeighborOpts) (*SNNGraph, error) {
	if d.PCs == nil || d.NumPCs == 0 {
		return nil, errors.E(errors.Invalid, "SNN graph requires PCA coordinates; run RunPCA first")
	}
	nCells := d.NCells()
	k := opts.K
	if k >= nCells {
		k = nCells - 1
	}
	if k < 1 {
		return nil, errors.E(errors.Invalid, "too few cells for neighbor search")
	}

	pts := make(cellPoints, nCells)
	for i := 0; i < nCells; i++ {
		pts[i] = cellPoint{Point: kdtree.Point(d.PCs[i][:d.NumPCs]), cell: i}
	}
	tree := kdtree.New(pts, false)

	neighbors := make([][]int, nCells)
	for i := 0; i < nCells; i++ {
		keep := kdtree.NewNKeeper(k + 1)
		tree.NearestSet(keep, pts[i])
		nn := make([]int, 0, k)
		for _, c := range keep.Heap {
			p, ok := c.Comparable.(cellPoint)
			if !ok || p.cell == i {
				continue
			}
			nn = append(nn, p.cell)
		}
		sort.Ints(nn)
		neighbors[i] = nn
	}

	g := &SNNGraph{NCells: nCells, K: k, Neighbors: neighbors}
	g.Edges = snnEdges(neighbors, opts.SNNPrune)
	log.Printf("SNN graph: %d cells, k=%d, %d edges after pruning", nCells, k, len(g.Edges))
	return g, nil
}

// snnEdges computes Jaccard weights between every pair of cells whose
// neighbor sets overlap. Neighbor sets include the cell itself, so directly
// adjacent cells always share a member.
func snnEdges(neighbors [][]int, prune float64) []SNNEdge {
	n := len(neighbors)
	sets := make([][]int, n)
	for i, nn := range neighbors {
		s := make([]int, 0, len(nn)+1)
		s = append(s, nn...)
		pos := sort.SearchInts(s, i)
		s = append(s, 0)
		copy(s[pos+1:], s[pos:])
		s[pos] = i
		sets[i] = s
	}
	// listedBy[j] holds the cells whose set contains j.
	listedBy := make([][]int32, n)
	for i, s := range sets {
		for _, j := range s {
			listedBy[j] = append(listedBy[j], int32(i))
		}
	}
	var edges []SNNEdge
	for i := 0; i < n; i++ {
		cands := map[int]bool{}
		for _, m := range sets[i] {
			for _, c := range listedBy[m] {
				if int(c) > i {
					cands[int(c)] = true
				}
			}
		}
		for j := range cands {
			inter := intersectSize(sets[i], sets[j])
			union := len(sets[i]) + len(sets[j]) - inter
			w := float64(inter) / float64(union)
			if w >= prune {
				edges = append(edges, SNNEdge{I: i, J: j, Weight: w})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].I != edges[b].I {
			return edges[a].I < edges[b].I
		}
		return edges[a].J < edges[b].J
	})
	return edges
}

// intersectSize merges two sorted int slices and counts common members.
func intersectSize(a, b []int) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}
