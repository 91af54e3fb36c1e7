package singlecell

import (
	"math"
	"math/rand"

	"github.com/danaugrs/go-tsne/tsne"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/mat"
)

// RunEmbeddings derives the two 2-D visualization embeddings from the
// retained PCA components: t-SNE (delegated to the go-tsne solver) and a
// spectral layout of the SNN graph filling the UMAP slot. Both are
// independent, non-interacting projections; nothing downstream depends on
// their output. Embeddings are write-once.
func RunEmbeddings(d *Dataset, g *SNNGraph, opts EmbedOpts) (*Dataset, error) {
	if d.PCs == nil || d.NumPCs == 0 {
		return nil, errors.E(errors.Invalid, "embeddings require PCA coordinates")
	}
	if _, ok := d.Embeddings["tsne"]; ok {
		return nil, errors.E(errors.Invalid, "embeddings already computed; they are write-once")
	}
	nCells := d.NCells()
	perplexity := opts.Perplexity
	if maxP := float64(nCells-1) / 3; perplexity > maxP {
		perplexity = maxP
	}

	x := mat.NewDense(nCells, d.NumPCs, nil)
	for i := 0; i < nCells; i++ {
		for j := 0; j < d.NumPCs; j++ {
			x.Set(i, j, d.PCs[i][j])
		}
	}
	log.Printf("t-SNE: %d cells, %d dims, perplexity %.1f", nCells, d.NumPCs, perplexity)
	solver := tsne.NewTSNE(2, perplexity, opts.LearningRate, opts.MaxIter, false)
	y := solver.EmbedData(x, nil)

	tsneCoords := make([][]float64, nCells)
	for i := 0; i < nCells; i++ {
		tsneCoords[i] = []float64{y.At(i, 0), y.At(i, 1)}
	}

	umapCoords := spectralLayout(g, rand.New(rand.NewSource(datasetSeed(d))))

	nd := d.derive("embed")
	nd.Embeddings = map[string]*Embedding{}
	for k, v := range d.Embeddings {
		nd.Embeddings[k] = v
	}
	nd.Embeddings["tsne"] = &Embedding{Name: "tsne", Coords: tsneCoords}
	nd.Embeddings["umap"] = &Embedding{Name: "umap", Coords: umapCoords}
	return nd, nil
}

// spectralLayout places cells by the two leading nontrivial eigenvectors
// of the normalized SNN adjacency (the eigensolve is delegated to gonum),
// then refines the layout with a short attraction/repulsion pass over the
// graph edges.
func spectralLayout(g *SNNGraph, rng *rand.Rand) [][]float64 {
	n := g.NCells
	coords := make([][]float64, n)
	for i := range coords {
		coords[i] = []float64{rng.NormFloat64() * 1e-2, rng.NormFloat64() * 1e-2}
	}
	if n < 3 || len(g.Edges) == 0 {
		return coords
	}

	deg := make([]float64, n)
	for _, e := range g.Edges {
		deg[e.I] += e.Weight
		deg[e.J] += e.Weight
	}
	norm := mat.NewSymDense(n, nil)
	for _, e := range g.Edges {
		if deg[e.I] == 0 || deg[e.J] == 0 {
			continue
		}
		norm.SetSym(e.I, e.J, e.Weight/math.Sqrt(deg[e.I]*deg[e.J]))
	}
	var eig mat.EigenSym
	if !eig.Factorize(norm, true) {
		log.Error.Printf("spectral layout: eigendecomposition failed; using random init")
		return refineLayout(g, coords, rng)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// Eigenvalues are ascending; the last is the trivial component.
	for i := 0; i < n; i++ {
		coords[i][0] = vecs.At(i, n-2) * 10
		coords[i][1] = vecs.At(i, n-3) * 10
	}
	return refineLayout(g, coords, rng)
}

// refineLayout runs a fixed number of sampled attraction/repulsion steps
// along graph edges, which untangles the spectral initialization without
// moving well-separated components.
func refineLayout(g *SNNGraph, coords [][]float64, rng *rand.Rand) [][]float64 {
	const iters = 200
	n := len(coords)
	for it := 0; it < iters; it++ {
		alpha := 1.0 - float64(it)/iters
		for _, e := range g.Edges {
			a, b := coords[e.I], coords[e.J]
			dx, dy := b[0]-a[0], b[1]-a[1]
			d2 := dx*dx + dy*dy + 1e-4
			// Attract along the edge.
			f := alpha * e.Weight * 2 * math.Sqrt(d2) / (1 + d2)
			a[0] += f * dx
			a[1] += f * dy
			b[0] -= f * dx
			b[1] -= f * dy
			// Repel from one random sample.
			j := rng.Intn(n)
			if j == e.I {
				continue
			}
			c := coords[j]
			rx, ry := c[0]-a[0], c[1]-a[1]
			r2 := rx*rx + ry*ry + 1e-4
			fr := alpha / (1 + r2) / r2
			a[0] -= fr * rx
			a[1] -= fr * ry
		}
	}
	return coords
}
