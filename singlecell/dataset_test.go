package singlecell

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestNewDataset(t *testing.T) {
	m := testCSR([][]float64{{1, 0}, {0, 2}})
	d, err := NewDataset(m, []string{"BC1", "BC2"}, []string{"A", "B"})
	assert.NoError(t, err)
	expect.EQ(t, d.NCells(), 2)
	expect.EQ(t, d.NGenes(), 2)
	expect.EQ(t, d.Stage, "load")
	expect.True(t, d.SnapshotID != "")
	expect.EQ(t, d.ParentID, "")
	for i, c := range d.Cells {
		expect.EQ(t, c.Barcode, d.Barcodes[i])
		expect.EQ(t, c.Cluster, ClusterUnassigned)
	}

	_, err = NewDataset(m, []string{"BC1"}, []string{"A", "B"})
	assert.NotNil(t, err)
	_, err = NewDataset(m, []string{"BC1", "BC2"}, []string{"A"})
	assert.NotNil(t, err)
}

func TestDerive(t *testing.T) {
	d := testDataset(t, [][]float64{{1}}, []string{"A"})
	nd := d.derive("test-stage")
	expect.EQ(t, nd.ParentID, d.SnapshotID)
	expect.True(t, nd.SnapshotID != d.SnapshotID)
	expect.EQ(t, nd.Stage, "test-stage")
	expect.EQ(t, nd.Genes, d.Genes)
}

func TestWithAnnotations(t *testing.T) {
	d := testDataset(t, [][]float64{{1}, {2}}, []string{"A"})
	nd, err := d.WithAnnotations([]string{"T cell", ""}, []string{"CD4 T", ""})
	assert.NoError(t, err)
	expect.EQ(t, nd.Cells[0].MainLabel, "T cell")
	expect.EQ(t, nd.Cells[0].FineLabel, "CD4 T")
	expect.EQ(t, nd.Cells[1].MainLabel, "")
	expect.EQ(t, d.Cells[0].MainLabel, "")

	_, err = d.WithAnnotations([]string{"x"}, []string{"y"})
	assert.NotNil(t, err)
}

func TestDatasetGobRoundTrip(t *testing.T) {
	d := testDataset(t, [][]float64{{1, 0, 3}, {0, 2, 0}}, []string{"A", "B", "C"})
	d = Normalize(d, DefaultOpts.Normalize, nil)
	d.PCs = [][]float64{{0.1, 0.2}, {0.3, 0.4}}
	d.PCVariance = []float64{60, 40}
	d.NumPCs = 2
	d.Embeddings = map[string]*Embedding{
		"tsne": {Name: "tsne", Coords: [][]float64{{1, 2}, {3, 4}}},
	}
	d.Clusters = []int{0, 1}
	d.NumClusters = 2

	var buf bytes.Buffer
	assert.NoError(t, gob.NewEncoder(&buf).Encode(d))
	var got Dataset
	assert.NoError(t, gob.NewDecoder(&buf).Decode(&got))

	expect.EQ(t, got.SnapshotID, d.SnapshotID)
	expect.EQ(t, got.ParentID, d.ParentID)
	expect.EQ(t, got.Stage, d.Stage)
	expect.EQ(t, got.Genes, d.Genes)
	expect.EQ(t, got.Barcodes, d.Barcodes)
	expect.EQ(t, testDense(got.Counts), testDense(d.Counts))
	expect.EQ(t, testDense(got.Norm), testDense(d.Norm))
	expect.EQ(t, got.PCs, d.PCs)
	expect.EQ(t, got.NumPCs, 2)
	expect.EQ(t, got.Embeddings["tsne"].Coords, d.Embeddings["tsne"].Coords)
	expect.EQ(t, got.Clusters, d.Clusters)
}

func TestDatasetSeedStable(t *testing.T) {
	a := testDataset(t, [][]float64{{1}, {2}}, []string{"A"})
	b := testDataset(t, [][]float64{{1}, {2}}, []string{"A"})
	expect.EQ(t, datasetSeed(a), datasetSeed(b))

	c := testDataset(t, [][]float64{{1}}, []string{"A"})
	expect.True(t, datasetSeed(a) != datasetSeed(c))
}

func TestStatsMerge(t *testing.T) {
	a := Stats{CellsLoaded: 10, CellsKept: 8, Clusters: 2, MarkersKept: 5}
	b := Stats{CellsLoaded: 3, CellsFilteredMito: 1, Clusters: 1}
	got := a.Merge(b)
	expect.EQ(t, got.CellsLoaded, 13)
	expect.EQ(t, got.CellsKept, 8)
	expect.EQ(t, got.CellsFilteredMito, 1)
	expect.EQ(t, got.Clusters, 3)
	expect.EQ(t, got.MarkersKept, 5)
	// Merge leaves the receiver untouched.
	expect.EQ(t, a.CellsLoaded, 10)
}
