package singlecell

import (
	"bytes"
	"encoding/gob"
)

// datasetGob mirrors Dataset with the sparse matrices flattened to
// coordinate form, since the CSR internals are not gob-encodable.
type datasetGob struct {
	SnapshotID  string
	ParentID    string
	Stage       string
	Counts      *Triplets
	Norm        *Triplets
	Genes       []string
	Barcodes    []string
	Cells       []CellMeta
	GeneStats   []GeneStat
	Variable    []int
	PCs         [][]float64
	PCVariance  []float64
	NumPCs      int
	Embeddings  map[string]*Embedding
	Clusters    []int
	NumClusters int
}

// GobEncode implements gob.GobEncoder so snapshots can be checkpointed to
// the session recordio file.
func (d *Dataset) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(datasetGob{
		SnapshotID:  d.SnapshotID,
		ParentID:    d.ParentID,
		Stage:       d.Stage,
		Counts:      ToTriplets(d.Counts),
		Norm:        ToTriplets(d.Norm),
		Genes:       d.Genes,
		Barcodes:    d.Barcodes,
		Cells:       d.Cells,
		GeneStats:   d.GeneStats,
		Variable:    d.Variable,
		PCs:         d.PCs,
		PCVariance:  d.PCVariance,
		NumPCs:      d.NumPCs,
		Embeddings:  d.Embeddings,
		Clusters:    d.Clusters,
		NumClusters: d.NumClusters,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (d *Dataset) GobDecode(b []byte) error {
	var g datasetGob
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&g); err != nil {
		return err
	}
	*d = Dataset{
		SnapshotID:  g.SnapshotID,
		ParentID:    g.ParentID,
		Stage:       g.Stage,
		Counts:      g.Counts.ToCSR(),
		Norm:        g.Norm.ToCSR(),
		Genes:       g.Genes,
		Barcodes:    g.Barcodes,
		Cells:       g.Cells,
		GeneStats:   g.GeneStats,
		Variable:    g.Variable,
		PCs:         g.PCs,
		PCVariance:  g.PCVariance,
		NumPCs:      g.NumPCs,
		Embeddings:  g.Embeddings,
		Clusters:    g.Clusters,
		NumClusters: g.NumClusters,
	}
	return nil
}
