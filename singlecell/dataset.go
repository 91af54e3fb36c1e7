package singlecell

import (
	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/james-bowman/sparse"
)

// Phase labels assigned by ScoreCellCycle.
const (
	PhaseG1  = "G1"
	PhaseS   = "S"
	PhaseG2M = "G2M"
)

// ClusterUnassigned marks a cell that has not been clustered yet.
const ClusterUnassigned = -1

// CellMeta is the per-cell metadata row. Columns accumulate across stages;
// a stage only ever fills columns it owns on a fresh snapshot.
type CellMeta struct {
	Barcode string
	// QC metrics.
	NUMI           float64
	NGene          int
	LogGenesPerUMI float64
	MitoRatio      float64
	// Cell-cycle scores and the derived phase label.
	SScore   float64
	G2MScore float64
	Phase    string
	// Cluster is the community id, by descending community size.
	Cluster int
	// MainLabel and FineLabel are the atlas annotations; empty means the
	// call was pruned for low confidence.
	MainLabel string
	FineLabel string
}

// GeneStat holds the per-gene moments used by variable-feature selection.
type GeneStat struct {
	Mean float64
	Var  float64
	// StdVar is the variance of the clipped standardized counts under
	// the fitted mean-variance trend; genes are ranked by it.
	StdVar   float64
	Variable bool
}

// Embedding is a named per-cell coordinate table. Write-once: embeddings
// are never recomputed or mutated after creation.
type Embedding struct {
	Name   string
	Coords [][]float64 // one row per cell
}

// Dataset is one immutable pipeline snapshot: the count matrix, per-cell
// and per-gene metadata, and everything derived so far. Stages return a new
// Dataset whose ParentID references the snapshot they consumed; shared
// fields are carried by reference and must not be written through.
type Dataset struct {
	SnapshotID string
	ParentID   string
	// Stage names the operation that produced this snapshot.
	Stage string

	// Counts is the raw count matrix, cells x genes.
	Counts *sparse.CSR
	// Norm is the depth-normalized, log1p-transformed matrix. Nil until
	// Normalize has run.
	Norm *sparse.CSR

	Genes    []string
	Barcodes []string
	Cells    []CellMeta

	// GeneStats and Variable are recomputed whenever variable-feature
	// selection runs; Variable lists gene indices by descending StdVar.
	GeneStats []GeneStat
	Variable  []int

	// PCs holds the retained principal-component coordinates per cell.
	PCs [][]float64
	// PCVariance is the percent variance explained per computed component.
	PCVariance []float64
	// NumPCs is the dimensionality chosen by the elbow rule.
	NumPCs int

	Embeddings map[string]*Embedding

	// Clusters is the per-cell community id, ClusterUnassigned before
	// clustering.
	Clusters    []int
	NumClusters int
}

// NewDataset builds the initial snapshot from a loaded count matrix.
// counts is cells x genes; len(barcodes) and len(genes) must match its
// dimensions.
func NewDataset(counts *sparse.CSR, barcodes, genes []string) (*Dataset, error) {
	r, c := counts.Dims()
	if r != len(barcodes) || c != len(genes) {
		return nil, errors.E(errors.Invalid, "matrix dimensions do not match barcode/gene lists")
	}
	d := &Dataset{
		SnapshotID: uuid.New().String(),
		Stage:      "load",
		Counts:     counts,
		Genes:      genes,
		Barcodes:   barcodes,
		Cells:      make([]CellMeta, r),
		Embeddings: map[string]*Embedding{},
		Clusters:   make([]int, r),
	}
	for i := range d.Cells {
		d.Cells[i].Barcode = barcodes[i]
		d.Cells[i].Cluster = ClusterUnassigned
		d.Clusters[i] = ClusterUnassigned
	}
	return d, nil
}

// derive shallow-copies the snapshot under a new id, recording stage as
// its producer. Slices the new stage intends to write must be re-allocated
// by the caller before writing.
func (d *Dataset) derive(stage string) *Dataset {
	nd := *d
	nd.ParentID = d.SnapshotID
	nd.SnapshotID = uuid.New().String()
	nd.Stage = stage
	return &nd
}

// NCells returns the number of cells in the snapshot.
func (d *Dataset) NCells() int { return len(d.Barcodes) }

// NGenes returns the number of genes in the snapshot.
func (d *Dataset) NGenes() int { return len(d.Genes) }

// cloneCells returns a copy of the cell metadata table for a stage that
// needs to fill its own columns.
func (d *Dataset) cloneCells() []CellMeta {
	cells := make([]CellMeta, len(d.Cells))
	copy(cells, d.Cells)
	return cells
}
