package singlecell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testDataset(t *testing.T, counts [][]float64, genes []string) *Dataset {
	t.Helper()
	barcodes := make([]string, len(counts))
	for i := range barcodes {
		barcodes[i] = "BC" + string(rune('A'+i))
	}
	d, err := NewDataset(testCSR(counts), barcodes, genes)
	assert.NoError(t, err)
	return d
}

func TestComputeQCMetrics(t *testing.T) {
	d := testDataset(t, [][]float64{
		{10, 0, 40, 50},  // 100 UMIs over 3 genes, 50 mito
		{5, 5, 0, 0},     // 10 UMIs over 2 genes, no mito
		{0, 0, 0, 0},     // empty droplet
	}, []string{"ACTB", "CD3E", "GAPDH", "MT-CO1"})

	nd := ComputeQCMetrics(d, DefaultOpts.QC)
	expect.True(t, nd.SnapshotID != d.SnapshotID)
	expect.EQ(t, nd.ParentID, d.SnapshotID)

	expect.EQ(t, nd.Cells[0].NUMI, 100.0)
	expect.EQ(t, nd.Cells[0].NGene, 3)
	expectNear(t, nd.Cells[0].MitoRatio, 0.5, 1e-12)
	// log10(3)/log10(100)
	expectNear(t, nd.Cells[0].LogGenesPerUMI, 0.2385606273, 1e-9)

	expect.EQ(t, nd.Cells[1].NUMI, 10.0)
	expect.EQ(t, nd.Cells[1].MitoRatio, 0.0)

	expect.EQ(t, nd.Cells[2].NUMI, 0.0)
	expect.EQ(t, nd.Cells[2].NGene, 0)
	expect.EQ(t, nd.Cells[2].LogGenesPerUMI, 0.0)

	// The input snapshot must be untouched.
	expect.EQ(t, d.Cells[0].NUMI, 0.0)
}

func TestPassQCBoundaries(t *testing.T) {
	opts := QCOpts{MinUMI: 500, MinGenes: 250, MinLogGenesPerUMI: 0.80, MaxMitoRatio: 0.20}
	good := CellMeta{NUMI: 500, NGene: 250, LogGenesPerUMI: 0.81, MitoRatio: 0.19}
	expect.True(t, passQC(&good, opts))

	// Inclusive floors, exclusive complexity and mito bounds.
	c := good
	c.NUMI = 499
	expect.False(t, passQC(&c, opts))
	c = good
	c.NGene = 249
	expect.False(t, passQC(&c, opts))
	c = good
	c.LogGenesPerUMI = 0.80
	expect.False(t, passQC(&c, opts))
	c = good
	c.MitoRatio = 0.20
	expect.False(t, passQC(&c, opts))
}

func TestFilterCellsConjunction(t *testing.T) {
	d := testDataset(t, [][]float64{
		{600, 0, 0, 0},
		{600, 0, 0, 0},
		{600, 0, 0, 0},
		{600, 0, 0, 0},
	}, []string{"ACTB", "CD3E", "GAPDH", "MT-CO1"})
	opts := QCOpts{MinUMI: 500, MinGenes: 1, MinLogGenesPerUMI: 0.1, MaxMitoRatio: 0.20}
	// Metrics are injected directly so every clause is exercised in
	// isolation of the count matrix.
	d.Cells[0] = CellMeta{Barcode: "BCA", NUMI: 600, NGene: 300, LogGenesPerUMI: 0.9, MitoRatio: 0.05}
	d.Cells[1] = CellMeta{Barcode: "BCB", NUMI: 400, NGene: 300, LogGenesPerUMI: 0.9, MitoRatio: 0.05}
	d.Cells[2] = CellMeta{Barcode: "BCC", NUMI: 600, NGene: 300, LogGenesPerUMI: 0.05, MitoRatio: 0.05}
	d.Cells[3] = CellMeta{Barcode: "BCD", NUMI: 400, NGene: 300, LogGenesPerUMI: 0.9, MitoRatio: 0.5}

	var stats Stats
	nd, err := FilterCells(d, opts, &stats)
	assert.NoError(t, err)
	expect.EQ(t, nd.NCells(), 1)
	expect.EQ(t, nd.Barcodes, []string{"BCA"})
	expect.EQ(t, stats.CellsKept, 1)
	// Cell 3 fails two clauses; each failed clause counts once.
	expect.EQ(t, stats.CellsFilteredLowUMI, 2)
	expect.EQ(t, stats.CellsFilteredComplexity, 1)
	expect.EQ(t, stats.CellsFilteredMito, 1)
	expect.EQ(t, stats.CellsFilteredLowGenes, 0)

	r, c := nd.Counts.Dims()
	expect.EQ(t, r, 1)
	expect.EQ(t, c, 4)
}

func TestFilterCellsAllRemoved(t *testing.T) {
	d := testDataset(t, [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}, []string{"ACTB", "CD3E", "GAPDH", "MT-CO1"})
	d = ComputeQCMetrics(d, DefaultOpts.QC)

	var stats Stats
	_, err := FilterCells(d, DefaultOpts.QC, &stats)
	assert.NotNil(t, err)
	expect.EQ(t, stats.CellsKept, 0)
}

func TestSelectRows(t *testing.T) {
	m := testCSR([][]float64{
		{1, 0, 2},
		{0, 3, 0},
		{4, 5, 6},
	})
	got := selectRows(m, []int{2, 0})
	expect.EQ(t, testDense(got), [][]float64{
		{4, 5, 6},
		{1, 0, 2},
	})
}
