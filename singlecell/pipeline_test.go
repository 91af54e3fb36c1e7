package singlecell

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// synthCohort generates a cohort of three cell populations, each marked by
// its own block of signature genes over a shared baseline.
func synthCohort(nPerPop, nSignature, nBaseline int, rng *rand.Rand) (counts [][]float64, genes []string) {
	nGenes := 3*nSignature + nBaseline
	for g := 0; g < nGenes; g++ {
		genes = append(genes, fmt.Sprintf("GENE%03d", g))
	}
	for pop := 0; pop < 3; pop++ {
		for c := 0; c < nPerPop; c++ {
			row := make([]float64, nGenes)
			for g := 0; g < nBaseline; g++ {
				row[3*nSignature+g] = float64(5 + rng.Intn(10))
			}
			for g := 0; g < nSignature; g++ {
				row[pop*nSignature+g] = float64(40 + rng.Intn(40))
			}
			counts = append(counts, row)
		}
	}
	return counts, genes
}

func synthOpts() Opts {
	opts := DefaultOpts
	// Thresholds sized for the synthetic library, and a reduced iteration
	// budget to keep the solver fast.
	opts.QC = QCOpts{MinUMI: 50, MinGenes: 10, MinLogGenesPerUMI: 0.1, MaxMitoRatio: 0.99, MitoPrefix: "MT-"}
	opts.HVG.NumFeatures = 40
	opts.CellCycle = CellCycleOpts{Bins: 6, CtrlSize: 10}
	opts.Reduce.MaxComponents = 10
	opts.Embed = EmbedOpts{Perplexity: 10, LearningRate: 100, MaxIter: 60}
	opts.Neighbor = NeighborOpts{K: 10, SNNPrune: 1.0 / 15.0}
	return opts
}

func TestPipelineEndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	counts, genes := synthCohort(30, 8, 30, rng)
	d := testDataset(t, counts, genes)
	panels := CellCyclePanels{S: []string{"GENE024", "GENE025"}, G2M: []string{"GENE026", "GENE027"}}

	res, err := Run(d, panels, synthOpts())
	assert.NoError(t, err)
	final := res.Dataset

	expect.EQ(t, res.Stats.CellsLoaded, 90)
	expect.EQ(t, res.Stats.GenesLoaded, 54)
	expect.EQ(t, res.Stats.CellsKept, 90)
	expect.EQ(t, final.NCells(), 90)

	// Three planted populations should come back as roughly three
	// communities.
	expect.GE(t, final.NumClusters, 2)
	expect.LE(t, final.NumClusters, 4)
	expect.EQ(t, res.Stats.Clusters, final.NumClusters)
	for _, c := range final.Clusters {
		expect.True(t, c >= 0 && c < final.NumClusters)
	}

	// Cells of the same population land in the same cluster, at least
	// predominantly.
	for pop := 0; pop < 3; pop++ {
		tally := map[int]int{}
		for i := pop * 30; i < (pop+1)*30; i++ {
			tally[final.Clusters[i]]++
		}
		best := 0
		for _, n := range tally {
			if n > best {
				best = n
			}
		}
		expect.GE(t, best, 24)
	}

	// Every cell carries QC metrics, a phase and an assignment.
	for i := range final.Cells {
		c := &final.Cells[i]
		expect.True(t, c.NUMI > 0)
		expect.True(t, c.Phase != "")
	}

	// Both embeddings exist with one 2-D row per cell.
	for _, name := range []string{"tsne", "umap"} {
		e := final.Embeddings[name]
		assert.NotNil(t, e)
		expect.EQ(t, len(e.Coords), 90)
	}

	// The signature genes dominate the marker tables.
	assert.True(t, len(res.StrictMarkers) > 0)
	expect.GE(t, len(res.LooseMarkers), len(res.StrictMarkers))
	signature := 0
	for _, m := range res.StrictMarkers {
		if m.Gene < "GENE024" { // signature blocks occupy GENE000-023
			signature++
		}
		expect.True(t, m.AvgLog2FC >= DefaultOpts.StrictMarkers.MinLog2FC)
	}
	expect.GE(t, signature*10, len(res.StrictMarkers)*8)

	// The lineage chain is intact back to the load snapshot.
	expect.True(t, final.ParentID != "")
	expect.True(t, final.SnapshotID != d.SnapshotID)
}

func TestPipelineAllCellsFiltered(t *testing.T) {
	counts := [][]float64{{1, 0}, {0, 1}}
	d := testDataset(t, counts, []string{"A", "B"})
	_, err := Run(d, CellCyclePanels{}, DefaultOpts)
	assert.NotNil(t, err)
}
