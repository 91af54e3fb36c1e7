package singlecell

import (
	"math/rand"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// CellCyclePanels holds the two canonical phase gene panels.
type CellCyclePanels struct {
	S   []string
	G2M []string
}

// ScoreCellCycle assigns each cell a discrete phase in {G1, S, G2M} on a
// new snapshot. Each panel is scored as the cell's mean normalized
// expression over the panel genes minus its mean over a matched control
// pool; controls are sampled from expression bins so a panel of highly
// expressed genes is compared against similarly expressed background. The
// higher of the two scores wins; if neither is positive the cell is G1.
// This is a categorical classification, not a pseudo-time.
func ScoreCellCycle(d *Dataset, panels CellCyclePanels, opts CellCycleOpts) *Dataset {
	nGenes := d.NGenes()

	byName := make(map[string]int, nGenes)
	for g, name := range d.Genes {
		byName[strings.ToUpper(name)] = g
	}
	lookup := func(panel []string) []int {
		var idx []int
		for _, name := range panel {
			if g, ok := byName[strings.ToUpper(name)]; ok {
				idx = append(idx, g)
			}
		}
		return idx
	}
	sGenes := lookup(panels.S)
	g2mGenes := lookup(panels.G2M)
	log.Printf("cell cycle: matched %d/%d S genes, %d/%d G2M genes",
		len(sGenes), len(panels.S), len(g2mGenes), len(panels.G2M))

	bins := binGenesByExpression(d, opts.Bins)
	rng := rand.New(rand.NewSource(datasetSeed(d)))

	nd := d.derive("cell-cycle")
	nd.Cells = d.cloneCells()
	if len(sGenes) == 0 && len(g2mGenes) == 0 {
		log.Error.Printf("cell cycle: no panel genes matched; labeling all cells G1")
		for i := range nd.Cells {
			nd.Cells[i].Phase = PhaseG1
		}
		return nd
	}

	sScores := moduleScore(d, sGenes, bins, opts.CtrlSize, rng)
	g2mScores := moduleScore(d, g2mGenes, bins, opts.CtrlSize, rng)
	for i := range nd.Cells {
		c := &nd.Cells[i]
		c.SScore = sScores[i]
		c.G2MScore = g2mScores[i]
		switch {
		case c.SScore <= 0 && c.G2MScore <= 0:
			c.Phase = PhaseG1
		case c.SScore > c.G2MScore:
			c.Phase = PhaseS
		default:
			c.Phase = PhaseG2M
		}
	}
	return nd
}

// binGenesByExpression partitions genes into expression bins by k-means on
// their mean normalized expression, and returns per-bin gene lists along
// with each gene's bin.
func binGenesByExpression(d *Dataset, nBins int) [][]int {
	nCells := d.NCells()
	nGenes := d.NGenes()
	means := make([]float64, nGenes)
	ci := newColumnIndex(d.Norm)
	for g := 0; g < nGenes; g++ {
		var sum float64
		for _, v := range ci.vals[g] {
			sum += v
		}
		means[g] = sum / float64(nCells)
	}

	var obs clusters.Observations
	for g := 0; g < nGenes; g++ {
		obs = append(obs, clusters.Coordinates{means[g]})
	}
	if nBins > nGenes {
		nBins = nGenes
	}
	km := kmeans.New()
	cl, err := km.Partition(obs, nBins)
	if err != nil {
		// Degenerate inputs (e.g. all-equal means); fall back to one bin.
		log.Error.Printf("cell cycle: expression binning failed (%v); using a single bin", err)
		all := make([]int, nGenes)
		for g := range all {
			all[g] = g
		}
		return [][]int{all}
	}
	bins := make([][]int, len(cl))
	for g := 0; g < nGenes; g++ {
		b := cl.Nearest(obs[g])
		bins[b] = append(bins[b], g)
	}
	return bins
}

// moduleScore computes per-cell panel scores: mean expression over the
// panel genes minus mean expression over a control pool drawn from the
// panel genes' expression bins.
func moduleScore(d *Dataset, panel []int, bins [][]int, ctrlSize int, rng *rand.Rand) []float64 {
	nCells := d.NCells()
	scores := make([]float64, nCells)
	if len(panel) == 0 {
		return scores
	}

	binOf := make(map[int]int)
	for b, genes := range bins {
		for _, g := range genes {
			binOf[g] = b
		}
	}
	inPanel := make(map[int]bool, len(panel))
	for _, g := range panel {
		inPanel[g] = true
	}
	ctrl := map[int]bool{}
	for _, g := range panel {
		pool := bins[binOf[g]]
		for n := 0; n < ctrlSize && n < len(pool); n++ {
			pick := pool[rng.Intn(len(pool))]
			if !inPanel[pick] {
				ctrl[pick] = true
			}
		}
	}

	panelMean := meanExpression(d, panel)
	ctrlGenes := make([]int, 0, len(ctrl))
	for g := range ctrl {
		ctrlGenes = append(ctrlGenes, g)
	}
	ctrlMean := meanExpression(d, ctrlGenes)
	for i := 0; i < nCells; i++ {
		scores[i] = panelMean[i] - ctrlMean[i]
	}
	return scores
}

// meanExpression returns the per-cell mean normalized expression over the
// given genes.
func meanExpression(d *Dataset, genes []int) []float64 {
	nCells := d.NCells()
	out := make([]float64, nCells)
	if len(genes) == 0 {
		return out
	}
	want := make(map[int]bool, len(genes))
	for _, g := range genes {
		want[g] = true
	}
	for i := 0; i < nCells; i++ {
		var sum float64
		d.Norm.DoRowNonZero(i, func(_, j int, v float64) {
			if want[j] {
				sum += v
			}
		})
		out[i] = sum / float64(len(genes))
	}
	return out
}
