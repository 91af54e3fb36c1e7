package atlas

import (
	"sort"

	"github.com/scgenomics/scrna/singlecell"
)

// LabelSummary characterizes the most frequent coarse labels by their most
// expressed genes, for the report's summary heatmap. It feeds
// visualization only; no re-clustering or correction uses it.
type LabelSummary struct {
	Labels []string
	Genes  []string
	// Mean is labels x genes: mean normalized expression of each gene in
	// the cells carrying each label.
	Mean [][]float64
}

// Summarize picks the nLabels most frequent coarse labels (pruned cells
// excluded) and, for each, its nGenes top mean-expressed genes; the gene
// axis is the union of the per-label top lists.
func Summarize(d *singlecell.Dataset, nLabels, nGenes int) *LabelSummary {
	counts := map[string]int{}
	for i := range d.Cells {
		if l := d.Cells[i].MainLabel; l != "" {
			counts[l]++
		}
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(a, b int) bool {
		if counts[labels[a]] != counts[labels[b]] {
			return counts[labels[a]] > counts[labels[b]]
		}
		return labels[a] < labels[b]
	})
	if len(labels) > nLabels {
		labels = labels[:nLabels]
	}

	// Per-label mean expression over every gene.
	labelIdx := make(map[string]int, len(labels))
	for i, l := range labels {
		labelIdx[l] = i
	}
	sums := make([][]float64, len(labels))
	for i := range sums {
		sums[i] = make([]float64, d.NGenes())
	}
	nCells := make([]int, len(labels))
	for i := range d.Cells {
		li, ok := labelIdx[d.Cells[i].MainLabel]
		if !ok {
			continue
		}
		nCells[li]++
		d.Norm.DoRowNonZero(i, func(_, j int, v float64) {
			sums[li][j] += v
		})
	}
	for li := range sums {
		if nCells[li] == 0 {
			continue
		}
		for j := range sums[li] {
			sums[li][j] /= float64(nCells[li])
		}
	}

	// Union of each label's top genes.
	geneSet := map[int]bool{}
	for li := range labels {
		order := make([]int, d.NGenes())
		for g := range order {
			order[g] = g
		}
		sort.Slice(order, func(a, b int) bool { return sums[li][order[a]] > sums[li][order[b]] })
		for _, g := range order[:min(nGenes, len(order))] {
			geneSet[g] = true
		}
	}
	genes := make([]int, 0, len(geneSet))
	for g := range geneSet {
		genes = append(genes, g)
	}
	sort.Ints(genes)

	s := &LabelSummary{Labels: labels}
	for _, g := range genes {
		s.Genes = append(s.Genes, d.Genes[g])
	}
	s.Mean = make([][]float64, len(labels))
	for li := range labels {
		s.Mean[li] = make([]float64, len(genes))
		for p, g := range genes {
			s.Mean[li][p] = sums[li][g]
		}
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
