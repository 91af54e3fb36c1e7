package atlas

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/stat"

	"github.com/scgenomics/scrna/singlecell"
)

// Opts controls reference classification.
type Opts struct {
	// PruneDelta is the minimum margin between the best label score and
	// the median score; calls below the margin are withheld.
	PruneDelta float64
	// MinSharedGenes is the minimum overlap between the dataset's
	// variable genes and the reference genes.
	MinSharedGenes int
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	PruneDelta:     0.05,
	MinSharedGenes: 20,
}

// Annotate classifies every cell against the reference at both label
// granularities and returns a snapshot carrying the labels. Each cell is
// scored by Spearman correlation between its normalized expression and
// each label's mean reference profile over the shared variable genes; the
// best label wins, or the call is pruned (left empty) when the margin over
// the median score is below opts.PruneDelta.
func Annotate(d *singlecell.Dataset, ref *Reference, opts Opts, stats *singlecell.Stats) (*singlecell.Dataset, error) {
	if d.Norm == nil {
		return nil, errors.E(errors.Invalid, "atlas: annotation requires normalized data")
	}
	shared, refRows := sharedGenes(d, ref)
	if len(shared) < opts.MinSharedGenes {
		return nil, errors.E(errors.Invalid, "atlas: too few genes shared with the reference")
	}
	log.Printf("atlas: classifying %d cells over %d shared genes", d.NCells(), len(shared))

	mainProfiles := labelProfiles(ref, refRows, func(s *Sample) string { return s.Main })
	fineProfiles := labelProfiles(ref, refRows, func(s *Sample) string { return s.Fine })

	mainLabels := make([]string, d.NCells())
	fineLabels := make([]string, d.NCells())
	pos := make(map[int]int, len(shared)) // gene index -> vector position
	for p, g := range shared {
		pos[g] = p
	}
	expr := make([]float64, len(shared))
	for i := 0; i < d.NCells(); i++ {
		for p := range expr {
			expr[p] = 0
		}
		d.Norm.DoRowNonZero(i, func(_, j int, v float64) {
			if p, ok := pos[j]; ok {
				expr[p] = v
			}
		})
		cellRanks := ranks(expr)
		mainLabels[i] = classify(cellRanks, mainProfiles, opts.PruneDelta)
		fineLabels[i] = classify(cellRanks, fineProfiles, opts.PruneDelta)
		if stats != nil {
			if mainLabels[i] != "" {
				stats.CellsAnnotated++
			} else {
				stats.CellsPruned++
			}
		}
	}
	return d.WithAnnotations(mainLabels, fineLabels)
}

// sharedGenes intersects the dataset's variable genes (or all genes when
// no selection has run) with the reference genes. It returns the dataset
// gene indices and, parallel to them, the reference row indices.
func sharedGenes(d *singlecell.Dataset, ref *Reference) (dsGenes, refGenes []int) {
	refByName := make(map[string]int, len(ref.Genes))
	for r, name := range ref.Genes {
		refByName[name] = r
	}
	candidates := d.Variable
	if len(candidates) == 0 {
		candidates = make([]int, d.NGenes())
		for g := range candidates {
			candidates[g] = g
		}
	}
	for _, g := range candidates {
		if r, ok := refByName[d.Genes[g]]; ok {
			dsGenes = append(dsGenes, g)
			refGenes = append(refGenes, r)
		}
	}
	return dsGenes, refGenes
}

type profile struct {
	label string
	ranks []float64
}

// labelProfiles averages the reference samples per label over the shared
// gene rows and rank-transforms each profile once.
func labelProfiles(ref *Reference, refRows []int, labelOf func(*Sample) string) []profile {
	sums := map[string][]float64{}
	counts := map[string]int{}
	for i := range ref.Samples {
		s := &ref.Samples[i]
		label := labelOf(s)
		if sums[label] == nil {
			sums[label] = make([]float64, len(refRows))
		}
		for p, r := range refRows {
			sums[label][p] += s.Expr[r]
		}
		counts[label]++
	}
	labels := make([]string, 0, len(sums))
	for label := range sums {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	profiles := make([]profile, 0, len(labels))
	for _, label := range labels {
		mean := sums[label]
		for p := range mean {
			mean[p] /= float64(counts[label])
		}
		profiles = append(profiles, profile{label: label, ranks: ranks(mean)})
	}
	return profiles
}

// classify scores the rank-transformed cell against every label profile
// (Spearman correlation = Pearson on ranks) and returns the best label,
// or "" when the margin over the median score is below delta.
func classify(cellRanks []float64, profiles []profile, delta float64) string {
	if len(profiles) == 0 {
		return ""
	}
	scores := make([]float64, len(profiles))
	best := 0
	for i, p := range profiles {
		scores[i] = stat.Correlation(cellRanks, p.ranks, nil)
		if scores[i] > scores[best] {
			best = i
		}
	}
	if len(profiles) > 2 {
		sorted := append([]float64(nil), scores...)
		sort.Float64s(sorted)
		median := sorted[len(sorted)/2]
		if scores[best]-median < delta {
			return ""
		}
	}
	return profiles[best].label
}

// ranks returns average-tie ranks of v.
func ranks(v []float64) []float64 {
	n := len(v)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })
	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && v[idx[j]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}
