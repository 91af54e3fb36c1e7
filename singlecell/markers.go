package singlecell

import (
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Marker is one (cluster, gene) differential-expression record. The tsv
// tags drive the machine-readable export.
type Marker struct {
	Cluster   int     `tsv:"cluster"`
	Gene      string  `tsv:"gene"`
	AvgLog2FC float64 `tsv:"avg_log2FC"`
	// Pct1 and Pct2 are the fractions of cells expressing the gene inside
	// and outside the cluster; PctDiff = Pct1 - Pct2.
	Pct1    float64 `tsv:"pct.1"`
	Pct2    float64 `tsv:"pct.2"`
	PctDiff float64 `tsv:"pct.diff"`
	PVal    float64 `tsv:"p_val"`
	PAdj    float64 `tsv:"p_val_adj"`
}

// FindMarkers performs one-vs-rest differential testing for every cluster
// and returns the up-regulated markers passing the thresholds. Genes enter
// the rank-sum test only when expressed in at least opts.MinPct of cells
// in either group and when their average log2 fold-change is at least
// opts.MinLog2FC; only positive markers are retained. P-values are
// BH-adjusted within each cluster. Two configurations of this operation
// are typically run side by side; their outputs are independent tables,
// never merged.
func FindMarkers(d *Dataset, opts MarkerOpts, stats *Stats) ([]Marker, error) {
	if d.Norm == nil {
		return nil, errors.E(errors.Invalid, "marker detection requires normalized data")
	}
	if d.NumClusters == 0 {
		return nil, errors.E(errors.Invalid, "marker detection requires cluster assignments")
	}
	nCells := d.NCells()
	nGenes := d.NGenes()
	ci := newColumnIndex(d.Norm)

	var all []Marker
	for cluster := 0; cluster < d.NumClusters; cluster++ {
		inCluster := make([]bool, nCells)
		n1 := 0
		for i, c := range d.Clusters {
			if c == cluster {
				inCluster[i] = true
				n1++
			}
		}
		n2 := nCells - n1
		if n1 == 0 || n2 == 0 {
			continue
		}

		rows := make([]Marker, nGenes)
		tested := make([]bool, nGenes)
		err := traverse.Each(nGenes, func(g int) error {
			var vals1, vals2 []float64
			var sum1, sum2 float64
			for n, cell := range ci.cells[g] {
				v := ci.vals[g][n]
				if inCluster[cell] {
					vals1 = append(vals1, v)
					sum1 += math.Expm1(v)
				} else {
					vals2 = append(vals2, v)
					sum2 += math.Expm1(v)
				}
			}
			pct1 := float64(len(vals1)) / float64(n1)
			pct2 := float64(len(vals2)) / float64(n2)
			if pct1 < opts.MinPct && pct2 < opts.MinPct {
				return nil
			}
			log2FC := math.Log2((sum1/float64(n1) + 1) / (sum2/float64(n2) + 1))
			if log2FC < opts.MinLog2FC {
				return nil
			}
			rows[g] = Marker{
				Cluster:   cluster,
				Gene:      d.Genes[g],
				AvgLog2FC: log2FC,
				Pct1:      pct1,
				Pct2:      pct2,
				PctDiff:   pct1 - pct2,
				PVal:      wilcoxonRankSum(vals1, n1, vals2, n2),
			}
			tested[g] = true
			return nil
		})
		if err != nil {
			return nil, err
		}

		var kept []Marker
		var pvals []float64
		for g := 0; g < nGenes; g++ {
			if tested[g] {
				kept = append(kept, rows[g])
				pvals = append(pvals, rows[g].PVal)
			}
		}
		if stats != nil {
			stats.MarkersTested += len(kept)
		}
		adj := benjaminiHochberg(pvals)
		for i := range kept {
			kept[i].PAdj = adj[i]
		}
		sort.Slice(kept, func(a, b int) bool {
			if kept[a].PAdj != kept[b].PAdj {
				return kept[a].PAdj < kept[b].PAdj
			}
			return kept[a].AvgLog2FC > kept[b].AvgLog2FC
		})
		all = append(all, kept...)
	}
	if stats != nil {
		stats.MarkersKept += len(all)
	}
	log.Printf("markers: %d records across %d clusters (minPct=%g, minLog2FC=%g)",
		len(all), d.NumClusters, opts.MinPct, opts.MinLog2FC)
	return all, nil
}

// TopMarkers returns up to n top-ranked markers per cluster from a table
// produced by FindMarkers.
func TopMarkers(markers []Marker, n int) map[int][]Marker {
	top := map[int][]Marker{}
	for _, m := range markers {
		if len(top[m.Cluster]) < n {
			top[m.Cluster] = append(top[m.Cluster], m)
		}
	}
	return top
}
