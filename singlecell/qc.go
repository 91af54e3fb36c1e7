package singlecell

import (
	"math"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/james-bowman/sparse"
)

// ComputeQCMetrics fills the per-cell QC columns (nUMI, nGene,
// log10 genes-per-UMI, mitochondrial fraction) on a new snapshot.
func ComputeQCMetrics(d *Dataset, opts QCOpts) *Dataset {
	nd := d.derive("qc-metrics")
	nd.Cells = d.cloneCells()

	mito := make([]bool, len(d.Genes))
	nMito := 0
	prefix := strings.ToUpper(opts.MitoPrefix)
	for g, name := range d.Genes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			mito[g] = true
			nMito++
		}
	}
	if nMito == 0 {
		log.Error.Printf("no genes matching mitochondrial prefix %q; mitoRatio will be zero for all cells", opts.MitoPrefix)
	}

	for i := range nd.Cells {
		var numi, mitoSum float64
		ngene := 0
		d.Counts.DoRowNonZero(i, func(_, j int, v float64) {
			numi += v
			ngene++
			if mito[j] {
				mitoSum += v
			}
		})
		c := &nd.Cells[i]
		c.NUMI = numi
		c.NGene = ngene
		if numi > 1 && ngene > 0 {
			c.LogGenesPerUMI = math.Log10(float64(ngene)) / math.Log10(numi)
		}
		if numi > 0 {
			c.MitoRatio = mitoSum / numi
		}
	}
	return nd
}

// passQC reports whether the cell passes every threshold. The filter is a
// strict conjunction: failing any one clause drops the cell.
func passQC(c *CellMeta, opts QCOpts) bool {
	return c.NUMI >= opts.MinUMI &&
		c.NGene >= opts.MinGenes &&
		c.LogGenesPerUMI > opts.MinLogGenesPerUMI &&
		c.MitoRatio < opts.MaxMitoRatio
}

// FilterCells drops cells failing QC and returns a snapshot restricted to
// the survivors. The QC columns must have been computed first. A dataset
// filtered down to zero cells is a fatal condition: every later stage
// would fail obscurely, so it is rejected here.
func FilterCells(d *Dataset, opts QCOpts, stats *Stats) (*Dataset, error) {
	keep := make([]int, 0, len(d.Cells))
	for i := range d.Cells {
		c := &d.Cells[i]
		ok := true
		if c.NUMI < opts.MinUMI {
			stats.CellsFilteredLowUMI++
			ok = false
		}
		if c.NGene < opts.MinGenes {
			stats.CellsFilteredLowGenes++
			ok = false
		}
		if c.LogGenesPerUMI <= opts.MinLogGenesPerUMI {
			stats.CellsFilteredComplexity++
			ok = false
		}
		if c.MitoRatio >= opts.MaxMitoRatio {
			stats.CellsFilteredMito++
			ok = false
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, errors.E(errors.Invalid, "all cells removed by QC filtering; check thresholds against the input library")
	}
	stats.CellsKept += len(keep)

	nd := d.derive("qc-filter")
	nd.Counts = selectRows(d.Counts, keep)
	nd.Barcodes = make([]string, len(keep))
	nd.Cells = make([]CellMeta, len(keep))
	nd.Clusters = make([]int, len(keep))
	for n, i := range keep {
		nd.Barcodes[n] = d.Barcodes[i]
		nd.Cells[n] = d.Cells[i]
		nd.Clusters[n] = ClusterUnassigned
	}
	log.Printf("QC filter: kept %d of %d cells", len(keep), len(d.Cells))
	return nd, nil
}

// selectRows builds a new CSR holding only the given rows, in order.
func selectRows(m *sparse.CSR, rows []int) *sparse.CSR {
	_, c := m.Dims()
	ia := make([]int, 1, len(rows)+1)
	var ja []int
	var data []float64
	for _, i := range rows {
		m.DoRowNonZero(i, func(_, j int, v float64) {
			ja = append(ja, j)
			data = append(data, v)
		})
		ia = append(ia, len(ja))
	}
	return sparse.NewCSR(len(rows), c, ia, ja, data)
}
