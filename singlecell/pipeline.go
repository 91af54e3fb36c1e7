package singlecell

import (
	"github.com/grailbio/base/log"
)

// Result bundles the final snapshot of a pipeline run with the artifacts
// that are not part of the per-cell table: the SNN graph and the two
// marker tables.
type Result struct {
	Dataset *Dataset
	Graph   *SNNGraph
	// StrictMarkers and LooseMarkers are independent runs of the marker
	// finder under the two threshold configurations.
	StrictMarkers []Marker
	LooseMarkers  []Marker
	Stats         Stats
}

// Run executes the core pipeline stages in order on a loaded dataset:
// QC metrics and filtering, normalization, variable-feature selection,
// cell-cycle scoring, PCA with elbow selection, visualization embeddings,
// SNN clustering, and both marker-finder configurations. Any stage error
// aborts the remainder; there is no retry or partial-failure path.
func Run(d *Dataset, panels CellCyclePanels, opts Opts) (*Result, error) {
	res := &Result{}
	res.Stats.CellsLoaded = d.NCells()
	res.Stats.GenesLoaded = d.NGenes()

	d = ComputeQCMetrics(d, opts.QC)
	d, err := FilterCells(d, opts.QC, &res.Stats)
	if err != nil {
		return nil, err
	}
	d = Normalize(d, opts.Normalize, &res.Stats)
	d = SelectVariableFeatures(d, opts.HVG, &res.Stats)
	d = ScoreCellCycle(d, panels, opts.CellCycle)
	if d, err = RunPCA(d, opts.Reduce, &res.Stats); err != nil {
		return nil, err
	}
	g, err := BuildSNNGraph(d, opts.Neighbor)
	if err != nil {
		return nil, err
	}
	if d, err = RunEmbeddings(d, g, opts.Embed); err != nil {
		return nil, err
	}
	if d, err = ClusterCells(d, g, opts.Cluster, &res.Stats); err != nil {
		return nil, err
	}
	if res.StrictMarkers, err = FindMarkers(d, opts.StrictMarkers, &res.Stats); err != nil {
		return nil, err
	}
	if res.LooseMarkers, err = FindMarkers(d, opts.LooseMarkers, &res.Stats); err != nil {
		return nil, err
	}
	res.Dataset = d
	res.Graph = g
	log.Printf("pipeline: %d cells, %d clusters, %d+%d marker records",
		d.NCells(), d.NumClusters, len(res.StrictMarkers), len(res.LooseMarkers))
	return res, nil
}
