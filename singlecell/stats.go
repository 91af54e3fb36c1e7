package singlecell

// Stats represents high-level counters accumulated over one pipeline run.
type Stats struct {
	// CellsLoaded is the number of barcodes read from the input matrix.
	CellsLoaded int
	// GenesLoaded is the number of "Gene Expression" features read.
	GenesLoaded int
	// CellsFilteredLowUMI counts cells dropped for a total UMI count
	// below QCOpts.MinUMI. A cell failing several thresholds is counted
	// once per failed threshold.
	CellsFilteredLowUMI int
	// CellsFilteredLowGenes counts cells dropped for too few detected genes.
	CellsFilteredLowGenes int
	// CellsFilteredComplexity counts cells dropped for a low
	// genes-per-UMI ratio.
	CellsFilteredComplexity int
	// CellsFilteredMito counts cells dropped for a high mitochondrial
	// fraction.
	CellsFilteredMito int
	// CellsKept is the number of cells surviving QC.
	CellsKept int
	// Renormalized counts extra Normalize invocations on an
	// already-normalized snapshot.
	Renormalized int
	// VariableGenes is the number of genes flagged as variable features.
	VariableGenes int
	// ComponentsUsed is the PCA dimensionality chosen by the elbow rule.
	ComponentsUsed int
	// Clusters is the number of graph communities found.
	Clusters int
	// MarkersTested and MarkersKept count (cluster, gene) pairs entering
	// and surviving the differential tests, summed over both marker
	// configurations.
	MarkersTested int
	MarkersKept   int
	// CellsAnnotated and CellsPruned count cells that received a coarse
	// atlas label and cells whose call was withheld for low confidence.
	CellsAnnotated int
	CellsPruned    int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.CellsLoaded += o.CellsLoaded
	s.GenesLoaded += o.GenesLoaded
	s.CellsFilteredLowUMI += o.CellsFilteredLowUMI
	s.CellsFilteredLowGenes += o.CellsFilteredLowGenes
	s.CellsFilteredComplexity += o.CellsFilteredComplexity
	s.CellsFilteredMito += o.CellsFilteredMito
	s.CellsKept += o.CellsKept
	s.Renormalized += o.Renormalized
	s.VariableGenes += o.VariableGenes
	s.ComponentsUsed += o.ComponentsUsed
	s.Clusters += o.Clusters
	s.MarkersTested += o.MarkersTested
	s.MarkersKept += o.MarkersKept
	s.CellsAnnotated += o.CellsAnnotated
	s.CellsPruned += o.CellsPruned
	return s
}
