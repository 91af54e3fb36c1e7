package singlecell

// QCOpts holds the per-cell quality-control thresholds. A cell survives
// filtering only if it passes every threshold (strict conjunction).
type QCOpts struct {
	// MinUMI is the minimum total transcript (UMI) count per cell.
	MinUMI float64
	// MinGenes is the minimum number of distinct genes detected per cell.
	MinGenes int
	// MinLogGenesPerUMI is the minimum complexity score,
	// log10(nGene)/log10(nUMI). Low values indicate low-complexity
	// libraries such as dying cells or empty droplets.
	MinLogGenesPerUMI float64
	// MaxMitoRatio is the maximum fraction of counts assigned to
	// mitochondrial genes.
	MaxMitoRatio float64
	// MitoPrefix identifies mitochondrial genes by name prefix,
	// case-insensitively.
	MitoPrefix string
}

// NormalizeOpts controls depth normalization.
type NormalizeOpts struct {
	// ScaleFactor is the common per-cell depth that counts are rescaled
	// to before the log1p transform.
	ScaleFactor float64
}

// HVGOpts controls variable-feature selection.
type HVGOpts struct {
	// NumFeatures is the number of top-dispersion genes retained.
	NumFeatures int
	// TrendSpan is the fraction of genes included in the local
	// mean-variance trend fit window.
	TrendSpan float64
}

// CellCycleOpts controls cell-cycle phase scoring.
type CellCycleOpts struct {
	// Bins is the number of expression bins used to draw control genes.
	Bins int
	// CtrlSize is the number of control genes sampled per panel gene.
	CtrlSize int
}

// ReduceOpts controls PCA and the component-selection elbow rule.
type ReduceOpts struct {
	// MaxComponents is the number of principal components computed.
	MaxComponents int
	// ScaleMax clips per-gene z-scores before PCA.
	ScaleMax float64
	// CumVarCutoff and PctVarCutoff pick the first component where the
	// cumulative percent variance exceeds CumVarCutoff while the
	// per-component percent variance is below PctVarCutoff.
	CumVarCutoff float64
	PctVarCutoff float64
	// VarDropCutoff picks the last component whose predecessor explains
	// more than VarDropCutoff percentage points of additional variance.
	VarDropCutoff float64
}

// EmbedOpts controls the 2-D visualization embeddings.
type EmbedOpts struct {
	// Perplexity and LearningRate are passed through to the t-SNE solver.
	Perplexity   float64
	LearningRate float64
	// MaxIter bounds both the t-SNE solver and the refinement steps of
	// the graph embedding.
	MaxIter int
}

// NeighborOpts controls the shared-nearest-neighbor graph.
type NeighborOpts struct {
	// K is the number of nearest neighbors per cell.
	K int
	// SNNPrune drops SNN edges whose Jaccard overlap is below this value.
	SNNPrune float64
}

// ClusterOpts controls the modularity-optimization partitioner.
type ClusterOpts struct {
	// Resolution tunes partition granularity; higher values yield more,
	// smaller clusters.
	Resolution float64
}

// MarkerOpts controls one-vs-rest differential marker detection.
type MarkerOpts struct {
	// MinPct gates genes expressed in at least this fraction of cells in
	// either the cluster or the rest.
	MinPct float64
	// MinLog2FC gates genes by average log2 fold-change.
	MinLog2FC float64
}

// Opts aggregates the per-stage options of the pipeline.
type Opts struct {
	QC        QCOpts
	Normalize NormalizeOpts
	HVG       HVGOpts
	CellCycle CellCycleOpts
	Reduce    ReduceOpts
	Embed     EmbedOpts
	Neighbor  NeighborOpts
	Cluster   ClusterOpts
	// StrictMarkers and LooseMarkers are run independently; their result
	// tables are reported side by side, never merged.
	StrictMarkers MarkerOpts
	LooseMarkers  MarkerOpts
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	QC: QCOpts{
		MinUMI:            500,
		MinGenes:          250,
		MinLogGenesPerUMI: 0.80,
		MaxMitoRatio:      0.20,
		MitoPrefix:        "MT-",
	},
	Normalize: NormalizeOpts{ScaleFactor: 10000},
	HVG:       HVGOpts{NumFeatures: 2000, TrendSpan: 0.3},
	CellCycle: CellCycleOpts{Bins: 24, CtrlSize: 100},
	Reduce: ReduceOpts{
		MaxComponents: 50,
		ScaleMax:      10,
		CumVarCutoff:  90,
		PctVarCutoff:  5,
		VarDropCutoff: 0.1,
	},
	Embed:    EmbedOpts{Perplexity: 30, LearningRate: 200, MaxIter: 1000},
	Neighbor: NeighborOpts{K: 20, SNNPrune: 1.0 / 15.0},
	Cluster:  ClusterOpts{Resolution: 0.8},
	StrictMarkers: MarkerOpts{
		MinPct:    0.25,
		MinLog2FC: 0.585,
	},
	LooseMarkers: MarkerOpts{
		MinPct:    0.10,
		MinLog2FC: 0.25,
	},
}
