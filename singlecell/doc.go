// Package singlecell implements the core stages of a single-cell RNA-seq
// analysis pipeline over a 10x Genomics feature-barcode count matrix:
// quality-control filtering, depth normalization, variable-feature
// selection, cell-cycle scoring, PCA with automatic component selection,
// shared-nearest-neighbor graph clustering, and one-vs-rest marker
// detection.
//
// Every stage consumes a *Dataset snapshot and produces a new one; the
// input snapshot is never mutated. The snapshot chain is recorded through
// Dataset.ParentID so a report renderer can reconstruct the provenance of
// any column it plots.
package singlecell
