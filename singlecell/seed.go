package singlecell

import (
	"github.com/dgryski/go-farm"
)

// datasetSeed derives a stable RNG seed from the barcode list, so the
// stochastic steps (control-gene sampling, embedding initialization) are
// reproducible for a given input without a flag to thread a seed through
// every stage.
func datasetSeed(d *Dataset) int64 {
	h := farm.Hash64([]byte{})
	for _, bc := range d.Barcodes {
		h = farm.Hash64WithSeed([]byte(bc), h)
	}
	return int64(h)
}
