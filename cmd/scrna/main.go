// Command scrna runs a single-cell RNA-seq analysis in two phases:
// "analyze" loads a 10x feature-barcode matrix, runs QC, normalization,
// feature selection, cell-cycle scoring, PCA, embedding, clustering,
// marker detection and atlas annotation, and writes a session checkpoint
// plus TSV exports; "report" reads the session back and renders the
// diagnostic plots and the HTML report. Either phase exits non-zero on
// any stage failure.
package main

import (
	"log"

	"v.io/x/lib/cmdline"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "scrna",
			Short:    "Single-cell RNA-seq analysis pipeline",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdAnalyze(),
				newCmdReport(),
			},
		})
}
