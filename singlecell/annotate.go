package singlecell

import (
	"github.com/grailbio/base/errors"
)

// WithAnnotations attaches per-cell reference labels on a new snapshot.
// An empty string marks a pruned call (the classifier withheld the label
// for low confidence). len(main) and len(fine) must equal the cell count.
func (d *Dataset) WithAnnotations(main, fine []string) (*Dataset, error) {
	if len(main) != d.NCells() || len(fine) != d.NCells() {
		return nil, errors.E(errors.Invalid, "annotation label lists do not match cell count")
	}
	nd := d.derive("annotate")
	nd.Cells = d.cloneCells()
	for i := range nd.Cells {
		nd.Cells[i].MainLabel = main[i]
		nd.Cells[i].FineLabel = fine[i]
	}
	return nd, nil
}
