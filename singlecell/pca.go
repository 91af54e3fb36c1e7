package singlecell

import (
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scaleVariable builds the dense PCA input: the normalized expression of
// the variable genes, centered and scaled to unit variance per gene, with
// z-scores clipped at scaleMax.
func scaleVariable(d *Dataset, scaleMax float64) *mat.Dense {
	nCells := d.NCells()
	nVar := len(d.Variable)
	x := mat.NewDense(nCells, nVar, nil)

	ci := newColumnIndex(d.Norm)
	for k, g := range d.Variable {
		var sum, sumsq float64
		for _, v := range ci.vals[g] {
			sum += v
			sumsq += v * v
		}
		mean := sum / float64(nCells)
		variance := 0.0
		if nCells > 1 {
			variance = (sumsq - float64(nCells)*mean*mean) / float64(nCells-1)
		}
		sd := math.Sqrt(variance)
		if sd == 0 {
			continue
		}
		clamp := func(z float64) float64 {
			if z > scaleMax {
				return scaleMax
			}
			if z < -scaleMax {
				return -scaleMax
			}
			return z
		}
		zero := clamp(-mean / sd)
		for i := 0; i < nCells; i++ {
			x.Set(i, k, zero)
		}
		for n, cell := range ci.cells[g] {
			x.Set(int(cell), k, clamp((ci.vals[g][n]-mean)/sd))
		}
	}
	return x
}

// RunPCA computes the linear reduction over the scaled variable features
// and selects the retained dimensionality with the elbow rule, producing a
// new snapshot carrying per-cell component coordinates and per-component
// percent variance.
func RunPCA(d *Dataset, opts ReduceOpts, stats *Stats) (*Dataset, error) {
	if len(d.Variable) == 0 {
		return nil, errors.E(errors.Invalid, "PCA requires variable features; run SelectVariableFeatures first")
	}
	nCells := d.NCells()
	k := opts.MaxComponents
	if k > len(d.Variable) {
		k = len(d.Variable)
	}
	if k > nCells-1 {
		k = nCells - 1
	}
	if k < 1 {
		return nil, errors.E(errors.Invalid, "too few cells for PCA")
	}

	x := scaleVariable(d, opts.ScaleMax)
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.E("PCA eigendecomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars[:k] {
		total += v
	}
	pct := make([]float64, k)
	for i, v := range vars[:k] {
		pct[i] = v / total * 100
	}

	var proj mat.Dense
	proj.Mul(x, vecs.Slice(0, len(d.Variable), 0, k))

	nd := d.derive("pca")
	nd.PCVariance = pct
	nd.NumPCs = ComponentsUsed(pct, opts)
	nd.PCs = make([][]float64, nCells)
	for i := 0; i < nCells; i++ {
		row := make([]float64, k)
		mat.Row(row, i, &proj)
		nd.PCs[i] = row
	}
	if stats != nil {
		stats.ComponentsUsed += nd.NumPCs
	}
	log.Printf("PCA: %d components computed, %d retained", k, nd.NumPCs)
	return nd, nil
}

// ComponentsUsed applies the elbow rule to a descending percent-variance
// sequence. Two candidates are computed: the first component where the
// cumulative percent variance exceeds CumVarCutoff while the component
// itself explains less than PctVarCutoff, and the last component whose
// predecessor explains more than VarDropCutoff percentage points beyond
// it. The earlier of the two candidates is the elbow; the retained count
// is the component immediately after it.
func ComponentsUsed(pct []float64, opts ReduceOpts) int {
	if len(pct) == 0 {
		return 0
	}
	cand1 := len(pct) - 1
	cum := 0.0
	for i, v := range pct {
		cum += v
		if cum > opts.CumVarCutoff && v < opts.PctVarCutoff {
			cand1 = i
			break
		}
	}
	cand2 := len(pct) - 1
	for i := 0; i+1 < len(pct); i++ {
		if pct[i]-pct[i+1] > opts.VarDropCutoff {
			cand2 = i + 1
		}
	}
	elbow := cand1
	if cand2 < elbow {
		elbow = cand2
	}
	return elbow + 1
}
