package celltransfer

import (
	"fmt"

	"github.com/james-bowman/sparse"
)

// ChildWeight is the coefficient a coarsened child contributes to its
// parent, as a function of the sibling count. It reproduces a linear
// coarsening strategy in matrix form.
type ChildWeight func(nSiblings int) float64

// SumWeights reproduces the Sum strategy.
func SumWeights(nSiblings int) float64 { return 1 }

// MeanWeights reproduces the Mean strategy.
func MeanWeights(nSiblings int) float64 { return 1 / float64(nSiblings) }

// ProjectionMatrix assembles a prepared transfer as an explicit sparse
// matrix of shape (new active count) x (old active count), so that
// applying it to the old value vector equals Unpack under the linear
// strategy encoded by weight. Persisting and refined cells contribute
// unit entries; each coarsening sibling contributes weight(nSiblings) to
// its parent's row.
func ProjectionMatrix(tr *Transfer[float64], weight ChildWeight) *sparse.CSR {
	if !tr.prepared {
		panic(fmt.Errorf("transfer has not been prepared for coarsening and refinement"))
	}
	if len(tr.coarsened) > 0 && weight == nil {
		panic(fmt.Errorf("coarsened cells present but no child weight given"))
	}
	dok := sparse.NewDOK(tr.mesh.NActiveCells(), tr.oldCount)
	for cell, oldIndex := range tr.persisting {
		dok.Set(cell.ActiveIndex(), oldIndex, 1)
	}
	for cell, oldIndex := range tr.refined {
		for i := 0; i < cell.NChildren(); i++ {
			dok.Set(cell.Child(i).ActiveIndex(), oldIndex, 1)
		}
	}
	for parent, indices := range tr.coarsened {
		w := weight(len(indices))
		for _, idx := range indices {
			dok.Set(parent.ActiveIndex(), idx, w)
		}
	}
	return dok.ToCSR()
}

// ApplyProjection multiplies a projection matrix with the old value
// vector, writing the new value vector.
func ApplyProjection(proj *sparse.CSR, in, out []float64) {
	rows, cols := proj.Dims()
	if len(in) != cols {
		panic(fmt.Errorf("input holds %d values, the projection has %d columns", len(in), cols))
	}
	if len(out) != rows {
		panic(fmt.Errorf("output holds %d values, the projection has %d rows", len(out), rows))
	}
	for i := range out {
		out[i] = 0
	}
	proj.DoNonZero(func(i, j int, v float64) {
		out[i] += v * in[j]
	})
}
