package dmat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

func testDense(rows, cols int) *mat.Dense {
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, float64(i*cols+j)+0.25)
		}
	}
	return d
}

func TestMatrixAssign(t *testing.T) {
	ref := testDense(7, 5)
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		m := New(7, 5, pg, 2, 2, lapacksupport.General).Assign(ref)

		{ // the local tiles together hold every entry exactly once
			lr, lc := m.LocalDims()
			counts := c.AllgatherInt(lr * lc)
			total := 0
			for _, n := range counts {
				total += n
			}
			assert.Equal(t, 7*5, total)
		}

		{ // every local entry matches its global position
			lr, lc := m.LocalDims()
			for j := 0; j < lc; j++ {
				for i := 0; i < lr; i++ {
					assert.Equal(t, ref.At(m.GlobalRow(i), m.GlobalColumn(j)), m.LocalEl(i, j))
				}
			}
		}

		{ // gathering back reproduces the assigned content on every process
			got := mat.NewDense(7, 5, nil)
			m.CopyToDense(got)
			assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)
		}

		{ // descriptor carries the distribution parameters
			desc := m.Descriptor()
			assert.Equal(t, 1, desc[0])
			assert.Equal(t, 7, desc[2])
			assert.Equal(t, 5, desc[3])
			assert.Equal(t, 2, desc[4])
			assert.Equal(t, 2, desc[5])
		}
		assert.Equal(t, lapacksupport.Matrix, m.State())
	})
}

func TestMatrixInactiveProcesses(t *testing.T) {
	ref := testDense(6, 6)
	grid.NewWorld(5).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		m := New(6, 6, pg, 2, 2, lapacksupport.General).Assign(ref)

		if !pg.IsActive() {
			lr, lc := m.LocalDims()
			assert.Equal(t, -1, lr)
			assert.Equal(t, -1, lc)
			assert.Equal(t, [9]int{-1, -1, -1, -1, -1, -1, -1, -1, -1}, m.Descriptor())
		}

		// gathering is collective and replicates onto inactive processes too
		got := mat.NewDense(6, 6, nil)
		m.CopyToDense(got)
		assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)
	})
}

func TestMatrixRedistribute(t *testing.T) {
	ref := testDense(7, 6)
	grid.NewWorld(5).Run(func(c *grid.Comm) {
		src := grid.NewProcessGrid(c, 2, 2)
		dst := grid.NewProcessGrid(c, 1, 5)
		a := New(7, 6, src, 2, 2, lapacksupport.Symmetric).Assign(ref)
		b := New(7, 6, dst, 3, 1, lapacksupport.General)

		a.CopyTo(b)
		got := mat.NewDense(7, 6, nil)
		b.CopyToDense(got)
		assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)

		// state and property travel with the content
		assert.Equal(t, lapacksupport.Matrix, b.State())
		assert.Equal(t, lapacksupport.Symmetric, b.Property())
	})
}

func TestMatrixCopySubmatrix(t *testing.T) {
	ref := testDense(7, 6)
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		src := grid.NewProcessGrid(c, 2, 2)
		dst := grid.NewProcessGrid(c, 4, 1)
		a := New(7, 6, src, 2, 2, lapacksupport.General).Assign(ref)
		b := New(4, 4, dst, 1, 2, lapacksupport.General)

		a.CopySubmatrixTo(b, 1, 2, 0, 1, 3, 2)
		got := mat.NewDense(4, 4, nil)
		b.CopyToDense(got)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				want := 0.0
				if i < 3 && j >= 1 && j < 3 {
					want = ref.At(i+1, j-1+2)
				}
				assert.InDelta(t, want, got.At(i, j), 1e-14, "entry (%d,%d)", i, j)
			}
		}
		assert.Equal(t, lapacksupport.Matrix, b.State())

		// empty extents are a no-op
		a.CopySubmatrixTo(b, 0, 0, 0, 0, 0, 0)
	})
}

func TestMatrixAdd(t *testing.T) {
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)

		{ // plain scaled addition
			a := New(2, 3, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
			b := New(2, 3, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(2, 3, []float64{10, 20, 30, 40, 50, 60}))
			a.AddScaled(0.5, b)
			got := mat.NewDense(2, 3, nil)
			a.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{6, 12, 18, 24, 30, 36}, got.RawMatrix().Data, 1e-14)
		}

		{ // transposed addition realigns across the distribution
			a := New(2, 3, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
			b := New(3, 2, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
			a.TAddScaled(2, b)
			got := mat.NewDense(2, 3, nil)
			a.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{3, 8, 13, 8, 13, 18}, got.RawMatrix().Data, 1e-14)
		}

		{ // transposed copy
			b := New(3, 2, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
			at := New(2, 3, pg, 1, 1, lapacksupport.General)
			at.CopyTransposed(b)
			got := mat.NewDense(2, 3, nil)
			at.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{1, 3, 5, 2, 4, 6}, got.RawMatrix().Data, 1e-14)
		}
	})
}

func TestMatrixMult(t *testing.T) {
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		a := New(2, 3, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))

		{ // plain product
			b := New(3, 2, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(3, 2, []float64{7, 8, 9, 10, 11, 12}))
			cm := New(2, 2, pg, 1, 1, lapacksupport.General)
			a.MMult(cm, b, false)
			got := mat.NewDense(2, 2, nil)
			cm.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, got.RawMatrix().Data, 1e-12)
			assert.Equal(t, lapacksupport.Matrix, cm.State())

			// accumulate the same product on top
			a.MMult(cm, b, true)
			cm.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{116, 128, 278, 308}, got.RawMatrix().Data, 1e-12)
		}

		{ // transposed product A^T A
			cm := New(3, 3, pg, 1, 1, lapacksupport.General)
			a.TMMult(cm, a, false)
			got := mat.NewDense(3, 3, nil)
			cm.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{17, 22, 27, 22, 29, 36, 27, 36, 45}, got.RawMatrix().Data, 1e-12)
		}

		{ // transposed product A A^T
			cm := New(2, 2, pg, 1, 1, lapacksupport.General)
			a.MTMult(cm, a, false)
			got := mat.NewDense(2, 2, nil)
			cm.CopyToDense(got)
			assert.InDeltaSlice(t, []float64{14, 32, 32, 77}, got.RawMatrix().Data, 1e-12)
		}
	})
}

func TestMatrixScale(t *testing.T) {
	ref := testDense(5, 4)
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)

		{ // row scaling
			m := New(5, 4, pg, 2, 2, lapacksupport.General).Assign(ref)
			factors := []float64{1, 2, 3, 4, 5}
			m.ScaleRows(factors)
			got := mat.NewDense(5, 4, nil)
			m.CopyToDense(got)
			for i := 0; i < 5; i++ {
				for j := 0; j < 4; j++ {
					assert.InDelta(t, ref.At(i, j)*factors[i], got.At(i, j), 1e-14)
				}
			}
		}

		{ // column scaling
			m := New(5, 4, pg, 2, 2, lapacksupport.General).Assign(ref)
			factors := []float64{2, 0.5, -1, 3}
			m.ScaleColumns(factors)
			got := mat.NewDense(5, 4, nil)
			m.CopyToDense(got)
			for i := 0; i < 5; i++ {
				for j := 0; j < 4; j++ {
					assert.InDelta(t, ref.At(i, j)*factors[j], got.At(i, j), 1e-14)
				}
			}
		}
	})
}
