package dmat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ref := testDense(7, 5)

	{ // written in parallel from four processes, read back serially
		path := filepath.Join(dir, "parallel.gdm")
		grid.NewWorld(4).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 2, 2)
			m := New(7, 5, pg, 2, 2, lapacksupport.General).Assign(ref)
			assert.NoError(t, m.Save(path))
		})
		grid.NewWorld(1).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 1)
			m := New(7, 5, pg, 3, 2, lapacksupport.General)
			assert.NoError(t, m.Load(path))
			got := mat.NewDense(7, 5, nil)
			m.CopyToDense(got)
			assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)
			assert.Equal(t, lapacksupport.Matrix, m.State())
			assert.Equal(t, lapacksupport.General, m.Property())
		})
	}

	{ // written serially, read back in parallel onto a grid with an idle process
		path := filepath.Join(dir, "serial.gdm")
		grid.NewWorld(1).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 1)
			m := New(7, 5, pg, 7, 5, lapacksupport.General).Assign(ref)
			assert.NoError(t, m.Save(path))
		})
		grid.NewWorld(3).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 2)
			m := New(7, 5, pg, 2, 2, lapacksupport.General)
			assert.NoError(t, m.Load(path))
			got := mat.NewDense(7, 5, nil)
			m.CopyToDense(got)
			assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)
		})
	}

	{ // both strategies produce interchangeable files
		serial := filepath.Join(dir, "strategy_serial.gdm")
		parallel := filepath.Join(dir, "strategy_parallel.gdm")
		grid.NewWorld(4).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 2, 2)
			m := New(7, 5, pg, 2, 2, lapacksupport.General).Assign(ref)
			assert.NoError(t, m.saveSerial(serial, 7, 1))
			assert.NoError(t, m.saveParallel(parallel, 7, 1))
		})
		grid.NewWorld(2).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 2, 1)
			for _, path := range []string{serial, parallel} {
				m := New(7, 5, pg, 2, 2, lapacksupport.General)
				assert.NoError(t, m.loadSerial(path))
				got := mat.NewDense(7, 5, nil)
				m.CopyToDense(got)
				assert.InDeltaSlice(t, ref.RawMatrix().Data, got.RawMatrix().Data, 1e-14)

				m2 := New(7, 5, pg, 2, 2, lapacksupport.General)
				assert.NoError(t, m2.loadParallel(path))
				got2 := mat.NewDense(7, 5, nil)
				m2.CopyToDense(got2)
				assert.InDeltaSlice(t, ref.RawMatrix().Data, got2.RawMatrix().Data, 1e-14)
			}
		})
	}
}

func TestSaveLoadFactorization(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factor.gdm")
	spd := mat.NewDense(3, 3, []float64{4, 1, 0, 1, 4, 1, 0, 1, 4})
	var want mat.Dense

	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
		assert.NoError(t, m.ComputeCholeskyFactorization())
		assert.NoError(t, m.SaveChunked(path, 2, 1))
		if c.Rank() == 0 {
			got := mat.NewDense(3, 3, nil)
			m.CopyToDense(got)
			want = *got
		} else {
			got := mat.NewDense(3, 3, nil)
			m.CopyToDense(got)
		}
	})

	grid.NewWorld(2).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 1, 2)
		m := New(3, 3, pg, 1, 1, lapacksupport.General)
		assert.NoError(t, m.Load(path))
		assert.Equal(t, lapacksupport.Cholesky, m.State())
		assert.Equal(t, lapacksupport.LowerTriangular, m.Property())
		got := mat.NewDense(3, 3, nil)
		m.CopyToDense(got)
		assert.InDeltaSlice(t, want.RawMatrix().Data, got.RawMatrix().Data, 1e-14)
	})
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	{ // a missing file fails on every process
		grid.NewWorld(2).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 2)
			m := New(3, 3, pg, 1, 1, lapacksupport.General)
			assert.Error(t, m.Load(filepath.Join(dir, "missing.gdm")))
		})
	}

	{ // mismatched extents are rejected
		path := filepath.Join(dir, "small.gdm")
		grid.NewWorld(2).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 2)
			m := New(3, 3, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(3, 3, nil))
			assert.NoError(t, m.Save(path))
			big := New(4, 4, pg, 1, 1, lapacksupport.General)
			assert.Error(t, big.Load(path))
		})
	}

	{ // chunk extents are validated up front
		grid.NewWorld(1).Run(func(c *grid.Comm) {
			pg := grid.NewProcessGrid(c, 1, 1)
			m := New(3, 3, pg, 1, 1, lapacksupport.General)
			assert.Panics(t, func() { _ = m.SaveChunked(filepath.Join(dir, "x.gdm"), 0, 1) })
			assert.Panics(t, func() { _ = m.SaveChunked(filepath.Join(dir, "x.gdm"), 1, 4) })
		})
	}
}
