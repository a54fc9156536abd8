package dmat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

func TestCholeskyInvert(t *testing.T) {
	spd := mat.NewDense(3, 3, []float64{4, 1, 0, 1, 4, 1, 0, 1, 4})
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)

		{ // the factor reproduces the matrix as L L^T
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
			assert.NoError(t, m.ComputeCholeskyFactorization())
			assert.Equal(t, lapacksupport.Cholesky, m.State())
			assert.Equal(t, lapacksupport.LowerTriangular, m.Property())
			l := mat.NewDense(3, 3, nil)
			m.CopyToDense(l)
			var llt mat.Dense
			llt.Mul(l, l.T())
			assert.InDeltaSlice(t, spd.RawMatrix().Data, llt.RawMatrix().Data, 1e-12)
		}

		{ // inversion matches the dense inverse
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
			assert.NoError(t, m.Invert())
			assert.Equal(t, lapacksupport.InverseMatrix, m.State())
			got := mat.NewDense(3, 3, nil)
			m.CopyToDense(got)
			var want mat.Dense
			assert.NoError(t, want.Inverse(spd))
			assert.InDeltaSlice(t, want.RawMatrix().Data, got.RawMatrix().Data, 1e-12)
		}

		{ // an indefinite matrix fails on every process, leaving the state alone
			bad := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
			m := New(2, 2, pg, 1, 1, lapacksupport.Symmetric).Assign(bad)
			err := m.ComputeCholeskyFactorization()
			assert.Error(t, err)
			var ec lapacksupport.ErrorCode
			assert.ErrorAs(t, err, &ec)
			assert.Equal(t, lapacksupport.Matrix, m.State())
		}

		{ // a consumed matrix rejects refactorization
			m := New(2, 2, pg, 1, 1, lapacksupport.Symmetric).Assign(mat.NewDense(2, 2, []float64{2, 0, 0, 2}))
			_, err := m.SVD(nil, nil)
			assert.NoError(t, err)
			assert.Equal(t, lapacksupport.Unusable, m.State())
			assert.Panics(t, func() { _ = m.ComputeCholeskyFactorization() })
		}
	})
}

func TestEigenpairsSymmetric(t *testing.T) {
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		diag := mat.NewDense(4, 4, []float64{
			3, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 4, 0,
			0, 0, 0, 1.5,
		})

		{ // all eigenvalues, ascending, without vectors
			m := New(4, 4, pg, 1, 1, lapacksupport.Symmetric).Assign(diag)
			ev, err := m.EigenpairsSymmetric(false)
			assert.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1, 1.5, 3, 4}, ev, 1e-12)
			assert.Equal(t, lapacksupport.Unusable, m.State())
		}

		{ // an index window selects the second and third smallest
			m := New(4, 4, pg, 1, 1, lapacksupport.Symmetric).Assign(diag)
			ev, err := m.EigenpairsSymmetricByIndex(1, 2, true)
			assert.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1.5, 3}, ev, 1e-12)
			assert.Equal(t, lapacksupport.Eigenvalues, m.State())
			assert.Equal(t, lapacksupport.General, m.Property())
			got := mat.NewDense(4, 4, nil)
			m.CopyToDense(got)
			// eigenvector of 1.5 is the unit vector along row 3, of 3 along row 0
			assert.InDelta(t, 1, math.Abs(got.At(3, 0)), 1e-12)
			assert.InDelta(t, 1, math.Abs(got.At(0, 1)), 1e-12)
		}

		{ // a value interval is half open on the left
			m := New(4, 4, pg, 1, 1, lapacksupport.Symmetric).Assign(diag)
			ev, err := m.EigenpairsSymmetricByValue(0.5, 1.75, false)
			assert.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1, 1.5}, ev, 1e-12)
		}

		{ // an interval holding no eigenvalues yields none
			m := New(4, 4, pg, 1, 1, lapacksupport.Symmetric).Assign(diag)
			ev, err := m.EigenpairsSymmetricByValue(5, 6, false)
			assert.NoError(t, err)
			assert.Empty(t, ev)
		}

		{ // eigenvectors of a coupled system
			coupled := mat.NewDense(2, 2, []float64{2, 1, 1, 2})
			m := New(2, 2, pg, 1, 1, lapacksupport.Symmetric).Assign(coupled)
			ev, err := m.EigenpairsSymmetric(true)
			assert.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1, 3}, ev, 1e-12)
			got := mat.NewDense(2, 2, nil)
			m.CopyToDense(got)
			s := 1 / math.Sqrt(2)
			// column k is the eigenvector of ev[k], up to sign
			assert.InDelta(t, s, math.Abs(got.At(0, 0)), 1e-12)
			assert.InDelta(t, s, math.Abs(got.At(1, 0)), 1e-12)
			assert.InDelta(t, -1, got.At(0, 0)*got.At(1, 0)*2, 1e-12)
			assert.InDelta(t, s, math.Abs(got.At(0, 1)), 1e-12)
			assert.InDelta(t, 1, got.At(0, 1)*got.At(1, 1)*2, 1e-12)
		}
	})
}

func TestSVD(t *testing.T) {
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)
		a := mat.NewDense(3, 2, []float64{3, 0, 0, 2, 0, 0})

		{ // singular values only, descending
			m := New(3, 2, pg, 1, 1, lapacksupport.General).Assign(a)
			sv, err := m.SVD(nil, nil)
			assert.NoError(t, err)
			assert.InDeltaSlice(t, []float64{3, 2}, sv, 1e-12)
			assert.Equal(t, lapacksupport.Unusable, m.State())
		}

		{ // full vectors reconstruct the matrix
			m := New(3, 2, pg, 1, 1, lapacksupport.General).Assign(a)
			u := NewSquare(3, pg, 1, lapacksupport.General)
			vt := NewSquare(2, pg, 1, lapacksupport.General)
			sv, err := m.SVD(u, vt)
			assert.NoError(t, err)
			ud := mat.NewDense(3, 3, nil)
			vtd := mat.NewDense(2, 2, nil)
			u.CopyToDense(ud)
			vt.CopyToDense(vtd)
			sig := mat.NewDense(3, 2, nil)
			for i, v := range sv {
				sig.Set(i, i, v)
			}
			var us, usvt mat.Dense
			us.Mul(ud, sig)
			usvt.Mul(&us, vtd)
			assert.InDeltaSlice(t, a.RawMatrix().Data, usvt.RawMatrix().Data, 1e-12)
		}
	})
}

func TestLeastSquares(t *testing.T) {
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)

		// fit y = 1 + 2x through four exact samples
		a := New(4, 2, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(4, 2, []float64{
			1, 0,
			1, 1,
			1, 2,
			1, 3,
		}))
		b := New(4, 1, pg, 1, 1, lapacksupport.General).Assign(mat.NewDense(4, 1, []float64{1, 3, 5, 7}))
		assert.NoError(t, a.LeastSquares(b, false))
		assert.Equal(t, lapacksupport.Unusable, a.State())
		assert.Equal(t, lapacksupport.Matrix, b.State())

		got := mat.NewDense(4, 1, nil)
		b.CopyToDense(got)
		assert.InDelta(t, 1, got.At(0, 0), 1e-10)
		assert.InDelta(t, 2, got.At(1, 0), 1e-10)
	})
}

func TestNormsAndCondition(t *testing.T) {
	spd := mat.NewDense(3, 3, []float64{4, 1, 0, 1, 4, 1, 0, 1, 4})
	grid.NewWorld(4).Run(func(c *grid.Comm) {
		pg := grid.NewProcessGrid(c, 2, 2)

		{ // norms agree with hand computed values
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
			assert.InDelta(t, 6, m.L1Norm(), 1e-14)
			assert.InDelta(t, 6, m.LinftyNorm(), 1e-14)
			assert.InDelta(t, math.Sqrt(52), m.FrobeniusNorm(), 1e-14)
		}

		{ // the general path computes the same values
			m := New(3, 3, pg, 1, 1, lapacksupport.General).Assign(spd)
			assert.InDelta(t, 6, m.L1Norm(), 1e-14)
			assert.InDelta(t, 6, m.LinftyNorm(), 1e-14)
			assert.InDelta(t, math.Sqrt(52), m.FrobeniusNorm(), 1e-14)
		}

		{ // the identity is perfectly conditioned
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
			anorm := m.L1Norm()
			assert.NoError(t, m.ComputeCholeskyFactorization())
			assert.InDelta(t, 1, m.ReciprocalConditionNumber(anorm), 1e-14)
		}

		{ // a diagonally dominant matrix stays well conditioned
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
			anorm := m.L1Norm()
			assert.NoError(t, m.ComputeCholeskyFactorization())
			rcond := m.ReciprocalConditionNumber(anorm)
			assert.Greater(t, rcond, 0.0)
			assert.LessOrEqual(t, rcond, 1.0)
			// exact value 7/18; the estimator may be slightly conservative
			assert.InDelta(t, 7.0/18.0, rcond, 0.15)
		}

		{ // norms reject consumed content before any communication
			m := New(3, 3, pg, 1, 1, lapacksupport.Symmetric).Assign(spd)
			assert.NoError(t, m.ComputeCholeskyFactorization())
			assert.Panics(t, func() { m.L1Norm() })
		}
	})
}
