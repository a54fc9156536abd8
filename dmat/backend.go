package dmat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

// The numerical kernels below run on a root process: operands are
// redistributed onto an ad-hoc 1x1 grid over the matrix communicator, the
// root applies the corresponding lapack64/blas64 routine, and results are
// scattered back and broadcast so that every process, active or not,
// leaves the call with the same outcome.

// newRootMirror builds an empty 1x1 grid matrix with m's extents over m's
// communicator. Collective over the communicator.
func (m *Matrix) newRootMirror() *Matrix {
	pg := grid.NewProcessGrid(m.grid.Comm(), 1, 1)
	return New(m.rows, m.cols, pg, m.rows, m.cols, m.property)
}

// gatherRoot copies m onto a fresh 1x1 grid mirror and returns it along
// with a dense row major view of the content. The view is non-nil on the
// root process only. Collective over the communicator.
func (m *Matrix) gatherRoot() (mirror *Matrix, d *mat.Dense) {
	mirror = m.newRootMirror()
	m.CopyTo(mirror)
	if mirror.grid.IsActive() {
		d = mat.NewDense(m.rows, m.cols, nil)
		for j := 0; j < m.cols; j++ {
			for i := 0; i < m.rows; i++ {
				d.Set(i, j, mirror.values[i+j*mirror.lld])
			}
		}
	}
	return
}

// scatterDense writes the root's dense result back into mirror and
// scatters it onto m's distribution. d must be nil away from the root.
func (m *Matrix) scatterDense(mirror *Matrix, d *mat.Dense) {
	if d != nil {
		for j := 0; j < m.cols; j++ {
			for i := 0; i < m.rows; i++ {
				mirror.values[i+j*mirror.lld] = d.At(i, j)
			}
		}
	}
	m.scatterFrom(mirror)
}

// bcastStatus agrees on the outcome of a root computation: 0 on success,
// the failure status otherwise.
func (m *Matrix) bcastStatus(ok bool) int {
	st := []int{0}
	if m.grid.Comm().Rank() == 0 && !ok {
		st[0] = 1
	}
	m.grid.Comm().BcastInts(st, 0)
	return st[0]
}

func (m *Matrix) bcastFloat64(v float64) float64 {
	buf := []float64{v}
	m.grid.Comm().BcastFloat64s(buf, 0)
	return buf[0]
}

// bcastFloat64s distributes a root-only slice of previously unknown
// length to every process of the communicator.
func (m *Matrix) bcastFloat64s(vals []float64) []float64 {
	n := []int{len(vals)}
	m.grid.Comm().BcastInts(n, 0)
	if m.grid.Comm().Rank() != 0 {
		vals = make([]float64, n[0])
	}
	m.grid.Comm().BcastFloat64s(vals, 0)
	return vals
}

// symLower views a square dense matrix as symmetric with the lower
// triangle stored.
func symLower(d *mat.Dense) blas64.Symmetric {
	rm := d.RawMatrix()
	return blas64.Symmetric{N: rm.Rows, Stride: rm.Stride, Uplo: blas.Lower, Data: rm.Data}
}

func (m *Matrix) growWork(n int) []float64 {
	if cap(m.work) < n {
		m.work = make([]float64, n)
	}
	return m.work[:n]
}

func (m *Matrix) growIwork(n int) []int {
	if cap(m.iwork) < n {
		m.iwork = make([]int, n)
	}
	return m.iwork[:n]
}

// ComputeCholeskyFactorization overwrites the matrix with its Cholesky
// factor L, stored in the lower triangle. The matrix must be square and
// symmetric positive definite. On success the property becomes
// LowerTriangular and the state Cholesky. Collective.
func (m *Matrix) ComputeCholeskyFactorization() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.choleskyLocked()
}

func (m *Matrix) choleskyLocked() error {
	if m.rows != m.cols || m.property != lapacksupport.Symmetric {
		panic(fmt.Errorf("Cholesky factorization needs a square symmetric matrix, have %dx%d %v",
			m.rows, m.cols, m.property))
	}
	if m.state != lapacksupport.Matrix {
		panic(fmt.Errorf("matrix content is %v, need an unfactorized matrix", m.state))
	}
	mirror, d := m.gatherRoot()
	ok := true
	if d != nil {
		_, ok = lapack64.Potrf(symLower(d))
	}
	if st := m.bcastStatus(ok); st != 0 {
		return lapacksupport.ErrorCode{Routine: "Dpotrf", Status: st}
	}
	m.scatterDense(mirror, d)
	m.property = lapacksupport.LowerTriangular
	m.setState(lapacksupport.Cholesky)
	return nil
}

// Invert overwrites the matrix with its inverse, computed from a Cholesky
// factorization. A matrix still in the plain Matrix state is factorized
// first. On success the state becomes InverseMatrix; the stored triangle
// is the meaningful one. Collective.
func (m *Matrix) Invert() error {
	if m.rows != m.cols {
		panic(fmt.Errorf("inversion requires a square matrix, have %dx%d", m.rows, m.cols))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != lapacksupport.Matrix && m.state != lapacksupport.Cholesky {
		panic(fmt.Errorf("matrix content is %v, need a matrix or its Cholesky factor", m.state))
	}
	if m.state == lapacksupport.Matrix {
		if err := m.choleskyLocked(); err != nil {
			return err
		}
	}
	mirror, d := m.gatherRoot()
	ok := true
	if d != nil {
		ok = lapack64.Potri(symLower(d))
	}
	if st := m.bcastStatus(ok); st != 0 {
		return lapacksupport.ErrorCode{Routine: "Dpotri", Status: st}
	}
	m.scatterDense(mirror, d)
	m.setState(lapacksupport.InverseMatrix)
	return nil
}

// EigenpairsSymmetric computes all eigenvalues of the symmetric matrix in
// ascending order. With computeVectors the matrix is overwritten by the
// eigenvectors, one per column in eigenvalue order, its property becomes
// General and its state Eigenvalues; otherwise the content is no longer
// meaningful and the state becomes Unusable. The returned slice is
// replicated on every process. Collective.
func (m *Matrix) EigenpairsSymmetric(computeVectors bool) ([]float64, error) {
	return m.eigenpairsSymmetric(computeVectors, false, 0, 0, false, 0, 0)
}

// EigenpairsSymmetricByIndex computes eigenvalues lo through hi inclusive,
// counted from the smallest, with the same conventions as
// EigenpairsSymmetric. With computeVectors the selected eigenvectors
// occupy the leading columns of the matrix.
func (m *Matrix) EigenpairsSymmetricByIndex(lo, hi int, computeVectors bool) ([]float64, error) {
	if lo < 0 || lo >= m.rows {
		panic(fmt.Errorf("eigenvalue index %d out of range [0,%d)", lo, m.rows))
	}
	if hi < 0 || hi >= m.rows {
		panic(fmt.Errorf("eigenvalue index %d out of range [0,%d)", hi, m.rows))
	}
	if lo > hi {
		panic(fmt.Errorf("eigenvalue index range [%d,%d] is inverted", lo, hi))
	}
	return m.eigenpairsSymmetric(computeVectors, true, lo, hi, false, 0, 0)
}

// EigenpairsSymmetricByValue computes the eigenvalues in the half open
// interval (vl, vu], with the same conventions as EigenpairsSymmetric.
func (m *Matrix) EigenpairsSymmetricByValue(vl, vu float64, computeVectors bool) ([]float64, error) {
	if math.IsNaN(vl) || math.IsNaN(vu) {
		panic(fmt.Errorf("eigenvalue interval (%v,%v] contains NaN", vl, vu))
	}
	if vl >= vu {
		panic(fmt.Errorf("eigenvalue interval (%v,%v] is empty", vl, vu))
	}
	return m.eigenpairsSymmetric(computeVectors, false, 0, 0, true, vl, vu)
}

func (m *Matrix) eigenpairsSymmetric(computeVectors, byIndex bool, lo, hi int, byValue bool, vl, vu float64) ([]float64, error) {
	if m.state != lapacksupport.Matrix {
		panic(fmt.Errorf("matrix content is %v, need a plain matrix", m.state))
	}
	if m.property != lapacksupport.Symmetric {
		panic(fmt.Errorf("matrix property is %v, need symmetric", m.property))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var z *Matrix
	if computeVectors {
		z = NewSquare(m.rows, m.grid, m.rowBlock, lapacksupport.General)
	}

	mirror, d := m.gatherRoot()
	var ev []float64
	ok := true
	if d != nil {
		n := m.rows
		w := make([]float64, n)
		jobz := lapack.EVNone
		if computeVectors {
			jobz = lapack.EVCompute
		}
		sym := symLower(d)
		query := []float64{0}
		lapack64.Syev(jobz, sym, w, query, -1)
		lwork := int(query[0])
		ok = lapack64.Syev(jobz, sym, w, m.growWork(lwork), lwork)
		if ok {
			first, last := 0, n-1
			switch {
			case byIndex:
				first, last = lo, hi
			case byValue:
				for first < n && w[first] <= vl {
					first++
				}
				last = first - 1
				for last+1 < n && w[last+1] <= vu {
					last++
				}
			}
			ev = append([]float64(nil), w[first:last+1]...)
			if computeVectors {
				// selected eigenvectors move to the leading columns
				rm := d.RawMatrix()
				for k := range mirror.values {
					mirror.values[k] = 0
				}
				for c := first; c <= last; c++ {
					for r := 0; r < n; r++ {
						mirror.values[r+(c-first)*mirror.lld] = rm.Data[r*rm.Stride+c]
					}
				}
			}
		}
	}
	if st := m.bcastStatus(ok); st != 0 {
		return nil, lapacksupport.ErrorCode{Routine: "Dsyev", Status: st}
	}
	if computeVectors {
		z.scatterFrom(mirror)
		if m.rowBlock == m.colBlock {
			if m.grid.IsActive() {
				m.values, z.values = z.values, m.values
			}
		} else {
			m.scatterFrom(z)
		}
	}
	ev = m.bcastFloat64s(ev)
	if computeVectors {
		m.property = lapacksupport.General
		m.setState(lapacksupport.Eigenvalues)
	} else {
		m.setState(lapacksupport.Unusable)
	}
	return ev, nil
}

// SVD computes the singular value decomposition A = U S VT and returns
// the singular values in descending order, replicated on every process.
// u and vt are optional receptacles for the singular vectors: u must be
// rows x rows and vt cols x cols, both on the matrix's grid with its
// block sizes, which must be square. The matrix content is destroyed and
// its state becomes Unusable. Collective.
func (m *Matrix) SVD(u, vt *Matrix) ([]float64, error) {
	if m.state != lapacksupport.Matrix {
		panic(fmt.Errorf("matrix content is %v, need a plain matrix", m.state))
	}
	if m.rowBlock != m.colBlock {
		panic(fmt.Errorf("use identical block sizes for rows and columns, have %dx%d", m.rowBlock, m.colBlock))
	}
	if u != nil {
		if u.rows != m.rows || u.rows != u.cols {
			panic(fmt.Errorf("left singular vector matrix must be %dx%d, have %dx%d", m.rows, m.rows, u.rows, u.cols))
		}
		if u.rowBlock != m.rowBlock || u.colBlock != m.colBlock {
			panic(fmt.Errorf("left singular vector matrix must use block sizes %dx%d", m.rowBlock, m.colBlock))
		}
		if u.grid != m.grid {
			panic(fmt.Errorf("left singular vector matrix must share the process grid"))
		}
	}
	if vt != nil {
		if vt.rows != m.cols || vt.rows != vt.cols {
			panic(fmt.Errorf("right singular vector matrix must be %dx%d, have %dx%d", m.cols, m.cols, vt.rows, vt.cols))
		}
		if vt.rowBlock != m.rowBlock || vt.colBlock != m.colBlock {
			panic(fmt.Errorf("right singular vector matrix must use block sizes %dx%d", m.rowBlock, m.colBlock))
		}
		if vt.grid != m.grid {
			panic(fmt.Errorf("right singular vector matrix must share the process grid"))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, d := m.gatherRoot()
	var uMirror, vtMirror *Matrix
	if u != nil {
		uMirror = u.newRootMirror()
	}
	if vt != nil {
		vtMirror = vt.newRootMirror()
	}

	var sv []float64
	ok := true
	if d != nil {
		sv = make([]float64, min(m.rows, m.cols))
		jobU, jobVT := lapack.SVDNone, lapack.SVDNone
		// placeholder strides keep the backend's argument checks happy
		// when a side is not requested
		ug := blas64.General{Stride: 1}
		vtg := blas64.General{Stride: 1}
		if u != nil {
			jobU = lapack.SVDAll
			ug = blas64.General{Rows: m.rows, Cols: m.rows, Stride: m.rows, Data: make([]float64, m.rows*m.rows)}
		}
		if vt != nil {
			jobVT = lapack.SVDAll
			vtg = blas64.General{Rows: m.cols, Cols: m.cols, Stride: m.cols, Data: make([]float64, m.cols*m.cols)}
		}
		query := []float64{0}
		lapack64.Gesvd(jobU, jobVT, d.RawMatrix(), ug, vtg, sv, query, -1)
		lwork := int(query[0])
		ok = lapack64.Gesvd(jobU, jobVT, d.RawMatrix(), ug, vtg, sv, m.growWork(lwork), lwork)
		if ok {
			if u != nil {
				for j := 0; j < m.rows; j++ {
					for i := 0; i < m.rows; i++ {
						uMirror.values[i+j*uMirror.lld] = ug.Data[i*ug.Stride+j]
					}
				}
			}
			if vt != nil {
				for j := 0; j < m.cols; j++ {
					for i := 0; i < m.cols; i++ {
						vtMirror.values[i+j*vtMirror.lld] = vtg.Data[i*vtg.Stride+j]
					}
				}
			}
		}
	}
	if st := m.bcastStatus(ok); st != 0 {
		return nil, lapacksupport.ErrorCode{Routine: "Dgesvd", Status: st}
	}
	if u != nil {
		u.scatterFrom(uMirror)
	}
	if vt != nil {
		vt.scatterFrom(vtMirror)
	}
	sv = m.bcastFloat64s(sv)
	m.property = lapacksupport.General
	m.setState(lapacksupport.Unusable)
	return sv, nil
}

// LeastSquares solves the overdetermined or underdetermined system
// op(A) X = B in the least squares sense, where op is the identity or the
// transpose. On entry B holds the right hand sides; on exit its leading
// rows hold the solution. Both matrices must be plain, live on the same
// grid and use one common square block size. The content of A is consumed
// and its state becomes Unusable; B remains a plain matrix. Collective.
func (m *Matrix) LeastSquares(b *Matrix, transpose bool) error {
	if m.grid != b.grid {
		panic(fmt.Errorf("matrices must share a process grid"))
	}
	if m.state != lapacksupport.Matrix {
		panic(fmt.Errorf("matrix content is %v, need a plain matrix", m.state))
	}
	if b.state != lapacksupport.Matrix {
		panic(fmt.Errorf("right hand side content is %v, need a plain matrix", b.state))
	}
	if !transpose {
		if m.rows != b.rows {
			panic(fmt.Errorf("dimension mismatch: %d rows vs %d right hand side rows", m.rows, b.rows))
		}
	} else {
		if m.cols != b.rows {
			panic(fmt.Errorf("dimension mismatch: %d columns vs %d right hand side rows", m.cols, b.rows))
		}
	}
	if m.rowBlock != m.colBlock || b.rowBlock != b.colBlock || m.rowBlock != b.rowBlock {
		panic(fmt.Errorf("use one identical square block size for both matrices"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, da := m.gatherRoot()
	mirrorB, db := b.gatherRoot()
	ok := true
	if da != nil {
		trans := blas.NoTrans
		if transpose {
			trans = blas.Trans
		}
		mx := max(m.rows, m.cols)
		bb := blas64.General{Rows: mx, Cols: b.cols, Stride: b.cols, Data: make([]float64, mx*b.cols)}
		rb := db.RawMatrix()
		for i := 0; i < b.rows; i++ {
			copy(bb.Data[i*bb.Stride:i*bb.Stride+b.cols], rb.Data[i*rb.Stride:i*rb.Stride+b.cols])
		}
		query := []float64{0}
		lapack64.Gels(trans, da.RawMatrix(), bb, query, -1)
		lwork := int(query[0])
		ok = lapack64.Gels(trans, da.RawMatrix(), bb, m.growWork(lwork), lwork)
		if ok {
			for j := 0; j < b.cols; j++ {
				for i := 0; i < b.rows; i++ {
					mirrorB.values[i+j*mirrorB.lld] = bb.Data[i*bb.Stride+j]
				}
			}
		}
	}
	if st := m.bcastStatus(ok); st != 0 {
		return lapacksupport.ErrorCode{Routine: "Dgels", Status: st}
	}
	b.scatterFrom(mirrorB)
	m.setState(lapacksupport.Unusable)
	return nil
}

// ReciprocalConditionNumber estimates 1/(norm(A) * norm(inv(A))) in the
// l1 norm from the Cholesky factorization of A, given the l1 norm of the
// original matrix. The state must be Cholesky. The estimate is replicated
// on every process. Collective.
func (m *Matrix) ReciprocalConditionNumber(aNorm float64) float64 {
	if m.state != lapacksupport.Cholesky {
		panic(fmt.Errorf("matrix content is %v, need a Cholesky factorization", m.state))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, d := m.gatherRoot()
	var rcond float64
	if d != nil {
		n := m.rows
		rcond = lapack64.Pocon(symLower(d), aNorm, m.growWork(3*n), m.growIwork(n))
	}
	return m.bcastFloat64(rcond)
}

// L1Norm returns the maximum column sum of absolute values, replicated on
// every process. Collective.
func (m *Matrix) L1Norm() float64 { return m.norm(lapack.MaxColumnSum) }

// LinftyNorm returns the maximum row sum of absolute values, replicated
// on every process. Collective.
func (m *Matrix) LinftyNorm() float64 { return m.norm(lapack.MaxRowSum) }

// FrobeniusNorm returns the square root of the sum of squared entries,
// replicated on every process. Collective.
func (m *Matrix) FrobeniusNorm() float64 { return m.norm(lapack.Frobenius) }

func (m *Matrix) norm(which lapack.MatrixNorm) float64 {
	if m.state != lapacksupport.Matrix && m.state != lapacksupport.InverseMatrix {
		panic(fmt.Errorf("matrix content is %v, need a plain or inverted matrix", m.state))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, d := m.gatherRoot()
	var v float64
	if d != nil {
		var lwork int
		if m.property == lapacksupport.Symmetric {
			if which == lapack.MaxColumnSum || which == lapack.MaxRowSum {
				lwork = m.rows
			}
			v = lapack64.Lansy(which, symLower(d), m.growWork(lwork))
		} else {
			if which == lapack.MaxColumnSum {
				lwork = m.cols
			}
			v = lapack64.Lange(which, d.RawMatrix(), m.growWork(lwork))
		}
	}
	return m.bcastFloat64(v)
}
