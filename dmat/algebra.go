package dmat

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/notargets/godense/lapacksupport"
)

// Add overwrites the matrix with alpha*A + beta*op(B), where op is the
// identity or the transpose. Without the transpose B must match A's
// extents and block sizes exactly; with it the extents and block sizes
// must match crosswise. Both matrices must live on the same grid. The
// state becomes Matrix. Collective.
func (m *Matrix) Add(alpha, beta float64, b *Matrix, transposeB bool) {
	if transposeB {
		if m.rows != b.cols || m.cols != b.rows {
			panic(fmt.Errorf("dimension mismatch: %dx%d vs transposed %dx%d", m.rows, m.cols, b.rows, b.cols))
		}
		if m.rowBlock != b.colBlock || m.colBlock != b.rowBlock {
			panic(fmt.Errorf("block mismatch: %dx%d vs transposed %dx%d", m.rowBlock, m.colBlock, b.rowBlock, b.colBlock))
		}
	} else {
		if m.rows != b.rows || m.cols != b.cols {
			panic(fmt.Errorf("dimension mismatch: %dx%d vs %dx%d", m.rows, m.cols, b.rows, b.cols))
		}
		if m.rowBlock != b.rowBlock || m.colBlock != b.colBlock {
			panic(fmt.Errorf("block mismatch: %dx%d vs %dx%d", m.rowBlock, m.colBlock, b.rowBlock, b.colBlock))
		}
	}
	if m.grid != b.grid {
		panic(fmt.Errorf("matrices must share a process grid"))
	}
	src := b
	if transposeB {
		// realign the transpose onto this matrix's distribution first
		src = New(m.rows, m.cols, m.grid, m.rowBlock, m.colBlock, lapacksupport.General)
		ctx := m.grid.Comm().Union(b.grid.Comm())
		gemr2d(ctx, b, 0, 0, src, 0, 0, b.rows, b.cols, true)
		ctx.Close()
	}
	if m.grid.IsActive() {
		for k := range m.values {
			m.values[k] = alpha*m.values[k] + beta*src.values[k]
		}
	}
	m.setState(lapacksupport.Matrix)
}

// AddScaled adds a*B to the matrix.
func (m *Matrix) AddScaled(a float64, b *Matrix) { m.Add(1, a, b, false) }

// TAddScaled adds a*transpose(B) to the matrix.
func (m *Matrix) TAddScaled(a float64, b *Matrix) { m.Add(1, a, b, true) }

// CopyTransposed overwrites the matrix with the transpose of B.
func (m *Matrix) CopyTransposed(b *Matrix) { m.Add(0, 1, b, true) }

// Mult overwrites C with b*op(A)*op(B) + c*C, where each op is the
// identity or the transpose. All three matrices must live on the same
// grid, with extents and block sizes consistent for the requested
// products. C's state becomes Matrix. Collective.
func (m *Matrix) Mult(b float64, bm *Matrix, c float64, cm *Matrix, transposeA, transposeB bool) {
	if m.grid != bm.grid {
		panic(fmt.Errorf("matrices A and B must share a process grid"))
	}
	if bm.grid != cm.grid {
		panic(fmt.Errorf("matrices B and C must share a process grid"))
	}
	switch {
	case !transposeA && !transposeB:
		if m.cols != bm.rows || m.rows != cm.rows || bm.cols != cm.cols {
			panic(fmt.Errorf("dimension mismatch for %dx%d * %dx%d -> %dx%d",
				m.rows, m.cols, bm.rows, bm.cols, cm.rows, cm.cols))
		}
		if m.rowBlock != cm.rowBlock || m.colBlock != bm.rowBlock || bm.colBlock != cm.colBlock {
			panic(fmt.Errorf("block mismatch for %dx%d * %dx%d -> %dx%d",
				m.rowBlock, m.colBlock, bm.rowBlock, bm.colBlock, cm.rowBlock, cm.colBlock))
		}
	case transposeA && !transposeB:
		if m.rows != bm.rows || m.cols != cm.rows || bm.cols != cm.cols {
			panic(fmt.Errorf("dimension mismatch for transposed %dx%d * %dx%d -> %dx%d",
				m.rows, m.cols, bm.rows, bm.cols, cm.rows, cm.cols))
		}
		if m.colBlock != cm.rowBlock || m.rowBlock != bm.rowBlock || bm.colBlock != cm.colBlock {
			panic(fmt.Errorf("block mismatch for transposed %dx%d * %dx%d -> %dx%d",
				m.rowBlock, m.colBlock, bm.rowBlock, bm.colBlock, cm.rowBlock, cm.colBlock))
		}
	case !transposeA && transposeB:
		if m.cols != bm.cols || m.rows != cm.rows || bm.rows != cm.cols {
			panic(fmt.Errorf("dimension mismatch for %dx%d * transposed %dx%d -> %dx%d",
				m.rows, m.cols, bm.rows, bm.cols, cm.rows, cm.cols))
		}
		if m.rowBlock != cm.rowBlock || m.colBlock != bm.colBlock || bm.rowBlock != cm.colBlock {
			panic(fmt.Errorf("block mismatch for %dx%d * transposed %dx%d -> %dx%d",
				m.rowBlock, m.colBlock, bm.rowBlock, bm.colBlock, cm.rowBlock, cm.colBlock))
		}
	default:
		if m.rows != bm.cols || m.cols != cm.rows || bm.rows != cm.cols {
			panic(fmt.Errorf("dimension mismatch for transposed %dx%d * transposed %dx%d -> %dx%d",
				m.rows, m.cols, bm.rows, bm.cols, cm.rows, cm.cols))
		}
		if m.colBlock != cm.rowBlock || m.rowBlock != bm.colBlock || bm.rowBlock != cm.colBlock {
			panic(fmt.Errorf("block mismatch for transposed %dx%d * transposed %dx%d -> %dx%d",
				m.rowBlock, m.colBlock, bm.rowBlock, bm.colBlock, cm.rowBlock, cm.colBlock))
		}
	}
	_, da := m.gatherRoot()
	_, db := bm.gatherRoot()
	mirrorC, dc := cm.gatherRoot()
	if da != nil {
		tA, tB := blas.NoTrans, blas.NoTrans
		if transposeA {
			tA = blas.Trans
		}
		if transposeB {
			tB = blas.Trans
		}
		blas64.Gemm(tA, tB, b, da.RawMatrix(), db.RawMatrix(), c, dc.RawMatrix())
	}
	cm.scatterDense(mirrorC, dc)
	cm.setState(lapacksupport.Matrix)
}

// MMult overwrites C with A*B, or accumulates A*B onto C with adding.
func (m *Matrix) MMult(cm, bm *Matrix, adding bool) {
	c := 0.0
	if adding {
		c = 1
	}
	m.Mult(1, bm, c, cm, false, false)
}

// TMMult overwrites C with transpose(A)*B, or accumulates with adding.
func (m *Matrix) TMMult(cm, bm *Matrix, adding bool) {
	c := 0.0
	if adding {
		c = 1
	}
	m.Mult(1, bm, c, cm, true, false)
}

// MTMult overwrites C with A*transpose(B), or accumulates with adding.
func (m *Matrix) MTMult(cm, bm *Matrix, adding bool) {
	c := 0.0
	if adding {
		c = 1
	}
	m.Mult(1, bm, c, cm, false, true)
}

// TMTMult overwrites C with transpose(A)*transpose(B), or accumulates
// with adding.
func (m *Matrix) TMTMult(cm, bm *Matrix, adding bool) {
	c := 0.0
	if adding {
		c = 1
	}
	m.Mult(1, bm, c, cm, true, true)
}
