/*
Package dmat provides dense matrices distributed block-cyclically over a
two dimensional process grid, in the manner of ScaLAPACK. Each worker of a
grid.World holds its own *Matrix handle for the same logical matrix and
stores only the tiles dealt to it; collective operations (copy, multiply,
factorize, save, load) must be entered by every worker of the underlying
communicator.

Numerical kernels are delegated to a root process: the operands are
redistributed onto an ad-hoc 1x1 grid, the root runs the corresponding
gonum lapack64/blas64 routine, and results are scattered back onto the
callers' distribution and broadcast to processes outside the grid.
*/
package dmat

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

// Matrix is a dense rows x cols matrix of float64, distributed over a
// process grid in blocks of rowBlock x colBlock. Local tiles are stored
// column major with leading dimension lld. On processes outside the grid
// the local extents are -1 and the descriptor is all -1.
//
// A Matrix must not be copied after first use; pass *Matrix.
type Matrix struct {
	rows, cols           int
	rowBlock, colBlock   int
	grid                 *grid.ProcessGrid
	localRows, localCols int
	lld                  int
	values               []float64
	desc                 [9]int

	state    lapacksupport.State
	property lapacksupport.Property

	// mu serializes the numerical operations that share the scratch
	// buffers below.
	mu    sync.Mutex
	work  []float64
	iwork []int
}

// New constructs a rows x cols matrix distributed over pg with the given
// block sizes. The matrix starts in the plain Matrix state with the given
// property and all stored entries zero.
func New(rows, cols int, pg *grid.ProcessGrid, rowBlock, colBlock int, property lapacksupport.Property) (m *Matrix) {
	if rows < 1 || cols < 1 {
		panic(fmt.Errorf("matrix dimensions must be positive, have %dx%d", rows, cols))
	}
	if rowBlock < 1 || colBlock < 1 {
		panic(fmt.Errorf("block sizes must be positive, have %dx%d", rowBlock, colBlock))
	}
	if rowBlock > rows || colBlock > cols {
		panic(fmt.Errorf("block sizes %dx%d must not exceed matrix dimensions %dx%d",
			rowBlock, colBlock, rows, cols))
	}
	m = &Matrix{
		rows:      rows,
		cols:      cols,
		rowBlock:  rowBlock,
		colBlock:  colBlock,
		grid:      pg,
		localRows: -1,
		localCols: -1,
		lld:       -1,
		state:     lapacksupport.Matrix,
		property:  property,
	}
	for i := range m.desc {
		m.desc[i] = -1
	}
	if pg.IsActive() {
		m.localRows = numLocal(rows, rowBlock, pg.MyRow, pg.Rows, 0)
		m.localCols = numLocal(cols, colBlock, pg.MyCol, pg.Cols, 0)
		m.lld = m.localRows
		if m.lld < 1 {
			m.lld = 1
		}
		m.values = make([]float64, m.lld*m.localCols)
		m.desc = [9]int{1, pg.Rows<<16 | pg.Cols, rows, cols, rowBlock, colBlock, 0, 0, m.lld}
	}
	return
}

// NewSquare constructs a size x size matrix with a single block size for
// both dimensions.
func NewSquare(size int, pg *grid.ProcessGrid, blockSize int, property lapacksupport.Property) *Matrix {
	return New(size, size, pg, blockSize, blockSize, property)
}

// Dims returns the global extents of the matrix.
func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

// BlockDims returns the distribution block sizes.
func (m *Matrix) BlockDims() (rowBlock, colBlock int) { return m.rowBlock, m.colBlock }

// LocalDims returns the extents of the local tile, or (-1, -1) on a
// process outside the grid.
func (m *Matrix) LocalDims() (rows, cols int) { return m.localRows, m.localCols }

// Grid returns the process grid the matrix is distributed over.
func (m *Matrix) Grid() *grid.ProcessGrid { return m.grid }

// Descriptor returns the nine element array descriptor
// [dtype, ctxt, rows, cols, rowBlock, colBlock, rowSrc, colSrc, lld].
// All entries are -1 on a process outside the grid.
func (m *Matrix) Descriptor() [9]int { return m.desc }

// State reports which numerical operation last transformed the stored
// content.
func (m *Matrix) State() lapacksupport.State { return m.state }

// Property reports the structural property the caller has declared for
// the content.
func (m *Matrix) Property() lapacksupport.Property { return m.property }

// SetProperty declares a structural property of the content, for example
// lapacksupport.Symmetric before an eigensolve.
func (m *Matrix) SetProperty(p lapacksupport.Property) { m.property = p }

func (m *Matrix) setState(to lapacksupport.State) {
	if !lapacksupport.ValidTransition(m.state, to) {
		panic(fmt.Errorf("illegal matrix state transition %v -> %v", m.state, to))
	}
	m.state = to
}

// GlobalRow maps a local row index of this process' tile to its global
// row index.
func (m *Matrix) GlobalRow(localRow int) int {
	if localRow < 0 || localRow >= m.localRows {
		panic(fmt.Errorf("local row %d out of range [0,%d)", localRow, m.localRows))
	}
	return localToGlobal(localRow, m.rowBlock, m.grid.MyRow, m.grid.Rows, 0)
}

// GlobalColumn maps a local column index of this process' tile to its
// global column index.
func (m *Matrix) GlobalColumn(localCol int) int {
	if localCol < 0 || localCol >= m.localCols {
		panic(fmt.Errorf("local column %d out of range [0,%d)", localCol, m.localCols))
	}
	return localToGlobal(localCol, m.colBlock, m.grid.MyCol, m.grid.Cols, 0)
}

// LocalEl returns entry (i, j) of the local tile.
func (m *Matrix) LocalEl(i, j int) float64 { return m.values[i+j*m.lld] }

// SetLocalEl stores v at entry (i, j) of the local tile.
func (m *Matrix) SetLocalEl(i, j int, v float64) { m.values[i+j*m.lld] = v }

// Assign overwrites the distributed content with the replicated dense
// matrix src, which every process must pass with identical content and
// exactly matching dimensions. The state becomes Matrix. Returns m.
func (m *Matrix) Assign(src mat.Matrix) *Matrix {
	r, c := src.Dims()
	if r != m.rows || c != m.cols {
		panic(fmt.Errorf("dimension mismatch: have %dx%d, want %dx%d", r, c, m.rows, m.cols))
	}
	if m.grid.IsActive() {
		for j := 0; j < m.localCols; j++ {
			gj := m.GlobalColumn(j)
			for i := 0; i < m.localRows; i++ {
				m.values[i+j*m.lld] = src.At(m.GlobalRow(i), gj)
			}
		}
	}
	m.setState(lapacksupport.Matrix)
	return m
}

// CopyToDense gathers the distributed content into dst on every process
// of the communicator, including processes outside the grid. When the
// matrix carries a triangular property only the stored triangle is
// meaningful; the opposite triangle of dst is filled with the mirror for
// an inverse and with zeros otherwise.
func (m *Matrix) CopyToDense(dst *mat.Dense) {
	r, c := dst.Dims()
	if r != m.rows || c != m.cols {
		panic(fmt.Errorf("dimension mismatch: have %dx%d, want %dx%d", r, c, m.rows, m.cols))
	}
	buf := make([]float64, r*c)
	if m.grid.IsActive() {
		for j := 0; j < m.localCols; j++ {
			gj := m.GlobalColumn(j)
			for i := 0; i < m.localRows; i++ {
				buf[m.GlobalRow(i)*c+gj] = m.values[i+j*m.lld]
			}
		}
	}
	m.grid.Comm().AllreduceSum(buf)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, buf[i*c+j])
		}
	}
	mirror := m.state == lapacksupport.InverseMatrix
	switch m.property {
	case lapacksupport.LowerTriangular:
		for i := 0; i < r; i++ {
			for j := i + 1; j < c; j++ {
				if mirror && j < r && i < c {
					dst.Set(i, j, dst.At(j, i))
				} else {
					dst.Set(i, j, 0)
				}
			}
		}
	case lapacksupport.UpperTriangular:
		for i := 0; i < r; i++ {
			for j := 0; j < i && j < c; j++ {
				if mirror && j < r && i < c {
					dst.Set(i, j, dst.At(j, i))
				} else {
					dst.Set(i, j, 0)
				}
			}
		}
	}
}

// ScaleRows multiplies row i of the matrix by factors[i].
func (m *Matrix) ScaleRows(factors []float64) {
	if len(factors) != m.rows {
		panic(fmt.Errorf("dimension mismatch: have %d factors, want %d", len(factors), m.rows))
	}
	if !m.grid.IsActive() {
		return
	}
	for i := 0; i < m.localRows; i++ {
		s := factors[m.GlobalRow(i)]
		for j := 0; j < m.localCols; j++ {
			m.values[i+j*m.lld] *= s
		}
	}
}

// ScaleColumns multiplies column j of the matrix by factors[j].
func (m *Matrix) ScaleColumns(factors []float64) {
	if len(factors) != m.cols {
		panic(fmt.Errorf("dimension mismatch: have %d factors, want %d", len(factors), m.cols))
	}
	if !m.grid.IsActive() {
		return
	}
	for j := 0; j < m.localCols; j++ {
		s := factors[m.GlobalColumn(j)]
		for i := 0; i < m.localRows; i++ {
			m.values[i+j*m.lld] *= s
		}
	}
}
