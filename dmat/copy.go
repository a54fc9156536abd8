package dmat

import (
	"fmt"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
)

// Message tags used on the dedicated redistribution context.
const (
	tagRemapIdx = iota
	tagRemapVal
)

// gemr2d redistributes the nr x nc submatrix of src starting at
// (srcRow, srcCol) into dst starting at (dstRow, dstCol). The two matrices
// may live on different grids with different block sizes, as long as ctx
// spans every process of both. With transpose set, element (i, j) of the
// source range lands at the transposed position of the destination range.
//
// Every process of ctx must call gemr2d with the same arguments. Processes
// outside a matrix's grid simply hold no tiles for it.
func gemr2d(ctx *grid.Comm, src *Matrix, srcRow, srcCol int, dst *Matrix, dstRow, dstCol, nr, nc int, transpose bool) {
	ctxOf := make(map[int]int, ctx.Size())
	for i, wr := range ctx.Group() {
		ctxOf[wr] = i
	}

	// Translate grid ranks to context ranks for the active processes of
	// each grid. Grid rank r of an active process is its rank on the
	// grid's base communicator.
	srcGroup := src.grid.Comm().Group()
	dstGroup := dst.grid.Comm().Group()
	nSrc := src.grid.NumActive()
	nDst := dst.grid.NumActive()
	srcCtx := make([]int, nSrc)
	for r := 0; r < nSrc; r++ {
		srcCtx[r] = ctxOf[srcGroup[r]]
	}
	dstCtx := make([]int, nDst)
	for r := 0; r < nDst; r++ {
		dstCtx[r] = ctxOf[dstGroup[r]]
	}

	if src.grid.IsActive() {
		idx := make([][]int, nDst)
		val := make([][]float64, nDst)
		for lj := 0; lj < src.localCols; lj++ {
			gj := src.GlobalColumn(lj)
			if gj < srcCol || gj >= srcCol+nc {
				continue
			}
			for li := 0; li < src.localRows; li++ {
				gi := src.GlobalRow(li)
				if gi < srcRow || gi >= srcRow+nr {
					continue
				}
				dgi := gi - srcRow + dstRow
				dgj := gj - srcCol + dstCol
				if transpose {
					dgi = gj - srcCol + dstRow
					dgj = gi - srcRow + dstCol
				}
				prow := globalToProcess(dgi, dst.rowBlock, dst.grid.Rows, 0)
				pcol := globalToProcess(dgj, dst.colBlock, dst.grid.Cols, 0)
				rd := prow*dst.grid.Cols + pcol
				idx[rd] = append(idx[rd], dgi, dgj)
				val[rd] = append(val[rd], src.values[li+lj*src.lld])
			}
		}
		for rd := 0; rd < nDst; rd++ {
			ctx.SendInts(idx[rd], dstCtx[rd], tagRemapIdx)
			ctx.SendFloat64s(val[rd], dstCtx[rd], tagRemapVal)
		}
	}

	if dst.grid.IsActive() {
		for _, from := range srcCtx {
			ids := ctx.RecvInts(from, tagRemapIdx)
			vals := ctx.RecvFloat64s(from, tagRemapVal)
			for k, v := range vals {
				li := globalToLocal(ids[2*k], dst.rowBlock, dst.grid.Rows)
				lj := globalToLocal(ids[2*k+1], dst.colBlock, dst.grid.Cols)
				dst.values[li+lj*dst.lld] = v
			}
		}
	}
}

// CopyTo copies the full content, state and property of m into dst, which
// must have the same global extents. The two matrices may live on
// different grids or use different block sizes; in that case the content
// is redistributed over a context spanning both grids. Collective over the
// processes of both grids' communicators.
func (m *Matrix) CopyTo(dst *Matrix) {
	if m.rows != dst.rows || m.cols != dst.cols {
		panic(fmt.Errorf("dimension mismatch: have %dx%d, want %dx%d",
			dst.rows, dst.cols, m.rows, m.cols))
	}
	if m.grid.IsActive() && m.desc[0] != 1 {
		panic(fmt.Errorf("unsupported source descriptor type %d", m.desc[0]))
	}
	if dst.grid.IsActive() && dst.desc[0] != 1 {
		panic(fmt.Errorf("unsupported destination descriptor type %d", dst.desc[0]))
	}
	if m.grid == dst.grid && m.rowBlock == dst.rowBlock && m.colBlock == dst.colBlock {
		if m.grid.IsActive() {
			copy(dst.values, m.values)
		}
	} else {
		ctx := m.grid.Comm().Union(dst.grid.Comm())
		gemr2d(ctx, m, 0, 0, dst, 0, 0, m.rows, m.cols, false)
		ctx.Close()
	}
	dst.state = m.state
	dst.property = m.property
}

// CopySubmatrixTo copies the rows x cols submatrix of m starting at
// (srcRow, srcCol) into dst starting at (dstRow, dstCol). Both matrices
// must be distributed over the same base communicator; their grids and
// block sizes may differ. An empty extent is a no-op. The destination
// state becomes Matrix. Collective over the shared communicator.
func (m *Matrix) CopySubmatrixTo(dst *Matrix, srcRow, srcCol, dstRow, dstCol, rows, cols int) {
	if rows == 0 || cols == 0 {
		return
	}
	if rows < 0 || cols < 0 {
		panic(fmt.Errorf("submatrix extents must be non-negative, have %dx%d", rows, cols))
	}
	if srcRow < 0 || srcRow+rows > m.rows || srcCol < 0 || srcCol+cols > m.cols {
		panic(fmt.Errorf("submatrix %dx%d at (%d,%d) outside source %dx%d",
			rows, cols, srcRow, srcCol, m.rows, m.cols))
	}
	if dstRow < 0 || dstRow+rows > dst.rows || dstCol < 0 || dstCol+cols > dst.cols {
		panic(fmt.Errorf("submatrix %dx%d at (%d,%d) outside destination %dx%d",
			rows, cols, dstRow, dstCol, dst.rows, dst.cols))
	}
	if !m.grid.Comm().Same(dst.grid.Comm()) {
		panic(fmt.Errorf("source and destination grids must share a communicator"))
	}
	ctx := m.grid.Comm().Union(dst.grid.Comm())
	gemr2d(ctx, m, srcRow, srcCol, dst, dstRow, dstCol, rows, cols, false)
	ctx.Close()
	dst.state = lapacksupport.Matrix
}

// scatterFrom copies the content of mirror back onto m's distribution
// without touching m's state bookkeeping.
func (m *Matrix) scatterFrom(mirror *Matrix) {
	ctx := mirror.grid.Comm().Union(m.grid.Comm())
	gemr2d(ctx, mirror, 0, 0, m, 0, 0, m.rows, m.cols, false)
	ctx.Close()
}
