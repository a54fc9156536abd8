package grid

import (
	"fmt"
	"math"
)

// ProcessGrid arranges the first Rows*Cols members of a communicator on a
// row-major 2D grid. Members beyond the grid are inactive: they hold no grid
// coordinate and sit out the numeric collectives, receiving results only
// through SendToInactive broadcasts. The grid is immutable and must outlive
// every matrix referencing it.
type ProcessGrid struct {
	Rows, Cols   int
	MyRow, MyCol int // (-1,-1) on inactive processes
	comm         *Comm
	active       *Comm // nil on inactive processes
	inactiveLink *Comm // lowest active rank plus all inactive ranks, nil when fully active
}

func NewProcessGrid(c *Comm, rows, cols int) (pg *ProcessGrid) {
	if rows < 1 || cols < 1 {
		panic(fmt.Errorf("process grid dimensions must be positive, have %dx%d", rows, cols))
	}
	if rows*cols > c.Size() {
		panic(fmt.Errorf("process grid %dx%d needs %d processes, communicator has %d",
			rows, cols, rows*cols, c.Size()))
	}
	pg = &ProcessGrid{
		Rows:  rows,
		Cols:  cols,
		MyRow: -1,
		MyCol: -1,
		comm:  c,
	}
	var (
		nActive = rows * cols
		rank    = c.Rank()
	)
	if rank < nActive {
		pg.MyRow = rank / cols
		pg.MyCol = rank % cols
	}
	members := make([]int, nActive)
	for i := range members {
		members[i] = i
	}
	pg.active = c.Subset(members)
	if nActive < c.Size() {
		link := make([]int, 0, c.Size()-nActive+1)
		link = append(link, 0)
		for r := nActive; r < c.Size(); r++ {
			link = append(link, r)
		}
		pg.inactiveLink = c.Subset(link)
	}
	return
}

// NewProcessGridForMatrix picks a near-square grid for an m x n matrix with
// the given block sizes, never exceeding the total block count: spreading a
// matrix of B blocks over more than B processes would leave some of them
// without a tile.
func NewProcessGridForMatrix(c *Comm, m, n, rowBlock, colBlock int) *ProcessGrid {
	if rowBlock < 1 || colBlock < 1 {
		panic(fmt.Errorf("block sizes must be positive, have %dx%d", rowBlock, colBlock))
	}
	var (
		blocks = ceilDiv(m, rowBlock) * ceilDiv(n, colBlock)
		np     = c.Size()
	)
	if blocks < np {
		np = blocks
	}
	if np < 1 {
		np = 1
	}
	rows := int(math.Sqrt(float64(np)))
	for np%rows != 0 {
		rows--
	}
	return NewProcessGrid(c, rows, np/rows)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func (pg *ProcessGrid) IsActive() bool { return pg.MyRow >= 0 }

func (pg *ProcessGrid) NumActive() int { return pg.Rows * pg.Cols }

// Comm returns the full communicator the grid was built over, active and
// inactive members included.
func (pg *ProcessGrid) Comm() *Comm { return pg.comm }

// ActiveComm returns the communicator spanning only the grid members, nil on
// inactive processes.
func (pg *ProcessGrid) ActiveComm() *Comm { return pg.active }

// RankOf returns the communicator rank owning grid coordinate (prow, pcol).
func (pg *ProcessGrid) RankOf(prow, pcol int) int {
	if prow < 0 || prow >= pg.Rows || pcol < 0 || pcol >= pg.Cols {
		panic(fmt.Errorf("grid coordinate (%d,%d) out of %dx%d", prow, pcol, pg.Rows, pg.Cols))
	}
	return prow*pg.Cols + pcol
}

// SendToInactiveFloat64s copies vals from the lowest-rank active process to
// every inactive process. Ranks outside the root-inactive link return
// immediately; on a fully active grid this is a no-op.
func (pg *ProcessGrid) SendToInactiveFloat64s(vals []float64) {
	if pg.inactiveLink == nil {
		return
	}
	pg.inactiveLink.BcastFloat64s(vals, 0)
}

func (pg *ProcessGrid) SendToInactiveInts(vals []int) {
	if pg.inactiveLink == nil {
		return
	}
	pg.inactiveLink.BcastInts(vals, 0)
}
