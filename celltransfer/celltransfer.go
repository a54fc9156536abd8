/*
Package celltransfer carries cell attached data across mesh adaptation.
Before the mesh coarsens and refines, the transfer records how every
active cell will change; afterwards it moves a value container indexed by
the old active cell order into one indexed by the new order: values on
untouched cells persist, a refined cell hands its value to all of its
children, and the values of coarsened siblings are reduced onto their
parent by a caller chosen strategy.

The mesh collaborators are read only interfaces so any quadtree or octree
style refinement hierarchy can be driven through the transfer. Cell
implementations must be comparable (pointers in practice) since cells key
the recorded classification.
*/
package celltransfer

import "fmt"

// Cell is one cell of a refinement hierarchy. ActiveIndex enumerates the
// active cells in the mesh's iteration order and is only meaningful while
// the cell is active.
type Cell interface {
	ActiveIndex() int
	Level() int
	RefineFlagSet() bool
	CoarsenFlagSet() bool
	Parent() Cell
	NChildren() int
	Child(i int) Cell
	IsActive() bool
}

// Mesh enumerates the currently active cells of a hierarchy.
type Mesh interface {
	ActiveCells() []Cell
	NActiveCells() int
}

// CoarseningStrategy reduces the values of a sibling group onto their
// parent.
type CoarseningStrategy[T any] func(children []T) T

// Sum reduces siblings by summation.
func Sum(children []float64) (s float64) {
	for _, v := range children {
		s += v
	}
	return
}

// Mean reduces siblings to their arithmetic mean.
func Mean(children []float64) float64 {
	return Sum(children) / float64(len(children))
}

// Max reduces siblings to their largest value.
func Max(children []float64) float64 {
	m := children[0]
	for _, v := range children[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Values is a random access container of cell attached data.
type Values[T any] interface {
	Len() int
	At(i int) T
	Set(i int, v T)
}

// Finalizer is an optional capability of a Values container; Unpack calls
// it once after all entries are written.
type Finalizer interface {
	Finalize()
}

// Slice adapts a plain slice to the Values interface.
type Slice[T any] []T

func (s Slice[T]) Len() int       { return len(s) }
func (s Slice[T]) At(i int) T     { return s[i] }
func (s Slice[T]) Set(i int, v T) { s[i] = v }

// Transfer moves cell attached data of type T across one coarsen/refine
// cycle of its mesh.
type Transfer[T any] struct {
	mesh     Mesh
	strategy CoarseningStrategy[T]

	persisting map[Cell]int
	refined    map[Cell]int
	coarsened  map[Cell][]int
	oldCount   int
	prepared   bool
}

// New builds a transfer for the given mesh. The strategy may be nil when
// no cells will coarsen.
func New[T any](mesh Mesh, strategy CoarseningStrategy[T]) *Transfer[T] {
	return &Transfer[T]{mesh: mesh, strategy: strategy}
}

// PrepareForCoarseningAndRefinement classifies every active cell by its
// pending adaptation flags. It must run after flags are set and before
// the mesh executes the adaptation. Each group of coarsening siblings is
// recorded once, through the first sibling visited; a sibling that is not
// active or not flagged for coarsening is a fatal inconsistency.
func (tr *Transfer[T]) PrepareForCoarseningAndRefinement() {
	tr.persisting = make(map[Cell]int)
	tr.refined = make(map[Cell]int)
	tr.coarsened = make(map[Cell][]int)
	tr.oldCount = tr.mesh.NActiveCells()

	for _, cell := range tr.mesh.ActiveCells() {
		switch {
		case cell.RefineFlagSet():
			tr.refined[cell] = cell.ActiveIndex()
		case cell.CoarsenFlagSet():
			if cell.Level() == 0 {
				panic(fmt.Errorf("cannot coarsen the level zero cell with active index %d", cell.ActiveIndex()))
			}
			parent := cell.Parent()
			if _, seen := tr.coarsened[parent]; seen {
				continue
			}
			indices := make([]int, 0, parent.NChildren())
			for i := 0; i < parent.NChildren(); i++ {
				child := parent.Child(i)
				if !child.IsActive() || !child.CoarsenFlagSet() {
					panic(fmt.Errorf("sibling %d of a coarsening group is not an active cell flagged for coarsening", i))
				}
				indices = append(indices, child.ActiveIndex())
			}
			tr.coarsened[parent] = indices
		default:
			tr.persisting[cell] = cell.ActiveIndex()
		}
	}
	tr.prepared = true
}

// Unpack moves the recorded data from in, indexed by the old active cell
// order, into out, indexed by the adapted mesh's active cell order. The
// container sizes must match the recorded old count and the current
// active count exactly. If out implements Finalizer it is finalized once
// after all entries are written.
func (tr *Transfer[T]) Unpack(in, out Values[T]) {
	if !tr.prepared {
		panic(fmt.Errorf("transfer has not been prepared for coarsening and refinement"))
	}
	if in.Len() != tr.oldCount {
		panic(fmt.Errorf("input holds %d values, the mesh had %d active cells", in.Len(), tr.oldCount))
	}
	if out.Len() != tr.mesh.NActiveCells() {
		panic(fmt.Errorf("output holds %d values, the mesh has %d active cells", out.Len(), tr.mesh.NActiveCells()))
	}

	for cell, oldIndex := range tr.persisting {
		out.Set(cell.ActiveIndex(), in.At(oldIndex))
	}
	for cell, oldIndex := range tr.refined {
		v := in.At(oldIndex)
		for i := 0; i < cell.NChildren(); i++ {
			child := cell.Child(i)
			if !child.IsActive() {
				panic(fmt.Errorf("child %d of a refined cell is not active after adaptation", i))
			}
			out.Set(child.ActiveIndex(), v)
		}
	}
	if len(tr.coarsened) > 0 && tr.strategy == nil {
		panic(fmt.Errorf("coarsened cells present but no coarsening strategy given"))
	}
	for parent, indices := range tr.coarsened {
		children := make([]T, len(indices))
		for i, idx := range indices {
			children[i] = in.At(idx)
		}
		out.Set(parent.ActiveIndex(), tr.strategy(children))
	}
	if f, ok := out.(Finalizer); ok {
		f.Finalize()
	}
}

// UnpackSlices is Unpack for plain slices.
func (tr *Transfer[T]) UnpackSlices(in, out []T) {
	tr.Unpack(Slice[T](in), Slice[T](out))
}
