// Package grid provides the process pool, communicators and the 2D process
// grid used to distribute dense matrices. Workers are goroutines that share
// nothing and exchange data only through per-pair message links, so a worker
// behaves like a separate process: all cross-worker operations are collective
// and blocking.
package grid

import (
	"fmt"
	"sync"
)

type message struct {
	tag  int
	data any
}

// fabric is the message plane of one communicator: a buffered FIFO link for
// every ordered (src, dst) pair. Links are never closed; a communicator is
// released by dropping the handle.
type fabric struct {
	n     int
	links [][]chan message
}

// linkDepth bounds the number of undelivered messages per pair. The
// collective protocols post at most two messages per pair per operation, so
// this never blocks a well-formed program.
const linkDepth = 16

func newFabric(n int) (f *fabric) {
	f = &fabric{
		n:     n,
		links: make([][]chan message, n),
	}
	for i := 0; i < n; i++ {
		f.links[i] = make([]chan message, n)
		for j := 0; j < n; j++ {
			f.links[i][j] = make(chan message, linkDepth)
		}
	}
	return
}

// World is a fixed-size pool of workers. Each call to Run spawns one
// goroutine per rank with a fresh base communicator spanning the whole pool,
// and returns when every worker function has returned.
type World struct {
	size   int
	mu     sync.Mutex
	groups map[string]*pendingGroup
}

func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Errorf("world size must be positive, have %d", size))
	}
	return &World{
		size:   size,
		groups: make(map[string]*pendingGroup),
	}
}

func (w *World) Size() int { return w.size }

func (w *World) Run(f func(c *Comm)) {
	var (
		fab = newFabric(w.size)
		wg  sync.WaitGroup
	)
	group := make([]int, w.size)
	for i := range group {
		group[i] = i
	}
	wg.Add(w.size)
	for rank := 0; rank < w.size; rank++ {
		go func(r int) {
			defer wg.Done()
			f(&Comm{world: w, fab: fab, rank: r, group: group})
		}(rank)
	}
	wg.Wait()
}

// pendingGroup is a rendezvous for communicator creation: the first member
// to arrive allocates the fabric, the last removes the registry entry and
// releases the rest. Keyed by the sorted world-rank list, so the blocking
// join also guarantees two identical groups can never overlap in time.
type pendingGroup struct {
	fab     *fabric
	arrived int
	done    chan struct{}
}

func (w *World) joinGroup(members []int) *fabric {
	key := fmt.Sprint(members)
	w.mu.Lock()
	p, exists := w.groups[key]
	if !exists {
		p = &pendingGroup{
			fab:  newFabric(len(members)),
			done: make(chan struct{}),
		}
		w.groups[key] = p
	}
	p.arrived++
	if p.arrived == len(members) {
		delete(w.groups, key)
		close(p.done)
	}
	w.mu.Unlock()
	<-p.done
	return p.fab
}
