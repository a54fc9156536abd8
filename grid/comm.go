package grid

import (
	"fmt"
	"sort"
)

// Internal protocol tags. User tags must be non-negative.
const (
	tagBarrierIn = -(iota + 1)
	tagBarrierOut
	tagBcast
	tagReduce
	tagGather
)

// Comm is this worker's handle on one communicator. Handles are not shared
// between workers; the underlying fabric is. All collective methods must be
// called by every member of the communicator, in the same order, or the
// group deadlocks.
type Comm struct {
	world *World
	fab   *fabric
	rank  int
	group []int // world ranks of the members, ascending for derived comms
}

func (c *Comm) Rank() int { return c.rank }

func (c *Comm) Size() int { return len(c.group) }

// WorldRank returns this worker's rank in the world pool, independent of any
// derived communicator numbering.
func (c *Comm) WorldRank() int { return c.group[c.rank] }

// Group returns the world ranks of the members. The slice is shared; treat
// it as read-only.
func (c *Comm) Group() []int { return c.group }

// Same reports whether two handles address the same communicator.
func (c *Comm) Same(o *Comm) bool {
	return o != nil && c.fab == o.fab
}

// Close releases this worker's handle. Each member closes its own handle;
// any use afterwards panics.
func (c *Comm) Close() {
	c.check()
	c.fab = nil
}

func (c *Comm) check() {
	if c.fab == nil {
		panic("comm: use after Close")
	}
}

func (c *Comm) sendMsg(dst, tag int, data any) {
	if dst < 0 || dst >= c.Size() {
		panic(fmt.Errorf("comm: destination rank %d out of range [0,%d)", dst, c.Size()))
	}
	c.fab.links[c.rank][dst] <- message{tag: tag, data: data}
}

func (c *Comm) recvMsg(src, tag int) any {
	if src < 0 || src >= c.Size() {
		panic(fmt.Errorf("comm: source rank %d out of range [0,%d)", src, c.Size()))
	}
	msg := <-c.fab.links[src][c.rank]
	if msg.tag != tag {
		panic(fmt.Errorf("comm: rank %d expected tag %d from rank %d, got %d",
			c.rank, tag, src, msg.tag))
	}
	return msg.data
}

func cloneFloat64s(vals []float64) (buf []float64) {
	buf = make([]float64, len(vals))
	copy(buf, vals)
	return
}

func cloneInts(vals []int) (buf []int) {
	buf = make([]int, len(vals))
	copy(buf, vals)
	return
}

// SendFloat64s posts a copy of vals to dst. Blocks only when the pair link
// is saturated. A worker may send to itself.
func (c *Comm) SendFloat64s(vals []float64, dst, tag int) {
	c.check()
	if tag < 0 {
		panic("comm: user tags must be non-negative")
	}
	c.sendMsg(dst, tag, cloneFloat64s(vals))
}

// RecvFloat64s blocks until the next message from src arrives and returns
// its payload. The tag is an assertion on the protocol, not a filter:
// receiving an unexpected tag is fatal.
func (c *Comm) RecvFloat64s(src, tag int) []float64 {
	c.check()
	if tag < 0 {
		panic("comm: user tags must be non-negative")
	}
	return c.recvMsg(src, tag).([]float64)
}

func (c *Comm) SendInts(vals []int, dst, tag int) {
	c.check()
	if tag < 0 {
		panic("comm: user tags must be non-negative")
	}
	c.sendMsg(dst, tag, cloneInts(vals))
}

func (c *Comm) RecvInts(src, tag int) []int {
	c.check()
	if tag < 0 {
		panic("comm: user tags must be non-negative")
	}
	return c.recvMsg(src, tag).([]int)
}

// Barrier blocks until every member has entered it.
func (c *Comm) Barrier() {
	c.check()
	if c.Size() == 1 {
		return
	}
	if c.rank == 0 {
		for r := 1; r < c.Size(); r++ {
			c.recvMsg(r, tagBarrierIn)
		}
		for r := 1; r < c.Size(); r++ {
			c.sendMsg(r, tagBarrierOut, nil)
		}
	} else {
		c.sendMsg(0, tagBarrierIn, nil)
		c.recvMsg(0, tagBarrierOut)
	}
}

// BcastFloat64s overwrites vals on every member with root's copy. All
// members must pass slices of equal length.
func (c *Comm) BcastFloat64s(vals []float64, root int) {
	c.check()
	if c.Size() == 1 {
		return
	}
	if c.rank == root {
		for r := 0; r < c.Size(); r++ {
			if r == root {
				continue
			}
			c.sendMsg(r, tagBcast, cloneFloat64s(vals))
		}
	} else {
		buf := c.recvMsg(root, tagBcast).([]float64)
		if len(buf) != len(vals) {
			panic(fmt.Errorf("comm: bcast length mismatch, root sent %d, have %d",
				len(buf), len(vals)))
		}
		copy(vals, buf)
	}
}

func (c *Comm) BcastInts(vals []int, root int) {
	c.check()
	if c.Size() == 1 {
		return
	}
	if c.rank == root {
		for r := 0; r < c.Size(); r++ {
			if r == root {
				continue
			}
			c.sendMsg(r, tagBcast, cloneInts(vals))
		}
	} else {
		buf := c.recvMsg(root, tagBcast).([]int)
		if len(buf) != len(vals) {
			panic(fmt.Errorf("comm: bcast length mismatch, root sent %d, have %d",
				len(buf), len(vals)))
		}
		copy(vals, buf)
	}
}

// AllreduceSum replaces vals on every member with the element-wise sum over
// all members.
func (c *Comm) AllreduceSum(vals []float64) {
	c.check()
	if c.Size() == 1 {
		return
	}
	if c.rank == 0 {
		for r := 1; r < c.Size(); r++ {
			buf := c.recvMsg(r, tagReduce).([]float64)
			if len(buf) != len(vals) {
				panic(fmt.Errorf("comm: reduce length mismatch, rank %d sent %d, have %d",
					r, len(buf), len(vals)))
			}
			for i, v := range buf {
				vals[i] += v
			}
		}
	} else {
		c.sendMsg(0, tagReduce, cloneFloat64s(vals))
	}
	c.BcastFloat64s(vals, 0)
}

// AllgatherInt returns the per-rank values in rank order, identical on every
// member.
func (c *Comm) AllgatherInt(v int) (res []int) {
	c.check()
	res = make([]int, c.Size())
	res[c.rank] = v
	if c.Size() == 1 {
		return
	}
	if c.rank == 0 {
		for r := 1; r < c.Size(); r++ {
			res[r] = c.recvMsg(r, tagGather).([]int)[0]
		}
	} else {
		c.sendMsg(0, tagGather, []int{v})
	}
	c.BcastInts(res, 0)
	return
}

// Subset derives a communicator over the given member ranks of c. Members
// must be ascending, unique and in range. Non-members get nil back and do
// not synchronize; members block until the whole subset has arrived.
func (c *Comm) Subset(members []int) *Comm {
	c.check()
	if len(members) == 0 {
		panic("comm: empty subset")
	}
	myIdx := -1
	for i, r := range members {
		if r < 0 || r >= c.Size() {
			panic(fmt.Errorf("comm: subset member %d out of range [0,%d)", r, c.Size()))
		}
		if i > 0 && members[i-1] >= r {
			panic("comm: subset members must be ascending and unique")
		}
		if r == c.rank {
			myIdx = i
		}
	}
	if myIdx == -1 {
		return nil
	}
	worldMembers := make([]int, len(members))
	for i, r := range members {
		worldMembers[i] = c.group[r]
	}
	return &Comm{
		world: c.world,
		fab:   c.world.joinGroup(worldMembers),
		rank:  myIdx,
		group: worldMembers,
	}
}

// CommGroup derives a communicator over an explicit world-rank set without
// involving anyone else: only the listed workers call it, and they block
// until the whole group has arrived. The caller must be a member. The result
// is a fresh context even when an identical group exists already; release it
// with Close when done.
func (c *Comm) CommGroup(worldRanks []int) *Comm {
	c.check()
	if len(worldRanks) == 0 {
		panic("comm: empty group")
	}
	members := make([]int, len(worldRanks))
	copy(members, worldRanks)
	sort.Ints(members)
	for i := 1; i < len(members); i++ {
		if members[i-1] == members[i] {
			panic("comm: group members must be unique")
		}
	}
	myIdx := sort.SearchInts(members, c.WorldRank())
	if myIdx == len(members) || members[myIdx] != c.WorldRank() {
		panic(fmt.Errorf("comm: caller world rank %d is not a group member", c.WorldRank()))
	}
	return &Comm{
		world: c.world,
		fab:   c.world.joinGroup(members),
		rank:  myIdx,
		group: members,
	}
}

// Union derives a communicator over the union of two member sets. Every
// worker belonging to either communicator must call Union exactly once,
// holding both handles.
func (c *Comm) Union(o *Comm) *Comm {
	c.check()
	if o == nil {
		panic("comm: union with nil")
	}
	seen := make(map[int]bool, len(c.group)+len(o.group))
	members := make([]int, 0, len(c.group)+len(o.group))
	for _, r := range c.group {
		if !seen[r] {
			seen[r] = true
			members = append(members, r)
		}
	}
	for _, r := range o.group {
		if !seen[r] {
			seen[r] = true
			members = append(members, r)
		}
	}
	return c.CommGroup(members)
}
