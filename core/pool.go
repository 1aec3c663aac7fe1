package core

import (
	"fmt"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Pools: fixed-width slab allocation for stubs, pairings, and data
// ---------------------------------------------------------------------------

// pool owns segments carved into equal-width units and an intrusive
// free list threaded through the units themselves. A freed unit gets
// the freed byte written into its leading flags byte (stub and pairing
// pools) and the pointer bits of the next free unit in its first word.
//
// Exactly one segment list is populated, according to the pool's role.
// Stub segments are typed so that the Go runtime scans the buffer
// references held inside stubs; everything else is pointer-free.
type pool struct {
	wide        int // unit size in bytes
	unitsPerSeg int

	byteSegs [][]byte
	stubSegs [][]Series
	pairSegs [][]Cell

	freeHead uint64 // pointer bits of the next free unit, 0 when empty
	has      int    // total units across all segments
	free     int    // units currently on the free list
}

// Distinguished pool indices within Interp.pools.
const (
	stubPoolIdx = 0
	pairPoolIdx = 1
	firstDataPool = 2
)

const (
	memMinUnit = 8
	memBigSize = 1024
	// sizeToPool covers requests up to maxPooledSize; larger requests
	// go to the system allocator.
	maxPooledSize = 4 * memBigSize
)

// dataPoolSpec lists the unit widths of the data pools: every multiple
// of the minimum unit up to 16 units, then steps of 4 units up to 32
// units, then steps of the big size up to 4 big sizes.
func dataPoolWidths() []int {
	var widths []int
	for w := memMinUnit; w <= 16*memMinUnit; w += memMinUnit {
		widths = append(widths, w)
	}
	for w := 16*memMinUnit + 4*memMinUnit; w <= 32*memMinUnit; w += 4 * memMinUnit {
		widths = append(widths, w)
	}
	for w := memBigSize; w <= maxPooledSize; w += memBigSize {
		widths = append(widths, w)
	}
	return widths
}

// initPools builds the pool table and the size-to-pool lookup table.
// scale stretches the built-in segment sizing at startup.
func (in *Interp) initPools(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	segUnits := func(base int) int {
		n := int(float64(base) * scale)
		if n < 8 {
			n = 8
		}
		return n
	}

	in.pools = make([]*pool, 0, 2+26)
	in.pools = append(in.pools, &pool{wide: stubSize, unitsPerSeg: segUnits(512)})
	in.pools = append(in.pools, &pool{wide: 2 * cellSize, unitsPerSeg: segUnits(512)})

	for _, w := range dataPoolWidths() {
		units := segUnits(4096 / w)
		in.pools = append(in.pools, &pool{wide: w, unitsPerSeg: units})
	}

	// size -> pool index, O(1)
	in.sizeToPool = make([]int8, maxPooledSize+1)
	pi := int8(firstDataPool)
	for sz := 0; sz <= maxPooledSize; sz++ {
		for in.pools[pi].wide < sz {
			pi++
		}
		in.sizeToPool[sz] = pi
	}
}

// stubSize is the byte size of a series stub.
const stubSize = int(unsafe.Sizeof(Series{}))

// ---------------------------------------------------------------------------
// Stub pool
// ---------------------------------------------------------------------------

// allocStub pops a stub from the stub pool, extending it with a fresh
// segment when the free list is empty. Failure to extend is fatal.
func (in *Interp) allocStub() *Series {
	p := in.pools[stubPoolIdx]
	if p.freeHead == 0 {
		seg := make([]Series, p.unitsPerSeg)
		p.stubSegs = append(p.stubSegs, seg)
		p.has += len(seg)
		for i := len(seg) - 1; i >= 0; i-- {
			s := &seg[i]
			s.info = freedNodeByte
			s.link = p.freeHead
			p.freeHead = seriesBits(s)
			p.free++
		}
	}
	s := seriesFromBits(p.freeHead)
	p.freeHead = s.link
	p.free--
	s.info = nodeFlagNode
	s.link = 0
	return s
}

// freeStub pushes a stub back onto the stub pool's free list.
func (in *Interp) freeStub(s *Series) {
	if s.isFreeStub() {
		panic("pool: double free of series stub")
	}
	p := in.pools[stubPoolIdx]
	s.info = freedNodeByte
	s.data = nil
	s.cells = nil
	s.misc = 0
	s.link = p.freeHead
	p.freeHead = seriesBits(s)
	p.free++
}

// ---------------------------------------------------------------------------
// Pairing pool
// ---------------------------------------------------------------------------

// allocPairing pops a cell pair, returning a pointer to the first cell
// of the pair. Both cells come back formatted as END.
func (in *Interp) allocPairing() *Cell {
	p := in.pools[pairPoolIdx]
	if p.freeHead == 0 {
		seg := make([]Cell, 2*p.unitsPerSeg)
		p.pairSegs = append(p.pairSegs, seg)
		p.has += p.unitsPerSeg
		for i := p.unitsPerSeg - 1; i >= 0; i-- {
			c := &seg[2*i]
			c.header = freedNodeByte | nodeFlagCell
			c.first = p.freeHead
			p.freeHead = cellBits(c)
			p.free++
		}
	}
	c := cellFromBits(p.freeHead)
	p.freeHead = c.first
	p.free--
	c.InitEnd()
	paired(c).InitEnd()
	return c
}

// paired returns the second cell of a pairing given the first.
func paired(c *Cell) *Cell {
	return (*Cell)(unsafe.Pointer(uintptr(unsafe.Pointer(c)) + uintptr(cellSize)))
}

// freePairing returns a pair to the pairing pool.
func (in *Interp) freePairing(c *Cell) {
	p := in.pools[pairPoolIdx]
	c.header = freedNodeByte | nodeFlagCell
	c.first = p.freeHead
	p.freeHead = cellBits(c)
	p.free++
}

// ---------------------------------------------------------------------------
// Data pools
// ---------------------------------------------------------------------------

// allocData returns a buffer of at least size bytes: a full pool unit
// when a pool covers the size, a system allocation otherwise (or
// always, under the always-malloc tooling toggle). The second return
// is the owning pool index, -1 for system memory.
func (in *Interp) allocData(size int, powerOfTwo bool) ([]byte, int8) {
	if size <= 0 {
		size = memMinUnit
	}
	if powerOfTwo {
		rounded := memMinUnit
		for rounded < size {
			rounded <<= 1
		}
		size = rounded
	}

	in.ballast -= int64(size)
	if in.ballast <= 0 {
		in.setSignal(sigRecycle)
	}

	if in.alwaysMalloc || size > maxPooledSize {
		return make([]byte, size), -1
	}

	pi := in.sizeToPool[size]
	p := in.pools[pi]
	if p.freeHead == 0 {
		seg := make([]byte, p.wide*p.unitsPerSeg)
		p.byteSegs = append(p.byteSegs, seg)
		p.has += p.unitsPerSeg
		for i := p.unitsPerSeg - 1; i >= 0; i-- {
			u := seg[i*p.wide:]
			*(*uint64)(unsafe.Pointer(&u[0])) = p.freeHead
			p.freeHead = uint64(uintptr(unsafe.Pointer(&u[0])))
		}
		p.free += p.unitsPerSeg
	}
	head := p.freeHead
	u := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(head))), p.wide)
	p.freeHead = *(*uint64)(unsafe.Pointer(&u[0]))
	p.free--
	for i := range u {
		u[i] = 0
	}
	return u, pi
}

// freeData returns a pooled buffer to its pool; system buffers are
// left to the runtime.
func (in *Interp) freeData(buf []byte, poolIdx int8) {
	if poolIdx < 0 || buf == nil {
		return
	}
	p := in.pools[poolIdx]
	*(*uint64)(unsafe.Pointer(&buf[0])) = p.freeHead
	p.freeHead = uint64(uintptr(unsafe.Pointer(&buf[0])))
	p.free++
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// PoolStats summarizes one pool for diagnostics.
type PoolStats struct {
	Wide int
	Has  int
	Free int
}

// Stats reports per-pool unit counts.
func (in *Interp) Stats() []PoolStats {
	out := make([]PoolStats, len(in.pools))
	for i, p := range in.pools {
		out[i] = PoolStats{Wide: p.wide, Has: p.has, Free: p.free}
	}
	return out
}

// CheckMemory walks every pool verifying free-list integrity and the
// conservation invariant has == free + live. It panics on violation;
// intended for tests and debugging.
func (in *Interp) CheckMemory() {
	for i, p := range in.pools {
		n := 0
		for bits := p.freeHead; bits != 0; {
			n++
			if n > p.has {
				panic(fmt.Sprintf("pool %d: free list cycle", i))
			}
			if i == stubPoolIdx {
				s := seriesFromBits(bits)
				if !s.isFreeStub() {
					panic(fmt.Sprintf("pool %d: live stub on free list", i))
				}
				bits = s.link
			} else if i == pairPoolIdx {
				c := cellFromBits(bits)
				if c.header&nodeFlagFree == 0 {
					panic(fmt.Sprintf("pool %d: live pairing on free list", i))
				}
				bits = c.first
			} else {
				bits = *(*uint64)(unsafe.Pointer(uintptr(bits)))
			}
		}
		if n != p.free {
			panic(fmt.Sprintf("pool %d: free count %d, list length %d", i, p.free, n))
		}
		segs := len(p.byteSegs) + len(p.stubSegs) + len(p.pairSegs)
		if p.has != segs*p.unitsPerSeg {
			panic(fmt.Sprintf("pool %d: has %d, segments supply %d", i, p.has, segs*p.unitsPerSeg))
		}
	}
}
