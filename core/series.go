package core

import "unsafe"

// ---------------------------------------------------------------------------
// Series: variable-length vectors of equal-width elements
// ---------------------------------------------------------------------------

// Series is a heap stub describing a vector of equal-width elements.
// Width 0 means an array of cells; other widths are raw byte storage.
//
// Info word layout:
//
//	byte 0  node flags (same bits as cell headers; cell bit clear)
//	byte 1  length byte, or 255 when the series is in dynamic form
//	byte 2  element width in bytes (0 = array of cells)
//	bits 24+  series flags
//
// Tiny series store their content inline in the stub itself: arrays in
// the single inline cell (singular arrays), byte series in the small
// buffer. Dynamic series carry a pooled buffer plus bias/used
// bookkeeping; bias is unused leading capacity consumed by cheap head
// insertion.
type Series struct {
	info uint64
	link uint64 // subtype node or bits: keylist, canon, owner, file
	misc uint64 // subtype node or bits: meta, dispatcher index, line

	// dynamic form
	data    []byte // byte content, full pool unit
	cells   []Cell // array content, full pool unit view
	bias    int    // unused leading units
	used    int    // element count
	poolIdx int8   // pool owning the buffer, -1 for system allocation

	// inline form
	cell  Cell              // arrays: the one inline cell
	small [smallSize]uint8  // byte series: inline bytes
}

// smallSize is the inline byte capacity of a stub, sized to the cell.
const smallSize = 4 * 8

// dynamicLenByte in the length byte marks a series as dynamic.
const dynamicLenByte = 255

// Series flags (bits 24 and up of the info word).
const (
	seriesFlagFixedSize     uint64 = 1 << 24 // expansion is an error
	seriesFlagFrozen        uint64 = 1 << 25 // all mutation is an error
	seriesFlagInaccessible  uint64 = 1 << 26 // data freed; reads are an error
	seriesFlagPowerOfTwo    uint64 = 1 << 27 // round capacity up to powers of two
	seriesFlagDontRelocate  uint64 = 1 << 28 // expansion must not move the buffer
	seriesFlagIsVarlist     uint64 = 1 << 29 // context variable array
	seriesFlagIsParamlist   uint64 = 1 << 30 // action parameter array
	seriesFlagIsKeylist     uint64 = 1 << 31 // context key array
	seriesFlagKeylistShared uint64 = 1 << 32 // keylist used by several contexts
	seriesFlagIsDetails     uint64 = 1 << 33 // action body/dispatcher array
	seriesFlagIsSymbol      uint64 = 1 << 34 // interned word spelling
	seriesFlagIsCanon       uint64 = 1 << 35 // canonical spelling
	seriesFlagHasFileLine   uint64 = 1 << 36 // link/misc are file symbol and line
	seriesFlagNewlineAtTail uint64 = 1 << 37 // mold emits a newline before the tail
	seriesFlagLinkIsNode    uint64 = 1 << 38 // GC marks the link slot
	seriesFlagMiscIsNode    uint64 = 1 << 39 // GC marks the misc slot
	seriesFlagVarlistFailed uint64 = 1 << 40 // frame varlist dropped by a fail
	seriesFlagIsSingular    uint64 = 1 << 41 // length-1 inline array (API handle shape)
)

// ---------------------------------------------------------------------------
// Stub access
// ---------------------------------------------------------------------------

// Width returns the element width in bytes (0 for arrays).
func (s *Series) Width() int {
	return int(uint8(s.info >> 16))
}

// IsArray reports whether the series holds cells.
func (s *Series) IsArray() bool {
	return uint8(s.info>>16) == 0
}

// IsDynamic reports whether content lives in a separate buffer.
func (s *Series) IsDynamic() bool {
	return uint8(s.info>>8) == dynamicLenByte
}

func (s *Series) lenByte() int {
	return int(uint8(s.info >> 8))
}

func (s *Series) setLenByte(n int) {
	s.info = s.info&^(uint64(0xFF)<<8) | uint64(uint8(n))<<8
}

// GetFlag reports whether an info flag is set.
func (s *Series) GetFlag(flag uint64) bool {
	return s.info&flag != 0
}

// SetFlag sets an info flag.
func (s *Series) SetFlag(flag uint64) {
	s.info |= flag
}

// ClearFlag clears an info flag.
func (s *Series) ClearFlag(flag uint64) {
	s.info &^= flag
}

// IsManaged reports whether the series is under GC control.
func (s *Series) IsManaged() bool {
	return s.info&nodeFlagManaged != 0
}

func (s *Series) isFreeStub() bool {
	return s.info&nodeFlagFree != 0
}

// Len returns the element count.
func (s *Series) Len() int {
	if s.IsDynamic() {
		return s.used
	}
	return s.lenByte()
}

// Rest returns the total capacity in units past the bias, including
// the used portion and unused trailing capacity.
func (s *Series) Rest() int {
	if !s.IsDynamic() {
		if s.IsArray() {
			return 1
		}
		return smallSize / s.Width()
	}
	if s.IsArray() {
		return len(s.cells) - s.bias
	}
	return len(s.data)/s.Width() - s.bias
}

// Bias returns the unused leading capacity in units.
func (s *Series) Bias() int {
	if !s.IsDynamic() {
		return 0
	}
	return s.bias
}

// LinkNode returns the series in the link slot, if flagged as a node.
func (s *Series) LinkNode() *Series {
	return seriesFromBits(s.link)
}

// MiscNode returns the series in the misc slot, if flagged as a node.
func (s *Series) MiscNode() *Series {
	return seriesFromBits(s.misc)
}

// ---------------------------------------------------------------------------
// Byte content
// ---------------------------------------------------------------------------

// Bytes returns the logical byte content of a non-array series.
func (s *Series) Bytes() []byte {
	if s.IsArray() {
		panic("series: Bytes on array")
	}
	w := s.Width()
	if !s.IsDynamic() {
		return s.small[:s.lenByte()*w]
	}
	return s.data[s.bias*w : (s.bias+s.used)*w]
}

// ByteAt returns a slice of the content starting at unit index i.
func (s *Series) ByteAt(i int) []byte {
	b := s.Bytes()
	return b[i*s.Width():]
}

// SetLen adjusts the logical length. Growing past capacity is the
// caller's responsibility (use Expand).
func (s *Series) SetLen(n int) {
	if s.IsDynamic() {
		s.used = n
		if s.IsArray() {
			s.cells[s.bias+n].InitEnd()
		}
		return
	}
	s.setLenByte(n)
	if s.IsArray() && n == 0 {
		s.cell.InitEnd()
	}
}

// ---------------------------------------------------------------------------
// Array content
// ---------------------------------------------------------------------------

// Head returns a pointer to the first cell of an array series.
func (s *Series) Head() *Cell {
	if !s.IsArray() {
		panic("series: Head on non-array")
	}
	if !s.IsDynamic() {
		return &s.cell
	}
	return &s.cells[s.bias]
}

// At returns a pointer to the cell at index i of an array series.
// Index Len() addresses the END terminator of dynamic arrays.
func (s *Series) At(i int) *Cell {
	if !s.IsArray() {
		panic("series: At on non-array")
	}
	if !s.IsDynamic() {
		if i == 0 {
			return &s.cell
		}
		panic("series: inline array index out of range")
	}
	return &s.cells[s.bias+i]
}

// Slice returns the logical cells of an array series.
func (s *Series) Slice() []Cell {
	if !s.IsArray() {
		panic("series: Slice on non-array")
	}
	if !s.IsDynamic() {
		if s.lenByte() == 0 {
			return nil
		}
		return unsafe.Slice(&s.cell, 1)
	}
	return s.cells[s.bias : s.bias+s.used]
}

// ---------------------------------------------------------------------------
// Creation
// ---------------------------------------------------------------------------

// cellSize is the byte size of one cell.
const cellSize = int(unsafe.Sizeof(Cell{}))

// MakeSeries allocates a series with room for capacity elements of the
// given width. Width 0 makes an array. The series starts unmanaged and
// is pushed onto the manuals list unless flags carry nodeFlagManaged.
func (in *Interp) MakeSeries(capacity, width int, flags uint64) *Series {
	s := in.allocStub()
	s.info = nodeFlagNode | uint64(uint8(width))<<16 | flags
	s.link = 0
	s.misc = 0
	s.poolIdx = -1

	if width == 0 {
		if capacity <= 1 {
			s.setLenByte(0)
			s.cell.InitEnd()
			s.SetFlag(seriesFlagIsSingular)
		} else {
			in.allocArrayData(s, capacity)
		}
	} else {
		if capacity*width <= smallSize {
			s.setLenByte(0)
		} else {
			in.allocByteData(s, capacity, width)
		}
	}

	if flags&nodeFlagManaged == 0 {
		in.manuals = append(in.manuals, s)
	}
	return s
}

// MakeArray allocates an array series (width 0).
func (in *Interp) MakeArray(capacity int, flags uint64) *Series {
	return in.MakeSeries(capacity, 0, flags)
}

// allocArrayData attaches a dynamic cell buffer with room for capacity
// cells plus the END terminator.
func (in *Interp) allocArrayData(s *Series, capacity int) {
	buf, idx := in.allocData((capacity+1)*cellSize, s.GetFlag(seriesFlagPowerOfTwo))
	n := len(buf) / cellSize
	s.cells = unsafe.Slice((*Cell)(unsafe.Pointer(&buf[0])), n)
	for i := range s.cells {
		s.cells[i] = Cell{}
	}
	s.data = buf
	s.bias = 0
	s.used = 0
	s.poolIdx = idx
	s.setLenByte(dynamicLenByte)
	s.cells[0].InitEnd()
}

// allocByteData attaches a dynamic byte buffer.
func (in *Interp) allocByteData(s *Series, capacity, width int) {
	buf, idx := in.allocData(capacity*width, s.GetFlag(seriesFlagPowerOfTwo))
	s.data = buf
	s.cells = nil
	s.bias = 0
	s.used = 0
	s.poolIdx = idx
	s.setLenByte(dynamicLenByte)
}

// ---------------------------------------------------------------------------
// Expansion
// ---------------------------------------------------------------------------

// ExpandSeries grows s by delta units at unit position at, leaving the
// inserted region uninitialized (arrays get END-safe zero cells). Head
// insertion consumes bias without copying when possible. After any
// expansion the series is dynamic.
func (in *Interp) ExpandSeries(s *Series, at, delta int) {
	if delta == 0 {
		return
	}
	in.ensureMutable(s)
	if s.GetFlag(seriesFlagFixedSize) {
		in.FailID(ErrSeries, "locked-series", nil)
	}

	if !s.IsDynamic() {
		in.promoteToDynamic(s, s.Len()+delta)
	}

	w := s.Width()
	used := s.used

	// head insertion served from bias
	if at == 0 && s.bias >= delta {
		s.bias -= delta
		s.used += delta
		if s.IsArray() {
			for i := 0; i < delta; i++ {
				s.cells[s.bias+i] = Cell{}
			}
		}
		return
	}

	avail := s.Rest() - used
	if s.IsArray() {
		avail-- // END slot
	}
	if avail >= delta {
		// slide the tail right in place
		if s.IsArray() {
			start := s.bias + at
			copy(s.cells[start+delta:s.bias+used+delta], s.cells[start:s.bias+used])
			for i := 0; i < delta; i++ {
				s.cells[start+i] = Cell{}
			}
			s.used += delta
			s.cells[s.bias+s.used].InitEnd()
		} else {
			start := (s.bias + at) * w
			end := (s.bias + used) * w
			copy(s.data[start+delta*w:end+delta*w], s.data[start:end])
			s.used += delta
		}
		in.noteExpansion(s)
		return
	}

	if s.GetFlag(seriesFlagDontRelocate) {
		in.FailID(ErrSeries, "locked-series", nil)
	}

	// relocate: allocate a larger buffer, copy around the gap
	newCap := used + delta
	if in.recentlyExpanded(s) {
		newCap = newCap * 2
	} else {
		newCap += newCap / 2
	}
	in.relocate(s, newCap, at, delta)
	in.noteExpansion(s)
}

// promoteToDynamic moves inline content into a fresh dynamic buffer.
func (in *Interp) promoteToDynamic(s *Series, capacity int) {
	n := s.lenByte()
	if s.IsArray() {
		var saved Cell
		if n == 1 {
			saved = s.cell
		}
		in.allocArrayData(s, capacity)
		if n == 1 {
			s.cells[0] = saved
		}
		s.used = n
		s.cells[n].InitEnd()
		s.ClearFlag(seriesFlagIsSingular)
	} else {
		w := s.Width()
		var saved [smallSize]byte
		copy(saved[:], s.small[:n*w])
		in.allocByteData(s, capacity, w)
		copy(s.data, saved[:n*w])
		s.used = n
	}
}

// relocate replaces the dynamic buffer with one of at least newCap
// units, copying content around a gap of delta units at position at.
// The old unbiased buffer goes back to its pool.
func (in *Interp) relocate(s *Series, newCap, at, delta int) {
	w := s.Width()
	oldData := s.data
	oldPool := s.poolIdx
	used := s.used

	if s.IsArray() {
		oldCells := s.cells[s.bias : s.bias+used]
		buf, idx := in.allocData((newCap+1)*cellSize, s.GetFlag(seriesFlagPowerOfTwo))
		n := len(buf) / cellSize
		cells := unsafe.Slice((*Cell)(unsafe.Pointer(&buf[0])), n)
		for i := range cells {
			cells[i] = Cell{}
		}
		copy(cells, oldCells[:at])
		copy(cells[at+delta:], oldCells[at:])
		s.data = buf
		s.cells = cells
		s.bias = 0
		s.used = used + delta
		s.poolIdx = idx
		cells[s.used].InitEnd()
	} else {
		oldBytes := s.data[s.bias*w : (s.bias+used)*w]
		buf, idx := in.allocData(newCap*w, s.GetFlag(seriesFlagPowerOfTwo))
		copy(buf, oldBytes[:at*w])
		copy(buf[(at+delta)*w:], oldBytes[at*w:])
		s.data = buf
		s.cells = nil
		s.bias = 0
		s.used = used + delta
		s.poolIdx = idx
	}
	in.freeData(oldData, oldPool)
}

// RemakeSeries reallocates s with room for newUnits elements, keeping
// min(len, newUnits) elements when preserve is set.
func (in *Interp) RemakeSeries(s *Series, newUnits int, preserve bool) {
	in.ensureMutable(s)
	oldLen := s.Len()
	keep := 0
	if preserve {
		keep = min(oldLen, newUnits)
	}
	w := s.Width()

	if s.IsArray() {
		var saved []Cell
		if keep > 0 {
			saved = append(saved, s.Slice()[:keep]...)
		}
		in.releaseContent(s)
		in.allocArrayData(s, newUnits)
		copy(s.cells, saved)
		s.used = keep
		s.cells[keep].InitEnd()
	} else {
		var saved []byte
		if keep > 0 {
			saved = append(saved, s.Bytes()[:keep*w]...)
		}
		in.releaseContent(s)
		in.allocByteData(s, newUnits, w)
		copy(s.data, saved)
		s.used = keep
	}
}

// SwapContent exchanges the content of two series while both keep
// their stub identities. Array-ness and unit width must match;
// ownership and subtype flags stay put.
func (in *Interp) SwapContent(a, b *Series) {
	if a.IsArray() != b.IsArray() || a.Width() != b.Width() {
		in.FailID(ErrScript, "invalid-arg", nil)
	}
	a.info, b.info = a.info&^contentInfoMask|b.info&contentInfoMask,
		b.info&^contentInfoMask|a.info&contentInfoMask
	a.data, b.data = b.data, a.data
	a.cells, b.cells = b.cells, a.cells
	a.bias, b.bias = b.bias, a.bias
	a.used, b.used = b.used, a.used
	a.poolIdx, b.poolIdx = b.poolIdx, a.poolIdx
	a.cell, b.cell = b.cell, a.cell
	a.small, b.small = b.small, a.small
}

// contentInfoMask covers the info bits that travel with content in a
// swap: the length byte and the width byte.
const contentInfoMask = uint64(0xFFFF) << 8

// ---------------------------------------------------------------------------
// Decay / Kill
// ---------------------------------------------------------------------------

// releaseContent returns any dynamic buffer to its pool.
func (in *Interp) releaseContent(s *Series) {
	if s.IsDynamic() && s.data != nil {
		in.freeData(s.data, s.poolIdx)
	}
	s.data = nil
	s.cells = nil
	s.bias = 0
	s.used = 0
	s.poolIdx = -1
}

// DecaySeries frees the data buffer and marks the stub inaccessible.
// Varlists and paramlists keep their archetype cell inline so that
// outstanding bindings can still identify the context.
func (in *Interp) DecaySeries(s *Series) {
	if s.GetFlag(seriesFlagInaccessible) {
		return
	}
	var archetype Cell
	keepArchetype := s.IsArray() && s.Len() > 0 &&
		(s.GetFlag(seriesFlagIsVarlist) || s.GetFlag(seriesFlagIsParamlist))
	if keepArchetype {
		archetype = *s.Head()
	}
	in.releaseContent(s)
	s.setLenByte(0)
	s.SetFlag(seriesFlagInaccessible)
	if keepArchetype {
		s.cell = archetype
		s.setLenByte(1)
	} else if s.IsArray() {
		s.cell.InitEnd()
	}
}

// killSeries decays the series and releases the stub back to the stub
// pool. Only the GC sweep and the manuals unmanager may call this.
func (in *Interp) killSeries(s *Series) {
	in.DecaySeries(s)
	in.freeStub(s)
}

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

// ensureMutable fails when the series rejects mutation.
func (in *Interp) ensureMutable(s *Series) {
	if s.GetFlag(seriesFlagInaccessible) {
		in.FailID(ErrSeries, "series-freed", nil)
	}
	if s.GetFlag(seriesFlagFrozen) {
		in.FailID(ErrSeries, "locked-series", nil)
	}
}

// ensureReadable fails when the series data has been freed.
func (in *Interp) ensureReadable(s *Series) {
	if s.GetFlag(seriesFlagInaccessible) {
		in.FailID(ErrSeries, "series-freed", nil)
	}
}

// ---------------------------------------------------------------------------
// Expansion LRU
// ---------------------------------------------------------------------------

// noteExpansion records s in the small ring of recently grown series;
// a repeat growth within the ring switches to doubling.
func (in *Interp) noteExpansion(s *Series) {
	in.prevExpand[in.prevExpandAt] = s
	in.prevExpandAt = (in.prevExpandAt + 1) % len(in.prevExpand)
}

func (in *Interp) recentlyExpanded(s *Series) bool {
	for _, p := range in.prevExpand {
		if p == s {
			return true
		}
	}
	return false
}
