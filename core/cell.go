package core

import (
	"math"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Cell: the fixed-size tagged value record
// ---------------------------------------------------------------------------

// A Cell is exactly four machine words: a header word plus three
// payload-sized words (extra, first, second).
//
// Header layout (low 32 bits of the header word):
//
//	byte 0  node flags (node, free, cell, managed, root, marked, stack, transient)
//	byte 1  kind byte (0 = END sentinel, doubles as the array terminator)
//	byte 2  generic cell flags
//	byte 3  mirror byte (second copy of the kind, for dispatch variants)
//
// Node pointers stored in the extra/first/second slots are raw address
// bits, in the style of NaN-boxed object pointers. This is safe because
// every node lives inside a pool segment that the pool itself keeps
// reachable; the collector that decides liveness is ours, not Go's.
type Cell struct {
	header uint64
	extra  uint64
	first  uint64
	second uint64
}

// Node flag bits (byte 0 of cell headers and series info words).
const (
	nodeFlagNode      uint64 = 1 << 0 // this memory is an initialized node
	nodeFlagFree      uint64 = 1 << 1 // node is on a pool free list
	nodeFlagCell      uint64 = 1 << 2 // node is a cell, not a series stub
	nodeFlagManaged   uint64 = 1 << 3 // lifetime governed by the GC
	nodeFlagRoot      uint64 = 1 << 4 // API handle root
	nodeFlagMarked    uint64 = 1 << 5 // GC mark (or cell-local scratch mark)
	nodeFlagStack     uint64 = 1 << 6 // stack lifetime (frame-owned)
	nodeFlagTransient uint64 = 1 << 7 // freed implicitly on evaluator step
)

// freedNodeByte is written into byte 0 of a node handed back to a pool.
// The GC sweep relies on it to skip free-list entries.
const freedNodeByte = nodeFlagNode | nodeFlagFree

// Generic cell flags (byte 2).
const (
	cellFlagFirstIsNode   uint64 = 1 << 16 // payload first is a node pointer
	cellFlagSecondIsNode  uint64 = 1 << 17 // payload second is a node pointer
	cellFlagUnevaluated   uint64 = 1 << 18 // produced without evaluation
	cellFlagNewlineBefore uint64 = 1 << 19 // newline preceded this value in source
	cellFlagConst         uint64 = 1 << 20 // view is const
	cellFlagMutable       uint64 = 1 << 21 // explicitly mutable override
	cellFlagProtected     uint64 = 1 << 22 // writes rejected
	cellFlagEnfixed       uint64 = 1 << 23 // action invoked infix
)

// cellMaskCopy is the set of header bits transferred by Move: the kind
// and mirror bytes plus the structural and source-texture flags. All
// lifetime, protection, and evaluation-state bits stay behind.
const cellMaskCopy = uint64(0xFF00)<<0 | uint64(0xFF)<<24 |
	cellFlagFirstIsNode | cellFlagSecondIsNode |
	cellFlagNewlineBefore | cellFlagConst | cellFlagMutable

// cellMaskCopyFlags is the flag-only portion of the copy mask, with
// the kind and mirror bytes excluded.
const cellMaskCopyFlags = cellFlagFirstIsNode | cellFlagSecondIsNode |
	cellFlagNewlineBefore | cellFlagConst | cellFlagMutable

// cellMaskPersist is the set of destination header bits preserved by
// Move: the node-identity and lifetime bits of the slot being written.
const cellMaskPersist = nodeFlagNode | nodeFlagCell |
	nodeFlagManaged | nodeFlagRoot | nodeFlagStack | nodeFlagTransient

// ---------------------------------------------------------------------------
// Node pointer packing
// ---------------------------------------------------------------------------

// A node slot refers either to a *Series stub or to a pairing *Cell.
// Both begin with a flags word whose cell bit tells them apart.

func seriesBits(s *Series) uint64 {
	return uint64(uintptr(unsafe.Pointer(s)))
}

func seriesFromBits(bits uint64) *Series {
	if bits == 0 {
		return nil
	}
	return (*Series)(unsafe.Pointer(uintptr(bits)))
}

func cellBits(c *Cell) uint64 {
	return uint64(uintptr(unsafe.Pointer(c)))
}

func cellFromBits(bits uint64) *Cell {
	if bits == 0 {
		return nil
	}
	return (*Cell)(unsafe.Pointer(uintptr(bits)))
}

// nodeHeader reads the leading flags word of an unknown node.
func nodeHeader(bits uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(bits)))
}

func nodeIsCell(bits uint64) bool {
	return nodeHeader(bits)&nodeFlagCell != 0
}

// ---------------------------------------------------------------------------
// Header access
// ---------------------------------------------------------------------------

// KindByte returns the raw kind byte, including any quote bias.
func (c *Cell) KindByte() uint8 {
	return uint8(c.header >> 8)
}

// IsEnd reports whether the cell is the END sentinel (zero kind byte).
func (c *Cell) IsEnd() bool {
	return uint8(c.header>>8) == 0
}

// Kind returns the cell's datatype, seeing through quoting: any quoted
// value answers KindQuoted.
func (c *Cell) Kind() Kind {
	b := c.KindByte()
	if b >= quoteShift {
		return KindQuoted
	}
	return Kind(b)
}

// HeartKind returns the unquoted datatype of the cell.
func (c *Cell) HeartKind() Kind {
	b := c.KindByte()
	if b >= quoteShift {
		if Kind(b%quoteShift) == KindQuoted {
			// biased escape: impossible, escape cells are unbiased
			panic("cell: quote bias on escape kind")
		}
		return Kind(b % quoteShift)
	}
	if Kind(b) == KindQuoted {
		return c.Unescaped().Kind()
	}
	return Kind(b)
}

func (c *Cell) mirrorByte() uint8 {
	return uint8(c.header >> 24)
}

func (c *Cell) setMirror(b uint8) {
	c.header = c.header&^(uint64(0xFF)<<24) | uint64(b)<<24
}

// GetFlag reports whether the given header flag is set.
func (c *Cell) GetFlag(flag uint64) bool {
	return c.header&flag != 0
}

// SetFlag sets a header flag.
func (c *Cell) SetFlag(flag uint64) {
	c.header |= flag
}

// ClearFlag clears a header flag.
func (c *Cell) ClearFlag(flag uint64) {
	c.header &^= flag
}

// IsProtected reports whether writes to the cell are rejected.
func (c *Cell) IsProtected() bool {
	return c.GetFlag(cellFlagProtected)
}

// ---------------------------------------------------------------------------
// Reset / Move
// ---------------------------------------------------------------------------

// Reset writes a fresh header of the given kind into the cell, keeping
// the slot's persist bits. Extra and payload are left as garbage; the
// caller must fill them before the next read.
func (c *Cell) Reset(k Kind, flags uint64) {
	persist := c.header & cellMaskPersist
	c.header = persist | nodeFlagNode | nodeFlagCell |
		uint64(k)<<8 | uint64(k)<<24 | flags
}

// resetQuoted writes a header with an explicit (possibly biased) kind byte.
func (c *Cell) resetByte(b uint8, flags uint64) {
	persist := c.header & cellMaskPersist
	c.header = persist | nodeFlagNode | nodeFlagCell |
		uint64(b)<<8 | uint64(b)<<24 | flags
}

// Move copies src into c: header bits under the copy mask, extra, and
// both payload slots. The destination keeps its own persist bits.
// Lifetime, mark, protection, enfix, and unevaluated state do not travel.
func (c *Cell) Move(src *Cell) {
	if c.IsProtected() {
		panic("cell: move into protected cell")
	}
	persist := c.header & cellMaskPersist
	c.header = persist | nodeFlagNode | nodeFlagCell | src.header&cellMaskCopy
	c.extra = src.extra
	c.first = src.first
	c.second = src.second
}

// ---------------------------------------------------------------------------
// Simple initializers
// ---------------------------------------------------------------------------

// InitEnd formats the cell as the END sentinel.
func (c *Cell) InitEnd() {
	persist := c.header & cellMaskPersist
	c.header = persist | nodeFlagNode | nodeFlagCell // kind byte zero
	c.extra = 0
	c.first = 0
	c.second = 0
}

// InitNull makes the cell a null value.
func (c *Cell) InitNull() {
	c.Reset(KindNull, 0)
	c.extra = 0
	c.first = 0
	c.second = 0
}

// InitBlank makes the cell a blank.
func (c *Cell) InitBlank() {
	c.Reset(KindBlank, 0)
	c.extra = 0
	c.first = 0
	c.second = 0
}

// InitLogic makes the cell a logic value.
func (c *Cell) InitLogic(b bool) {
	c.Reset(KindLogic, 0)
	c.extra = 0
	c.second = 0
	if b {
		c.first = 1
	} else {
		c.first = 0
	}
}

// InitInteger makes the cell a 64-bit integer.
func (c *Cell) InitInteger(n int64) {
	c.Reset(KindInteger, 0)
	c.extra = 0
	c.first = uint64(n)
	c.second = 0
}

// InitDecimal makes the cell a 64-bit decimal.
func (c *Cell) InitDecimal(f float64) {
	c.Reset(KindDecimal, 0)
	c.extra = 0
	c.first = math.Float64bits(f)
	c.second = 0
}

// InitChar makes the cell a character; the codepoint lives in extra.
func (c *Cell) InitChar(r rune) {
	c.Reset(KindChar, 0)
	c.extra = uint64(uint32(r))
	c.first = 0
	c.second = 0
}

// InitDatatype makes the cell a datatype value for the given kind.
func (c *Cell) InitDatatype(k Kind) {
	c.Reset(KindDatatype, 0)
	c.extra = 0
	c.first = uint64(k)
	c.second = 0
}

// ---------------------------------------------------------------------------
// Immediate accessors
// ---------------------------------------------------------------------------

// Int64 returns the integer payload. The cell must be an integer.
func (c *Cell) Int64() int64 {
	if c.Kind() != KindInteger {
		panic("cell: Int64 on " + c.Kind().String())
	}
	return int64(c.first)
}

// Float64 returns the decimal payload. The cell must be a decimal.
func (c *Cell) Float64() float64 {
	if c.Kind() != KindDecimal {
		panic("cell: Float64 on " + c.Kind().String())
	}
	return math.Float64frombits(c.first)
}

// Logic returns the logic payload. The cell must be a logic value.
func (c *Cell) Logic() bool {
	if c.Kind() != KindLogic {
		panic("cell: Logic on " + c.Kind().String())
	}
	return c.first != 0
}

// Char returns the character payload. The cell must be a char.
func (c *Cell) Char() rune {
	if c.Kind() != KindChar {
		panic("cell: Char on " + c.Kind().String())
	}
	return rune(uint32(c.extra))
}

// DatatypeKind returns the kind named by a datatype cell.
func (c *Cell) DatatypeKind() Kind {
	if c.Kind() != KindDatatype {
		panic("cell: DatatypeKind on " + c.Kind().String())
	}
	return Kind(c.first)
}

// IsTruthy reports conditional truth: null, blank, and false are
// falsey; every other value is truthy.
func (c *Cell) IsTruthy() bool {
	switch c.Kind() {
	case KindNull, KindBlank:
		return false
	case KindLogic:
		return c.first != 0
	default:
		return true
	}
}

// IsNulled reports whether the cell holds null.
func (c *Cell) IsNulled() bool {
	return c.Kind() == KindNull
}

// ---------------------------------------------------------------------------
// Series-backed accessors
// ---------------------------------------------------------------------------

// SeriesNode returns the series in the first payload slot.
func (c *Cell) SeriesNode() *Series {
	if !c.GetFlag(cellFlagFirstIsNode) {
		panic("cell: SeriesNode on non-node payload")
	}
	return seriesFromBits(c.first)
}

// Index returns the cached series index in the second payload slot.
func (c *Cell) Index() int {
	return int(int64(c.second))
}

// SetIndex updates the cached series index.
func (c *Cell) SetIndex(i int) {
	c.second = uint64(int64(i))
}

// InitSeries makes the cell reference a series at the given index.
// The kind must be one of the series kinds.
func (c *Cell) InitSeries(k Kind, s *Series, index int) {
	if !k.IsSeries() {
		panic("cell: InitSeries of non-series " + k.String())
	}
	c.Reset(k, cellFlagFirstIsNode)
	c.extra = 0
	c.first = seriesBits(s)
	c.second = uint64(int64(index))
}

// ---------------------------------------------------------------------------
// Quoting
// ---------------------------------------------------------------------------

// NumQuotes returns the quote depth of the cell (0 when unquoted).
func (c *Cell) NumQuotes() int {
	b := c.KindByte()
	if b >= quoteShift {
		return int(b / quoteShift)
	}
	if Kind(b) == KindQuoted {
		return int(int64(c.second))
	}
	return 0
}

// Unescaped returns the view of the cell beneath deep-quote escapes.
// For shallow (biased) quoting the cell itself is returned; callers
// wanting the unquoted kind should mask via HeartKind.
func (c *Cell) Unescaped() *Cell {
	if Kind(c.KindByte()) == KindQuoted {
		return cellFromBits(c.first)
	}
	return c
}

// Quotify raises the quote level of the cell by depth. Levels up to 3
// bias the kind byte in place; deeper levels migrate the value into a
// pairing-cell escape allocated from the interpreter's pairing pool.
func (in *Interp) Quotify(c *Cell, depth int) {
	if depth == 0 {
		return
	}
	cur := c.NumQuotes()
	total := cur + depth
	base := c.KindByte()
	if base >= quoteShift {
		base = base % quoteShift
	}
	if Kind(base) == KindQuoted {
		// already escaped: bump the recorded depth
		c.second = uint64(int64(total))
		return
	}
	if total <= 3 {
		c.resetByte(base+uint8(total)*quoteShift, c.header&cellMaskCopyFlags)
		return
	}
	// escape form: move the unbiased value into a pairing cell
	pair := in.allocPairing()
	pair.Move(c)
	pair.resetByte(base, pair.header&cellMaskCopyFlags)
	c.Reset(KindQuoted, cellFlagFirstIsNode)
	c.extra = 0
	c.first = cellBits(pair)
	c.second = uint64(int64(total))
}

// Dequoted returns a copy of the cell with every quote level removed.
func (c *Cell) Dequoted() Cell {
	p := *c
	p.header &^= cellFlagProtected
	if n := p.NumQuotes(); n > 0 {
		p.Unquotify(n)
	}
	return p
}

// HasNewlineBefore reports whether the scanner recorded a line break
// ahead of this value in the source.
func (c *Cell) HasNewlineBefore() bool {
	return c.GetFlag(cellFlagNewlineBefore)
}

// SetNewlineBefore records a line break ahead of this value.
func (c *Cell) SetNewlineBefore() {
	c.SetFlag(cellFlagNewlineBefore)
}

// Unquotify lowers the quote level of the cell by depth.
func (c *Cell) Unquotify(depth int) {
	if depth == 0 {
		return
	}
	cur := c.NumQuotes()
	if depth > cur {
		panic("cell: Unquotify past depth")
	}
	rest := cur - depth
	if Kind(c.KindByte()) == KindQuoted {
		inner := c.Unescaped()
		if rest > 3 {
			c.second = uint64(int64(rest))
			return
		}
		c.Move(inner)
		if rest > 0 {
			c.resetByte(c.KindByte()+uint8(rest)*quoteShift, c.header&cellMaskCopyFlags)
		}
		return
	}
	base := c.KindByte() % quoteShift
	c.resetByte(base+uint8(rest)*quoteShift, c.header&cellMaskCopyFlags)
}
