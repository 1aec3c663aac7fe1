package core

import (
	"sync/atomic"
	"unsafe"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rend.core")

// ---------------------------------------------------------------------------
// Interp: one interpreter instance
// ---------------------------------------------------------------------------

// Options configures interpreter startup. The zero value gives the
// built-in sizing.
type Options struct {
	PoolScale    float64 // scales built-in pool segment sizing
	Ballast      int64   // bytes allocated between collections
	AlwaysMalloc bool    // bypass pools for data (leak tooling)
	ProbeOnFail  bool    // mold every error at the fail point
}

// DefaultBallast is the allocation budget between collections.
const DefaultBallast = 3 * 1024 * 1024

// Interp owns every piece of interpreter state: the pools, the GC
// bookkeeping, the symbol tables, the signal mask, the thrown-argument
// slot, the trap stack, and the standard contexts. One Interp serves
// one goroutine; nothing here is safe for concurrent use except Halt.
type Interp struct {
	pools      []*pool
	sizeToPool []int8

	ballast      int64
	ballastReset int64
	alwaysMalloc bool
	probeOnFail  bool

	// symbols
	canons        map[string]*Series
	spellings     map[string]*Series
	protectedSyms []*Series

	// actions
	dispatchers []Dispatcher

	// evaluator state
	topFrame   *Frame
	frameDepth int
	dataStack []Cell
	signals   atomic.Uint32
	thrownArg Cell
	traps     []*trapSnapshot

	// GC bookkeeping
	guarded    []guardRef // explicit protect stack
	manuals    []*Series
	prevExpand [8]*Series
	prevExpandAt int
	handleCleanups map[*Series]func(*Cell)
	handleValues   map[*Series]any
	mallocs        map[uintptr]*Series // malloc'd buffers by base address
	gcDisabled     int
	recycleCount   int64

	// mold state
	moldBuf   *Series // shared byte buffer
	moldStack []*Series

	// standard contexts and boot values
	lib  *Series // lib context varlist
	sys  *Series
	user *Series

	stackOverflowError *Series // pre-built error contexts
	haltError          *Series

	errorCatalog map[string]map[string]string

	bootDone bool
}

// Signal bits.
const (
	sigHalt    uint32 = 1 << 0
	sigRecycle uint32 = 1 << 1
)

// NewInterp boots a fresh interpreter: pools, symbols, the standard
// contexts, the error catalog, and the native actions.
func NewInterp(opts Options) *Interp {
	in := &Interp{}

	in.initPools(opts.PoolScale)
	if opts.Ballast <= 0 {
		opts.Ballast = DefaultBallast
	}
	in.ballast = opts.Ballast
	in.ballastReset = opts.Ballast
	in.alwaysMalloc = opts.AlwaysMalloc
	in.probeOnFail = opts.ProbeOnFail

	in.handleCleanups = make(map[*Series]func(*Cell))
	in.handleValues = make(map[*Series]any)
	in.mallocs = make(map[uintptr]*Series)
	in.initSymbols()

	in.moldBuf = in.MakeSeries(256, 1, nodeFlagManaged)

	in.lib = in.MakeContext(KindModule, 64)
	in.sys = in.MakeContext(KindModule, 16)
	in.user = in.MakeContext(KindModule, 16)

	in.initErrorCatalog()
	in.initNatives()

	in.bootDone = true
	log.Debugf("interpreter booted: %d pools, %d symbols",
		len(in.pools), len(in.spellings))
	return in
}

// Lib returns the lib context varlist.
func (in *Interp) Lib() *Series {
	return in.lib
}

// User returns the user context varlist.
func (in *Interp) User() *Series {
	return in.user
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// setSignal raises a signal bit. Safe from other goroutines (Halt).
func (in *Interp) setSignal(sig uint32) {
	for {
		old := in.signals.Load()
		if in.signals.CompareAndSwap(old, old|sig) {
			return
		}
	}
}

func (in *Interp) clearSignal(sig uint32) {
	for {
		old := in.signals.Load()
		if in.signals.CompareAndSwap(old, old&^sig) {
			return
		}
	}
}

// Halt requests cancellation: the next evaluator safe point fails with
// the pre-built halt error. Callable from any goroutine.
func (in *Interp) Halt() {
	in.setSignal(sigHalt)
}

// checkSignals runs at evaluator safe points: between expression
// evaluations and inside loop natives.
func (in *Interp) checkSignals() {
	sigs := in.signals.Load()
	if sigs == 0 {
		return
	}
	if sigs&sigRecycle != 0 {
		in.clearSignal(sigRecycle)
		in.Recycle()
	}
	if sigs&sigHalt != 0 {
		in.clearSignal(sigHalt)
		in.failHalt()
	}
}

// ---------------------------------------------------------------------------
// Data stack
// ---------------------------------------------------------------------------

// dsDepth returns the data stack depth.
func (in *Interp) dsDepth() int {
	return len(in.dataStack)
}

// dsPush pushes a copy of the cell and returns the new top. Pointers
// into the data stack go stale across any further push.
func (in *Interp) dsPush(v *Cell) *Cell {
	in.dataStack = append(in.dataStack, Cell{})
	top := &in.dataStack[len(in.dataStack)-1]
	top.header = nodeFlagNode | nodeFlagCell
	if v != nil {
		top.Move(v)
	} else {
		top.InitNull()
	}
	return top
}

// dsAt returns the cell at depth i (0-based from the bottom).
func (in *Interp) dsAt(i int) *Cell {
	return &in.dataStack[i]
}

// dsDrop rewinds the data stack to the given depth.
func (in *Interp) dsDrop(depth int) {
	in.dataStack = in.dataStack[:depth]
}

// dsPopToArray pops everything above base into a fresh array.
func (in *Interp) dsPopToArray(base int, flags uint64) *Series {
	n := len(in.dataStack) - base
	arr := in.MakeArray(n, flags)
	if n > 0 {
		in.ExpandSeries(arr, 0, n)
		for i := 0; i < n; i++ {
			arr.At(i).Move(&in.dataStack[base+i])
		}
	}
	in.dsDrop(base)
	return arr
}

// ---------------------------------------------------------------------------
// Guard stack
// ---------------------------------------------------------------------------

// guardRef is one entry of the guard stack. Entries are typed (not
// packed pointer bits) so that guarded stack-local cells escape to the
// heap and stay valid.
type guardRef struct {
	series *Series
	cell   *Cell
}

// GuardSeries protects a series from collection until the matching
// drop, for use across allocations that might trigger a GC.
func (in *Interp) GuardSeries(s *Series) {
	in.guarded = append(in.guarded, guardRef{series: s})
}

// GuardCell protects the contents of a cell the GC would not
// otherwise see.
func (in *Interp) GuardCell(c *Cell) {
	in.guarded = append(in.guarded, guardRef{cell: c})
}

// DropGuard removes the most recent guard. Guards are strictly LIFO.
func (in *Interp) DropGuard() {
	in.guarded = in.guarded[:len(in.guarded)-1]
}

// ---------------------------------------------------------------------------
// Manuals list
// ---------------------------------------------------------------------------

// Manage promotes an unmanaged series out of the manuals list and
// under GC control. The expected pattern is LIFO.
func (in *Interp) Manage(s *Series) {
	if s.IsManaged() {
		return
	}
	for i := len(in.manuals) - 1; i >= 0; i-- {
		if in.manuals[i] == s {
			in.manuals = append(in.manuals[:i], in.manuals[i+1:]...)
			break
		}
	}
	s.SetFlag(nodeFlagManaged)
}

// FreeUnmanaged explicitly frees a series still on the manuals list.
func (in *Interp) FreeUnmanaged(s *Series) {
	if s.IsManaged() {
		panic("manuals: FreeUnmanaged on managed series")
	}
	for i := len(in.manuals) - 1; i >= 0; i-- {
		if in.manuals[i] == s {
			in.manuals = append(in.manuals[:i], in.manuals[i+1:]...)
			in.killSeries(s)
			return
		}
	}
	panic("manuals: series not on manuals list")
}

// truncateManuals frees every manual series pushed after the snapshot
// depth; used by fail recovery. Malloc buffers among them drop their
// registry entries too.
func (in *Interp) truncateManuals(depth int) {
	for len(in.manuals) > depth {
		s := in.manuals[len(in.manuals)-1]
		in.manuals = in.manuals[:len(in.manuals)-1]
		if s.IsDynamic() && s.data != nil {
			delete(in.mallocs, uintptr(unsafe.Pointer(&s.data[0])))
		}
		in.killSeries(s)
	}
}
