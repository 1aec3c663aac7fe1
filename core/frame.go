package core

// ---------------------------------------------------------------------------
// Frames: one running invocation on the interpreter stack
// ---------------------------------------------------------------------------

// Frame is the transient record for an evaluator level: either a plain
// array evaluation or an action invocation with gathered arguments.
// Frames live on the Go stack of the evaluator and are linked through
// prior; the GC surveys the whole chain.
//
// Argument cells live in the frame itself while it runs. Reifying the
// frame copies them into a heap varlist whose keylist is the action's
// paramlist, so bindings into the frame stay valid after it returns.
type Frame struct {
	prior *Frame

	Out   *Cell // result cell, owned by the caller
	spare Cell  // scratch cell surveyed by GC

	// feed: the array being consumed
	feed      *Series
	index     int
	specifier *Frame // resolves relative bindings in the feed

	// invocation state (nil/empty for plain evaluation levels)
	action  *Series // paramlist
	details *Series
	args    []Cell
	varlist *Series // reified heap context, once requested
	label   *Series // invocation word's symbol, for errors and throws

	dsBase int // data stack depth at entry
}

// maxFrameDepth bounds evaluator recursion; crossing it fails with the
// pre-built stack overflow error rather than exhausting the Go stack.
const maxFrameDepth = 4000

// pushFrame links a frame on top of the stack.
func (in *Interp) pushFrame(f *Frame) {
	if in.frameDepth >= maxFrameDepth {
		in.failStackOverflow()
	}
	f.prior = in.topFrame
	f.dsBase = len(in.dataStack)
	in.topFrame = f
	in.frameDepth++
}

// popFrame unlinks the top frame.
func (in *Interp) popFrame(f *Frame) {
	if in.topFrame != f {
		panic("frame: pop out of order")
	}
	in.topFrame = f.prior
	in.frameDepth--
}

// dropFrameOnFail aborts a frame being unwound by a fail: its data
// stack residue is discarded and a reified varlist is flagged so leak
// tooling can tell deliberate releases from fail cleanup.
func (in *Interp) dropFrameOnFail(f *Frame) {
	if f.varlist != nil && f.varlist.IsManaged() {
		f.varlist.SetFlag(seriesFlagVarlistFailed)
	}
	in.topFrame = f.prior
	in.frameDepth--
}

// Arg returns argument cell i (1-based, matching paramlist keys).
func (f *Frame) Arg(i int) *Cell {
	return &f.args[i-1]
}

// Param returns parameter key i (1-based).
func (f *Frame) Param(i int) *Cell {
	return ActionParam(f.action, i)
}

// NumArgs returns the argument count of an invocation frame.
func (f *Frame) NumArgs() int {
	return len(f.args)
}

// Spare returns the frame's scratch cell.
func (f *Frame) Spare() *Cell {
	return &f.spare
}

// Label returns the invocation symbol, or nil for anonymous calls.
func (f *Frame) Label() *Series {
	return f.label
}

// AtEnd reports whether the frame's feed is exhausted.
func (f *Frame) AtEnd() bool {
	return f.feed == nil || f.index >= f.feed.Len()
}

// current returns the feed cell under the frame's index.
func (f *Frame) current() *Cell {
	return f.feed.At(f.index)
}

// reifyFrame gives the invocation a heap context: a varlist sharing
// the paramlist as keylist, with the argument cells copied in. The
// archetype records the action as the frame's phase.
func (in *Interp) reifyFrame(f *Frame) *Series {
	if f.varlist != nil {
		return f.varlist
	}
	n := len(f.args)
	varlist := in.MakeArray(n+1, nodeFlagManaged|seriesFlagIsVarlist)
	in.ExpandSeries(varlist, 0, n+1)

	archetype := varlist.At(0)
	archetype.Reset(KindFrame, cellFlagFirstIsNode|cellFlagSecondIsNode)
	archetype.extra = 0
	archetype.first = seriesBits(varlist)
	archetype.second = seriesBits(f.action)

	for i := 0; i < n; i++ {
		varlist.At(i + 1).Move(&f.args[i])
	}
	varlist.link = seriesBits(f.action)
	varlist.SetFlag(seriesFlagLinkIsNode)
	f.varlist = varlist
	return varlist
}

// FrameContext returns the reified context of the frame, creating it
// on first use.
func (in *Interp) FrameContext(f *Frame) *Series {
	return in.reifyFrame(f)
}
