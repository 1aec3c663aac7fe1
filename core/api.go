package core

import "unsafe"

// ---------------------------------------------------------------------------
// Embedding API: handles, evaluation splices, unboxing, raw memory
// ---------------------------------------------------------------------------

// An API handle is a singular array stub carrying one value in its
// inline cell, flagged as a root for the GC. The API hands out the
// cell pointer; the owning stub is recovered by address arithmetic.
//
// A handle made while a frame is running belongs to that frame (the
// stub's link holds the reified frame context) and becomes collectable
// when the frame's context dies. Handles made outside any frame are
// indefinite and live until released.

// cellOffset is the byte offset of the inline cell within a stub.
const cellOffset = unsafe.Offsetof(Series{}.cell)

// handleStub recovers the singular stub that owns an API cell.
func handleStub(v *Cell) *Series {
	return (*Series)(unsafe.Pointer(uintptr(unsafe.Pointer(v)) - cellOffset))
}

// newHandle allocates a fresh root handle owned by the current frame.
func (in *Interp) newHandle() *Cell {
	s := in.MakeArray(1, nodeFlagManaged)
	s.SetFlag(nodeFlagRoot)
	s.setLenByte(1)
	s.cell.InitNull()
	if in.topFrame != nil && in.topFrame.action != nil {
		s.link = seriesBits(in.reifyFrame(in.topFrame))
	}
	return &s.cell
}

// handleFrom copies v into a fresh handle.
func (in *Interp) handleFrom(v *Cell) *Cell {
	h := in.newHandle()
	h.Move(v)
	return h
}

// Release frees an API handle immediately. Releasing is optional for
// frame-owned handles; indefinite handles leak until released.
func (in *Interp) Release(v *Cell) {
	if v == nil {
		return
	}
	s := handleStub(v)
	if s.info&nodeFlagRoot == 0 {
		panic("api: Release of non-handle cell")
	}
	s.ClearFlag(nodeFlagRoot)
	in.killSeries(s)
}

// Unmanage marks a handle indefinite: it survives its creating frame
// and lives until released.
func (in *Interp) Unmanage(v *Cell) *Cell {
	s := handleStub(v)
	s.link = 0
	return v
}

// ---------------------------------------------------------------------------
// Value construction
// ---------------------------------------------------------------------------

// Integer makes an integer handle.
func (in *Interp) Integer(n int64) *Cell {
	h := in.newHandle()
	h.InitInteger(n)
	return h
}

// Decimal makes a decimal handle.
func (in *Interp) Decimal(f float64) *Cell {
	h := in.newHandle()
	h.InitDecimal(f)
	return h
}

// Logic makes a logic handle.
func (in *Interp) LogicValue(b bool) *Cell {
	h := in.newHandle()
	h.InitLogic(b)
	return h
}

// Blank makes a blank handle.
func (in *Interp) Blank() *Cell {
	h := in.newHandle()
	h.InitBlank()
	return h
}

// Text makes a text handle.
func (in *Interp) Text(s string) *Cell {
	h := in.newHandle()
	in.InitText(h, s)
	return h
}

// Binary makes a binary handle holding a copy of b.
func (in *Interp) Binary(b []byte) *Cell {
	h := in.newHandle()
	in.InitBinary(h, b)
	return h
}

// Word makes a word handle bound into lib.
func (in *Interp) Word(spelling string) *Cell {
	h := in.newHandle()
	h.InitWord(KindWord, in.Intern(spelling))
	in.BindWord(h, in.lib)
	return h
}

// Quote returns a handle holding v lifted one quote level, for
// splicing values into Value without re-evaluation.
func (in *Interp) Quote(v *Cell) *Cell {
	h := in.handleFrom(v)
	in.Quotify(h, 1)
	return h
}

// ---------------------------------------------------------------------------
// Evaluation splices
// ---------------------------------------------------------------------------

// spliceBlock scans string fragments and splices cell values into one
// bound block. Guarded by the caller.
func (in *Interp) spliceBlock(args []any) *Series {
	block := in.MakeArray(len(args), nodeFlagManaged)
	in.GuardSeries(block)
	defer in.DropGuard()
	for _, a := range args {
		switch v := a.(type) {
		case string:
			part := in.Scan(v)
			in.GuardSeries(part)
			for i := 0; i < part.Len(); i++ {
				in.appendCell(block, part.At(i))
			}
			in.DropGuard()
		case *Cell:
			in.appendCell(block, v)
		case int:
			var c Cell
			c.InitInteger(int64(v))
			in.appendCell(block, &c)
		case int64:
			var c Cell
			c.InitInteger(v)
			in.appendCell(block, &c)
		case float64:
			var c Cell
			c.InitDecimal(v)
			in.appendCell(block, &c)
		case bool:
			var c Cell
			c.InitLogic(v)
			in.appendCell(block, &c)
		case nil:
			var c Cell
			c.InitBlank()
			in.appendCell(block, &c)
		default:
			in.Fail("unsupported value splice")
		}
	}
	in.collectSetWords(block, in.lib)
	in.BindArrayDeep(block, in.lib)
	return block
}

// Value evaluates a splice of source fragments and values, yielding
// the result as a fresh handle (nil when the result is null). A throw
// that reaches the API boundary fails with an uncaught error.
func (in *Interp) Value(args ...any) *Cell {
	block := in.spliceBlock(args)
	in.GuardSeries(block)
	defer in.DropGuard()
	h := in.newHandle()
	if r := in.EvalBlock(h, block); r == RetThrown {
		label := *h
		in.thrownArg.InitEnd()
		in.Release(h)
		in.FailID(ErrScript, "uncaught", &label)
	}
	if h.IsNulled() {
		in.Release(h)
		return nil
	}
	return h
}

// Eval evaluates a pre-scanned block the way Value evaluates a splice,
// yielding the result as a fresh handle (nil when the result is null).
// Top-level set-words get lib variables first, as at a console.
func (in *Interp) Eval(block *Series) *Cell {
	in.GuardSeries(block)
	defer in.DropGuard()
	in.collectSetWords(block, in.lib)
	in.BindArrayDeep(block, in.lib)
	h := in.newHandle()
	if r := in.EvalBlock(h, block); r == RetThrown {
		label := *h
		in.thrownArg.InitEnd()
		in.Release(h)
		in.FailID(ErrScript, "uncaught", &label)
	}
	if h.IsNulled() {
		in.Release(h)
		return nil
	}
	return h
}

// Elide evaluates a splice for effect, discarding the result.
func (in *Interp) Elide(args ...any) {
	if h := in.Value(args...); h != nil {
		in.Release(h)
	}
}

// Did evaluates a splice and reports whether the result is truthy.
func (in *Interp) Did(args ...any) bool {
	h := in.Value(args...)
	if h == nil {
		return false
	}
	truthy := h.IsTruthy()
	in.Release(h)
	return truthy
}

// Not evaluates a splice and reports whether the result is falsey.
func (in *Interp) Not(args ...any) bool {
	return !in.Did(args...)
}

// Jumps evaluates a splice that must not return: a fail or throw is
// expected to transfer control. Returning normally is an internal
// error.
func (in *Interp) Jumps(args ...any) {
	in.Elide(args...)
	in.Fail(nil)
}

// ---------------------------------------------------------------------------
// Unboxing
// ---------------------------------------------------------------------------

// unboxTarget evaluates a splice unless it is a single naked cell.
func (in *Interp) unboxTarget(args []any) (*Cell, bool) {
	if len(args) == 1 {
		if c, ok := args[0].(*Cell); ok {
			return c, false
		}
	}
	h := in.Value(args...)
	if h == nil {
		in.FailID(ErrScript, "no-value", nil)
	}
	return h, true
}

// UnboxInteger evaluates a splice to an integer.
func (in *Interp) UnboxInteger(args ...any) int64 {
	c, owned := in.unboxTarget(args)
	if c.Kind() != KindInteger {
		in.FailID(ErrScript, "invalid-arg", c)
	}
	n := c.Int64()
	if owned {
		in.Release(c)
	}
	return n
}

// UnboxDecimal evaluates a splice to a decimal (integers widen).
func (in *Interp) UnboxDecimal(args ...any) float64 {
	c, owned := in.unboxTarget(args)
	if c.Kind() != KindInteger && c.Kind() != KindDecimal {
		in.FailID(ErrScript, "invalid-arg", c)
	}
	f := asDecimal(c)
	if owned {
		in.Release(c)
	}
	return f
}

// UnboxChar evaluates a splice to a character.
func (in *Interp) UnboxChar(args ...any) rune {
	c, owned := in.unboxTarget(args)
	if c.Kind() != KindChar {
		in.FailID(ErrScript, "invalid-arg", c)
	}
	r := c.Char()
	if owned {
		in.Release(c)
	}
	return r
}

// UnboxLogic evaluates a splice to a logic value.
func (in *Interp) UnboxLogic(args ...any) bool {
	c, owned := in.unboxTarget(args)
	if c.Kind() != KindLogic {
		in.FailID(ErrScript, "invalid-arg", c)
	}
	b := c.Logic()
	if owned {
		in.Release(c)
	}
	return b
}

// Spell returns the spelling of a word or the text of a string value.
func (in *Interp) Spell(args ...any) string {
	c, owned := in.unboxTarget(args)
	var s string
	switch {
	case c.Kind().IsWord():
		s = Spelling(c.WordSymbol())
	case c.Kind().IsSeries() && !c.Kind().IsArray():
		s = CellText(c)
	default:
		in.FailID(ErrScript, "invalid-arg", c)
	}
	if owned {
		in.Release(c)
	}
	return s
}

// BytesOf returns a copy of a binary value's content.
func (in *Interp) BytesOf(args ...any) []byte {
	c, owned := in.unboxTarget(args)
	if c.Kind() != KindBinary {
		in.FailID(ErrScript, "invalid-arg", c)
	}
	out := append([]byte(nil), CellBytes(c)...)
	if owned {
		in.Release(c)
	}
	return out
}

// ---------------------------------------------------------------------------
// Rescue
// ---------------------------------------------------------------------------

// Rescue runs fn under a trap, converting a fail into an error handle.
// The returned error is nil when fn completed.
func (in *Interp) Rescue(fn func()) *Cell {
	errCtx := in.RescueError(fn)
	if errCtx == nil {
		return nil
	}
	h := in.newHandle()
	h.InitContextCell(KindError, errCtx)
	return h
}

// ---------------------------------------------------------------------------
// Raw memory
// ---------------------------------------------------------------------------

// Malloc returns a buffer of the requested size backed by an unmanaged
// binary series, so a fail between Malloc and Repossess frees it
// automatically. Zero-size requests are valid and repossess to an
// empty binary.
func (in *Interp) Malloc(size int) []byte {
	s := in.MakeSeries(size+1, 1, 0)
	if !s.IsDynamic() {
		in.promoteToDynamic(s, size+1)
	}
	s.used = size
	buf := s.data[:size]
	in.mallocs[uintptr(unsafe.Pointer(&s.data[0]))] = s
	return buf
}

// Repossess converts a Malloc buffer into a binary handle of the
// buffer's length; the raw pointer must not be used afterward.
func (in *Interp) Repossess(buf []byte) *Cell {
	s := in.mallocFor(buf)
	delete(in.mallocs, uintptr(unsafe.Pointer(&s.data[0])))
	s.used = len(buf)
	in.Manage(s)
	h := in.newHandle()
	h.InitSeries(KindBinary, s, 0)
	return h
}

// Free releases a Malloc buffer without repossessing it.
func (in *Interp) Free(buf []byte) {
	s := in.mallocFor(buf)
	delete(in.mallocs, uintptr(unsafe.Pointer(&s.data[0])))
	in.FreeUnmanaged(s)
}

func (in *Interp) mallocFor(buf []byte) *Series {
	var key uintptr
	if cap(buf) > 0 {
		key = uintptr(unsafe.Pointer(&buf[:1][0]))
	}
	s, ok := in.mallocs[key]
	if !ok {
		in.FailID(ErrAccess, "bad-handle", nil)
	}
	return s
}

// ---------------------------------------------------------------------------
// Opaque handles
// ---------------------------------------------------------------------------

// InitHandleValue formats c as a handle! carrying an arbitrary Go
// value; cleanup (if any) runs when the GC collects the handle.
func (in *Interp) InitHandleValue(c *Cell, data any, cleanup func()) {
	s := in.MakeArray(1, nodeFlagManaged)
	s.setLenByte(1)
	s.cell.InitBlank()
	in.handleValues[s] = data
	if cleanup != nil {
		in.handleCleanups[s] = func(*Cell) { cleanup() }
	}
	c.Reset(KindHandle, cellFlagFirstIsNode)
	c.extra = 0
	c.first = seriesBits(s)
	c.second = 0
}

// HandleValue fetches the Go value behind a handle! cell.
func (in *Interp) HandleValue(c *Cell) any {
	if c.Kind() != KindHandle {
		panic("api: HandleValue on " + c.Kind().String())
	}
	return in.handleValues[c.SeriesNode()]
}
