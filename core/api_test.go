package core

import (
	"bytes"
	"testing"
)

func TestAPIValueSplices(t *testing.T) {
	in := NewInterp(Options{})

	h := in.Value("1 + 2")
	if h == nil || h.Int64() != 3 {
		t.Fatalf("Value(1 + 2) = %v", h)
	}
	in.Release(h)

	// cells splice without re-evaluation when quoted
	five := in.Integer(5)
	h = in.Value("10 +", five)
	if h.Int64() != 15 {
		t.Errorf("spliced sum = %d, want 15", h.Int64())
	}
	in.Release(h)
	in.Release(five)

	// Go scalars splice directly
	h = in.Value("add", 2, int64(3))
	if h.Int64() != 5 {
		t.Errorf("scalar splice = %d, want 5", h.Int64())
	}
	in.Release(h)

	// a null result is a nil handle
	if h = in.Value("if false [1]"); h != nil {
		t.Errorf("null result = %v, want nil", h)
	}
}

func TestAPIUnboxing(t *testing.T) {
	in := NewInterp(Options{})

	if n := in.UnboxInteger("3 * 7"); n != 21 {
		t.Errorf("UnboxInteger = %d, want 21", n)
	}
	if f := in.UnboxDecimal("1 / 4"); f != 0.25 {
		t.Errorf("UnboxDecimal = %g, want 0.25", f)
	}
	if f := in.UnboxDecimal("2"); f != 2.0 {
		t.Errorf("UnboxDecimal of integer = %g, want 2", f)
	}
	if !in.UnboxLogic("1 < 2") {
		t.Error("UnboxLogic(1 < 2) = false")
	}
	if s := in.Spell(`append "ab" "c"`); s != "abc" {
		t.Errorf("Spell = %q, want abc", s)
	}
	if s := in.Spell("'hello"); s != "hello" {
		t.Errorf("Spell of word = %q, want hello", s)
	}
	if b := in.BytesOf("#{00FF}"); !bytes.Equal(b, []byte{0, 0xFF}) {
		t.Errorf("BytesOf = %x, want 00ff", b)
	}
	if r := in.UnboxChar(`#"q"`); r != 'q' {
		t.Errorf("UnboxChar = %c, want q", r)
	}
	if r := in.UnboxChar(`first "xy"`); r != 'x' {
		t.Errorf("UnboxChar of first = %c, want x", r)
	}
}

func TestAPIBlank(t *testing.T) {
	in := NewInterp(Options{})

	h := in.Blank()
	if h.Kind() != KindBlank || h.IsTruthy() {
		t.Errorf("Blank() = %s, truthy=%v", h.Kind(), h.IsTruthy())
	}
	if got := in.MoldCell(h); got != "_" {
		t.Errorf("blank molds %q, want _", got)
	}
	in.Release(h)
}

func TestAPIUnmanageClearsOwner(t *testing.T) {
	in := NewInterp(Options{})

	h := in.Integer(5)
	if got := in.Unmanage(h); got != h {
		t.Error("Unmanage should return its argument")
	}
	if handleStub(h).link != 0 {
		t.Error("Unmanage left an owner link")
	}
	in.Recycle()
	if h.Int64() != 5 {
		t.Errorf("unmanaged handle = %d after recycle, want 5", h.Int64())
	}
	in.Release(h)
}

func TestAPIDidAndNot(t *testing.T) {
	in := NewInterp(Options{})

	if !in.Did("1 < 2") {
		t.Error("Did(1 < 2) = false")
	}
	if in.Did("if false [1]") {
		t.Error("Did of null = true")
	}
	if !in.Not("2 < 1") {
		t.Error("Not(2 < 1) = false")
	}
}

func TestAPIElideForEffect(t *testing.T) {
	in := NewInterp(Options{})

	in.Elide("x: 40")
	if n := in.UnboxInteger("x + 2"); n != 42 {
		t.Errorf("x + 2 = %d, want 42", n)
	}
}

func TestAPIHandleSurvivesRecycle(t *testing.T) {
	in := NewInterp(Options{})

	h := in.Value("append [1 2] 3")
	in.Recycle()
	if got := in.MoldCell(h); got != "[1 2 3]" {
		t.Errorf("handle after recycle molds %q, want [1 2 3]", got)
	}
	in.Release(h)
}

func TestAPIEvalPreScannedBlock(t *testing.T) {
	in := NewInterp(Options{})

	block := in.Scan("y: 2 y * 21")
	h := in.Eval(block)
	if h == nil || h.Int64() != 42 {
		t.Fatalf("Eval = %v, want 42", h)
	}
	in.Release(h)

	// top-level set-words landed in lib, console style
	if n := in.UnboxInteger("y"); n != 2 {
		t.Errorf("y = %d, want 2", n)
	}
}

func TestAPIRescueConvertsFailure(t *testing.T) {
	in := NewInterp(Options{})

	errVal := in.Rescue(func() { in.Elide("1 / 0") })
	if errVal == nil {
		t.Fatal("Rescue missed the failure")
	}
	if errVal.Kind() != KindError {
		t.Fatalf("rescued kind = %s, want error!", errVal.Kind())
	}
	if got := in.ErrorIDOf(errVal.ContextVarlist()); got != "zero-divide" {
		t.Errorf("rescued id = %q, want zero-divide", got)
	}
	in.Release(errVal)

	if errVal := in.Rescue(func() {}); errVal != nil {
		t.Errorf("Rescue of clean fn = %v, want nil", errVal)
	}
}

func TestAPIUncaughtThrowFails(t *testing.T) {
	in := NewInterp(Options{})

	errCtx := in.RescueError(func() { in.Elide("throw 3") })
	if errCtx == nil {
		t.Fatal("a throw reaching the API boundary should fail")
	}
	if got := in.ErrorIDOf(errCtx); got != "uncaught" {
		t.Errorf("error id = %q, want uncaught", got)
	}
}

func TestAPIMallocRepossess(t *testing.T) {
	in := NewInterp(Options{})

	buf := in.Malloc(4)
	copy(buf, []byte{1, 2, 3, 4})
	h := in.Repossess(buf)
	if h.Kind() != KindBinary {
		t.Fatalf("repossessed kind = %s, want binary!", h.Kind())
	}
	if !bytes.Equal(CellBytes(h), []byte{1, 2, 3, 4}) {
		t.Errorf("repossessed bytes = %x", CellBytes(h))
	}
	in.Release(h)

	// zero-size requests repossess to an empty binary
	empty := in.Malloc(0)
	h = in.Repossess(empty)
	if h.Kind() != KindBinary || len(CellBytes(h)) != 0 {
		t.Errorf("zero repossess = %s len %d", h.Kind(), len(CellBytes(h)))
	}
	in.Release(h)
	in.CheckMemory()
}

func TestAPIMallocFree(t *testing.T) {
	in := NewInterp(Options{})

	buf := in.Malloc(16)
	in.Free(buf)

	// freed buffers are no longer registered
	errCtx := in.RescueError(func() { in.Repossess(buf) })
	if errCtx == nil || in.ErrorIDOf(errCtx) != "bad-handle" {
		t.Error("repossessing a freed buffer should fail with bad-handle")
	}
	in.CheckMemory()
}

func TestAPIMallocFreedByFailRewind(t *testing.T) {
	in := NewInterp(Options{})

	in.RescueError(func() {
		in.Malloc(32)
		in.Fail("interrupted")
	})
	if len(in.mallocs) != 0 {
		t.Errorf("malloc registry = %d entries after rewind, want 0", len(in.mallocs))
	}
	in.CheckMemory()
}

func TestAPIQuoteSplicesUnevaluated(t *testing.T) {
	in := NewInterp(Options{})

	word := in.Word("some-word")
	h := in.Value("mold", in.Quote(word))
	if got := in.Spell(h); got != "some-word" {
		t.Errorf("molded quoted word = %q, want some-word", got)
	}
	in.Release(h)
	in.Release(word)
}
