package core

import "testing"

func TestRescueErrorRewindsState(t *testing.T) {
	in := NewInterp(Options{})

	guards := len(in.guarded)
	depth := in.dsDepth()
	manuals := len(in.manuals)

	errCtx := in.RescueError(func() {
		in.GuardSeries(in.MakeArray(4, nodeFlagManaged))
		var c Cell
		c.InitInteger(1)
		in.dsPush(&c)
		in.MakeSeries(smallSize*2, 1, 0) // manual, freed by the rewind
		in.Fail("went wrong")
	})
	if errCtx == nil {
		t.Fatal("expected a rescued failure")
	}

	if len(in.guarded) != guards {
		t.Errorf("guard stack = %d, want %d", len(in.guarded), guards)
	}
	if in.dsDepth() != depth {
		t.Errorf("data stack = %d, want %d", in.dsDepth(), depth)
	}
	if len(in.manuals) != manuals {
		t.Errorf("manuals = %d, want %d", len(in.manuals), manuals)
	}
	in.CheckMemory()
}

func TestRescueErrorNilOnSuccess(t *testing.T) {
	in := NewInterp(Options{})
	if errCtx := in.RescueError(func() {}); errCtx != nil {
		t.Errorf("RescueError of a clean fn = %v, want nil", errCtx)
	}
}

func TestFailCauses(t *testing.T) {
	in := NewInterp(Options{})

	errCtx := in.RescueError(func() { in.Fail("boom") })
	if got := in.ErrorCategoryOf(errCtx); got != "User" {
		t.Errorf("string fail category = %q, want User", got)
	}
	if got := in.ErrorMessage(errCtx); got != "boom" {
		t.Errorf("string fail message = %q, want boom", got)
	}

	// an existing error context re-raises as-is
	reraised := in.RescueError(func() { in.Fail(errCtx) })
	if reraised != errCtx {
		t.Error("failing with an error context should raise it unchanged")
	}

	// a non-error cell wraps as bad-value, molded into the message
	var c Cell
	c.InitInteger(5)
	errCtx = in.RescueError(func() { in.Fail(&c) })
	if got := in.ErrorIDOf(errCtx); got != "bad-value" {
		t.Errorf("cell fail id = %q, want bad-value", got)
	}
	if got := in.ErrorMessage(errCtx); got != "bad value 5" {
		t.Errorf("cell fail message = %q, want bad value 5", got)
	}
}

func TestFailIDCatalogLookup(t *testing.T) {
	in := NewInterp(Options{})

	errCtx := in.RescueError(func() { in.FailID(ErrMath, "zero-divide", nil) })
	if got := in.ErrorCategoryOf(errCtx); got != "Math" {
		t.Errorf("category = %q, want Math", got)
	}
	if got := in.ErrorMessage(errCtx); got != "attempt to divide by zero" {
		t.Errorf("message = %q", got)
	}
}

func TestNestedRescues(t *testing.T) {
	in := NewInterp(Options{})

	var inner *Series
	outer := in.RescueError(func() {
		inner = in.RescueError(func() { in.Fail("inner fault") })
		// the outer trap is still armed after the inner rescue
		in.FailID(ErrMath, "overflow", nil)
	})

	if inner == nil || in.ErrorMessage(inner) != "inner fault" {
		t.Error("inner rescue missed its failure")
	}
	if outer == nil || in.ErrorIDOf(outer) != "overflow" {
		t.Error("outer rescue missed its failure")
	}
}

func TestForeignPanicPassesThrough(t *testing.T) {
	in := NewInterp(Options{})

	defer func() {
		if recover() == nil {
			t.Error("a non-fail panic should not be swallowed by RescueError")
		}
	}()
	in.RescueError(func() { panic("unrelated") })
}

func TestHaltSignalFailsAtSafePoint(t *testing.T) {
	in := NewInterp(Options{})

	in.Halt()
	errCtx := in.RescueError(func() {
		var out Cell
		in.RunText(&out, "1 + 2")
	})
	if errCtx == nil {
		t.Fatal("halt should surface as a failure")
	}
	if got := in.ErrorIDOf(errCtx); got != "halted" {
		t.Errorf("error id = %q, want halted", got)
	}

	// the interpreter works again after the halt is consumed
	var out Cell
	if in.RunText(&out, "1 + 2"); out.Int64() != 3 {
		t.Error("evaluation broken after halt recovery")
	}
}
