package core

// ---------------------------------------------------------------------------
// Throw: in-band control transfer, distinct from fail
// ---------------------------------------------------------------------------

// A throw carries two cells: the label (what identifies the catcher:
// an action identity, a frame context, a named word, or blank for
// plain THROW) travels in the caller's out cell, and the argument
// travels in the interpreter's thrown-arg slot. Routines signal the
// condition by returning RetThrown (or true from Eval entry points),
// and every call site either catches on label identity or propagates
// the verdict untouched.
//
// The thrown-arg slot holds END except while a throw is in flight;
// that invariant is what lets the trap recovery clear it blindly.

// InitThrown arms a throw: label lands in out, arg in the global slot.
func (in *Interp) InitThrown(out, label, arg *Cell) {
	if !in.thrownArg.IsEnd() {
		panic("throw: a throw is already in flight")
	}
	if label != nil {
		out.Move(label)
	} else {
		out.InitBlank()
	}
	if arg != nil {
		in.thrownArg.Move(arg)
	} else {
		in.thrownArg.InitNull()
	}
}

// ThrownLabel returns the label of a throw in flight, as recorded in
// the out cell that carried the RetThrown verdict.
func (in *Interp) ThrownLabel(out *Cell) *Cell {
	if in.thrownArg.IsEnd() {
		panic("throw: no throw in flight")
	}
	return out
}

// CatchThrown accepts a throw: the argument moves from the global slot
// into dst (overwriting the label that was there), and the slot goes
// back to END.
func (in *Interp) CatchThrown(dst *Cell) {
	if in.thrownArg.IsEnd() {
		panic("throw: catch with no throw in flight")
	}
	dst.Move(&in.thrownArg)
	in.thrownArg.InitEnd()
}

// ThrowInFlight reports whether a throw is propagating.
func (in *Interp) ThrowInFlight() bool {
	return !in.thrownArg.IsEnd()
}

// labelMatches compares a throw label against a catcher's interest:
// word labels match by symbol canon, action labels by paramlist
// identity, frame labels by varlist identity, and blank matches blank
// (a plain catch).
func labelMatches(label, interest *Cell) bool {
	lk, ik := label.Kind(), interest.Kind()
	if lk != ik {
		return false
	}
	switch lk {
	case KindBlank:
		return true
	case KindWord, KindSetWord, KindGetWord, KindLitWord:
		return SameSymbol(label.WordSymbol(), interest.WordSymbol())
	case KindAction:
		return label.ActionParamlist() == interest.ActionParamlist()
	case KindFrame:
		return label.ContextVarlist() == interest.ContextVarlist()
	default:
		return false
	}
}
