package core

import (
	"fmt"
	"os"
)

// ---------------------------------------------------------------------------
// Fail: recoverable faults via trap snapshot/restore
// ---------------------------------------------------------------------------

// A trap snapshots every piece of restorable interpreter state. When a
// fail unwinds to the trap, all of it is rewound as one step: the data
// stack, the frame stack, the guard stack, the manuals list, and the
// mold buffer. Signal bits are not snapshotted: a signal delivered
// during the rescued evaluation must not come back, and one that
// arrived meanwhile stays pending.
type trapSnapshot struct {
	dsDepth      int
	topFrame     *Frame
	guardLen     int
	manualsLen   int
	moldLen      int
	moldStackLen int
}

// failSignal is the panic payload of a fail in flight. It never
// escapes the interpreter: Rescue converts it to an error context.
type failSignal struct {
	err *Series // error varlist
}

func (in *Interp) pushTrap() *trapSnapshot {
	snap := &trapSnapshot{
		dsDepth:      in.dsDepth(),
		topFrame:     in.topFrame,
		guardLen:     len(in.guarded),
		manualsLen:   len(in.manuals),
		moldLen:      in.moldBuf.Len(),
		moldStackLen: len(in.moldStack),
	}
	in.traps = append(in.traps, snap)
	return snap
}

func (in *Interp) dropTrap(snap *trapSnapshot) {
	if len(in.traps) == 0 || in.traps[len(in.traps)-1] != snap {
		panic("trap: drop out of order")
	}
	in.traps = in.traps[:len(in.traps)-1]
}

// recoverTrap rewinds all interpreter state to the snapshot. Frames
// above the snapshot are aborted: reified managed varlists are marked
// failed so leak analysis can tell this cleanup from a release.
func (in *Interp) recoverTrap(snap *trapSnapshot) {
	for in.topFrame != nil && in.topFrame != snap.topFrame {
		in.dropFrameOnFail(in.topFrame)
	}
	in.dsDrop(snap.dsDepth)
	in.guarded = in.guarded[:snap.guardLen]
	in.truncateManuals(snap.manualsLen)
	in.moldBuf.SetLen(snap.moldLen)
	in.moldStack = in.moldStack[:snap.moldStackLen]
	in.thrownArg.InitEnd()
}

// RescueError runs fn under a trap. A fail inside fn unwinds to the
// trap, restores the snapshot, and yields the error context; nil means
// fn completed.
func (in *Interp) RescueError(fn func()) (errCtx *Series) {
	snap := in.pushTrap()
	defer func() {
		in.dropTrap(snap)
		if r := recover(); r != nil {
			fs, ok := r.(*failSignal)
			if !ok {
				panic(r)
			}
			in.recoverTrap(snap)
			errCtx = fs.err
		}
	}()
	fn()
	return nil
}

// Fail raises a recoverable fault. The cause is polymorphic:
//
//	string    wrapped as a user error
//	*Series   an existing error context, raised as-is
//	*Cell     an error cell raised as-is; any other cell wrapped
//	          as a bad-value error
//	nil       unknown internal error
//
// Before boot completes, or with no trap established, failing is a
// panic: there is nowhere to unwind to.
func (in *Interp) Fail(cause any) {
	var err *Series
	switch c := cause.(type) {
	case nil:
		err = in.buildError(ErrInternal, "bad-internal", nil)
	case string:
		err = in.MakeUserError(c)
	case *Series:
		err = c
	case *Cell:
		if c.Kind() == KindError {
			err = c.ContextVarlist()
		} else {
			err = in.buildError(ErrScript, "bad-value", []*Cell{c})
		}
	default:
		panic(fmt.Sprintf("fail: unsupported cause %T", cause))
	}
	in.raise(err)
}

// FailID raises a catalog error with up to one argument.
func (in *Interp) FailID(cat ErrCategory, id string, arg *Cell) {
	var args []*Cell
	if arg != nil {
		args = []*Cell{arg}
	}
	in.raise(in.buildError(cat, id, args))
}

// FailArgs raises a catalog error with explicit arguments.
func (in *Interp) FailArgs(cat ErrCategory, id string, args ...*Cell) {
	in.raise(in.buildError(cat, id, args))
}

// failHalt raises the pre-built halt error.
func (in *Interp) failHalt() {
	in.raise(in.haltError)
}

// failStackOverflow raises the pre-built stack overflow error, built
// at boot so that raising it needs no allocation.
func (in *Interp) failStackOverflow() {
	in.raise(in.stackOverflowError)
}

func (in *Interp) raise(err *Series) {
	if in.probeOnFail {
		log.Errorf("fail: %s", in.MoldError(err))
	}
	if !in.bootDone || len(in.traps) == 0 {
		in.panicError(err)
	}
	panic(&failSignal{err: err})
}

// panicError is the unrecoverable path: print a diagnostic and abort.
func (in *Interp) panicError(err *Series) {
	msg := "(unrenderable error)"
	if in.bootDone {
		msg = in.MoldError(err)
	} else if m := in.errorField(err, "message"); m != nil && m.Kind() == KindText {
		msg = string(m.SeriesNode().Bytes())
	}
	fmt.Fprintf(os.Stderr, "PANIC: %s\n", msg)
	panic("rend: unrecoverable error: " + msg)
}
