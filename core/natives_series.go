package core

import (
	"fmt"
	"os"
)

// ---------------------------------------------------------------------------
// Series natives
// ---------------------------------------------------------------------------

func (in *Interp) initSeriesNatives() {
	in.AddNative("copy", []ParamSpec{
		arg("value"),
		refine("deep"),
	}, nativeCopy, false)

	in.AddNative("append", []ParamSpec{
		arg("series"),
		arg("value"),
		refine("only"),
	}, nativeAppend, false)

	in.AddNative("insert", []ParamSpec{
		arg("series"),
		arg("value"),
		refine("only"),
	}, nativeInsert, false)

	in.AddNative("pick", []ParamSpec{
		arg("series"),
		arg("picker"),
	}, nativePick, false)

	in.AddNative("poke", []ParamSpec{
		arg("series"),
		arg("picker"),
		arg("value"),
	}, nativePoke, false)

	in.AddNative("first", []ParamSpec{arg("series")}, nativeFirst, false)

	in.AddNative("next", []ParamSpec{arg("series")}, nativeNext, false)
	in.AddNative("back", []ParamSpec{arg("series")}, nativeBack, false)

	in.AddNative("make", []ParamSpec{
		argTyped("type", KindDatatype),
		arg("def"),
	}, nativeMake, false)

	in.AddNative("mold", []ParamSpec{arg("value")}, nativeMold, false)
	in.AddNative("form", []ParamSpec{arg("value")}, nativeForm, false)
	in.AddNative("print", []ParamSpec{arg("value")}, nativePrint, false)
	in.AddNative("probe", []ParamSpec{arg("value")}, nativeProbe, false)

	in.AddNative("protect", []ParamSpec{softArg("target")}, nativeProtect, false)
	in.AddNative("freeze", []ParamSpec{arg("series")}, nativeFreeze, false)
}

// copyArrayShallow clones the cells of an array from index, resolving
// relative bindings so the copy stands alone.
func (in *Interp) copyArrayShallow(src *Series, index int) *Series {
	in.ensureReadable(src)
	n := src.Len() - index
	if n < 0 {
		n = 0
	}
	dst := in.MakeArray(n, nodeFlagManaged)
	in.GuardSeries(dst)
	if n > 0 {
		in.ExpandSeries(dst, 0, n)
		for i := 0; i < n; i++ {
			in.Derelativize(dst.At(i), src.At(index+i), in.topFrame)
		}
	}
	in.DropGuard()
	return dst
}

// copyBytes clones a byte series from a cell's index.
func (in *Interp) copyBytes(c *Cell) *Series {
	in.ensureReadable(c.SeriesNode())
	return in.MakeBinary(CellBytes(c))
}

func nativeCopy(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	deep := f.Arg(2).IsTruthy()
	switch {
	case v.Kind().IsArray():
		s := in.copyArrayShallow(v.SeriesNode(), v.Index())
		if deep {
			in.GuardSeries(s)
			in.deepenCopy(s)
			in.DropGuard()
		}
		f.Out.InitSeries(v.Kind(), s, 0)
	case v.Kind().IsSeries():
		f.Out.InitSeries(v.Kind(), in.copyBytes(v), 0)
	case v.Kind().IsContext():
		in.FailID(ErrScript, "not-done", nil)
	default:
		f.Out.Move(v)
	}
	return RetOut
}

// deepenCopy replaces nested series references with copies, in place.
func (in *Interp) deepenCopy(arr *Series) {
	for i := 0; i < arr.Len(); i++ {
		v := arr.At(i)
		switch {
		case v.Kind().IsArray():
			nested := in.copyArrayShallow(v.SeriesNode(), 0)
			in.GuardSeries(nested)
			in.deepenCopy(nested)
			in.DropGuard()
			v.first = seriesBits(nested)
		case v.Kind().IsSeries():
			cp := in.MakeBinary(v.SeriesNode().Bytes())
			v.first = seriesBits(cp)
		}
	}
}

// insertAt splices value into an array series cell at the given unit
// position; blocks splice element-wise unless only is set.
func (in *Interp) insertAt(target *Cell, at int, value *Cell, only bool) int {
	s := target.SeriesNode()
	if s.IsArray() {
		if value.Kind() == KindBlock && !only {
			src := value.SeriesNode()
			in.ensureReadable(src)
			n := src.Len() - value.Index()
			if n <= 0 {
				return 0
			}
			in.ExpandSeries(s, at, n)
			for i := 0; i < n; i++ {
				in.Derelativize(s.At(at+i), src.At(value.Index()+i), nil)
			}
			return n
		}
		in.ExpandSeries(s, at, 1)
		dst := s.At(at)
		dst.header = nodeFlagNode | nodeFlagCell
		dst.Move(value)
		return 1
	}

	var b []byte
	switch value.Kind() {
	case KindInteger:
		b = []byte{byte(value.Int64())}
	case KindChar:
		b = []byte(string(value.Char()))
	default:
		if !value.Kind().IsSeries() || value.Kind().IsArray() {
			in.FailID(ErrScript, "invalid-arg", value)
		}
		b = CellBytes(value)
	}
	in.ExpandSeries(s, at, len(b))
	copy(s.ByteAt(at), b)
	return len(b)
}

func nativeAppend(in *Interp, f *Frame) Ret {
	target := f.Arg(1)
	if !target.Kind().IsSeries() {
		in.FailID(ErrScript, "invalid-arg", target)
	}
	s := target.SeriesNode()
	in.ensureMutable(s)
	in.insertAt(target, s.Len(), f.Arg(2), f.Arg(3).IsTruthy())
	f.Out.Move(target)
	f.Out.SetIndex(0)
	return RetOut
}

// nativeInsert inserts at the cell's index and returns the series
// positioned past the insertion.
func nativeInsert(in *Interp, f *Frame) Ret {
	target := f.Arg(1)
	if !target.Kind().IsSeries() {
		in.FailID(ErrScript, "invalid-arg", target)
	}
	in.ensureMutable(target.SeriesNode())
	n := in.insertAt(target, target.Index(), f.Arg(2), f.Arg(3).IsTruthy())
	f.Out.Move(target)
	f.Out.SetIndex(target.Index() + n)
	return RetOut
}

func nativePick(in *Interp, f *Frame) Ret {
	in.pickCell(f.Arg(1), f.Arg(2), f.Out)
	if f.Out.IsNulled() {
		return RetNull
	}
	return RetOut
}

func nativePoke(in *Interp, f *Frame) Ret {
	in.pokeCell(f.Arg(1), f.Arg(2), f.Arg(3))
	f.Out.Move(f.Arg(3))
	return RetOut
}

func nativeFirst(in *Interp, f *Frame) Ret {
	var one Cell
	one.InitInteger(1)
	in.pickCell(f.Arg(1), &one, f.Out)
	if f.Out.IsNulled() {
		return RetNull
	}
	return RetOut
}

func nativeNext(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	if !v.Kind().IsSeries() {
		in.FailID(ErrScript, "invalid-arg", v)
	}
	in.ensureReadable(v.SeriesNode())
	f.Out.Move(v)
	if v.Index() < v.SeriesNode().Len() {
		f.Out.SetIndex(v.Index() + 1)
	}
	return RetOut
}

func nativeBack(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	if !v.Kind().IsSeries() {
		in.FailID(ErrScript, "invalid-arg", v)
	}
	f.Out.Move(v)
	if v.Index() > 0 {
		f.Out.SetIndex(v.Index() - 1)
	}
	return RetOut
}

// ---------------------------------------------------------------------------
// Make
// ---------------------------------------------------------------------------

func nativeMake(in *Interp, f *Frame) Ret {
	kind := f.Arg(1).DatatypeKind()
	def := f.Arg(2)

	switch kind {
	case KindBlock, KindGroup:
		capacity := 0
		if def.Kind() == KindInteger {
			capacity = int(def.Int64())
		}
		f.Out.InitSeries(kind, in.MakeArray(capacity, nodeFlagManaged), 0)
		return RetOut

	case KindText, KindBinary:
		capacity := 0
		if def.Kind() == KindInteger {
			capacity = int(def.Int64())
		}
		f.Out.InitSeries(kind, in.MakeSeries(capacity, 1, nodeFlagManaged), 0)
		return RetOut

	case KindObject:
		if def.Kind() != KindBlock {
			in.FailID(ErrScript, "invalid-arg", def)
		}
		ctx := in.makeObjectFromSpec(def)
		f.Out.InitContextCell(KindObject, ctx)
		return RetOut

	case KindError:
		switch def.Kind() {
		case KindText:
			f.Out.InitContextCell(KindError, in.MakeUserError(CellText(def)))
		default:
			in.FailID(ErrScript, "invalid-arg", def)
		}
		return RetOut
	}
	in.FailID(ErrScript, "invalid-arg", f.Arg(1))
	return RetOut
}

// makeObjectFromSpec collects the spec block's set-words into a new
// object's shape and then evaluates the block bound into it.
func (in *Interp) makeObjectFromSpec(def *Cell) *Series {
	src := def.SeriesNode()
	in.ensureReadable(src)

	n := 0
	for i := def.Index(); i < src.Len(); i++ {
		if src.At(i).Kind() == KindSetWord {
			n++
		}
	}
	ctx := in.MakeContext(KindObject, n)
	in.GuardSeries(ctx)
	defer in.DropGuard()

	for i := def.Index(); i < src.Len(); i++ {
		v := src.At(i)
		if v.Kind() == KindSetWord {
			in.FindOrAppendVar(ctx, v.WordSymbol())
		}
	}

	body := in.copyArrayShallow(src, def.Index())
	in.GuardSeries(body)
	defer in.DropGuard()
	in.BindArrayDeep(body, ctx)

	var out Cell
	if r := in.EvalBlock(&out, body); r == RetThrown {
		in.FailID(ErrScript, "uncaught", &out)
	}
	return ctx
}

// ---------------------------------------------------------------------------
// Mold / print
// ---------------------------------------------------------------------------

func nativeMold(in *Interp, f *Frame) Ret {
	in.InitText(f.Out, in.MoldCell(f.Arg(1)))
	return RetOut
}

func nativeForm(in *Interp, f *Frame) Ret {
	in.InitText(f.Out, in.FormCell(f.Arg(1)))
	return RetOut
}

func nativePrint(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	if v.Kind() == KindBlock {
		// print reduces its block: each expression forms one segment
		var parts []string
		var cell Cell
		sub := &Frame{Out: &cell, feed: v.SeriesNode(), index: v.Index()}
		in.pushFrame(sub)
		for !sub.AtEnd() {
			if r := in.evalStep(sub, &cell, true); r == RetThrown {
				f.Out.Move(&cell)
				in.popFrame(sub)
				return RetThrown
			}
			parts = append(parts, in.FormCell(&cell))
		}
		in.popFrame(sub)
		fmt.Fprintln(os.Stdout, joinSpace(parts))
	} else {
		fmt.Fprintln(os.Stdout, in.FormCell(v))
	}
	return RetNull
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func nativeProbe(in *Interp, f *Frame) Ret {
	fmt.Fprintln(os.Stdout, in.MoldCell(f.Arg(1)))
	f.Out.Move(f.Arg(1))
	return RetOut
}

// ---------------------------------------------------------------------------
// Protection
// ---------------------------------------------------------------------------

// nativeProtect marks a word's variable cell as protected, or freezes
// a directly given series value.
func nativeProtect(in *Interp, f *Frame) Ret {
	target := f.Arg(1)
	switch {
	case target.Kind().IsWord():
		v := in.lookupVar(target, nil)
		if v == nil {
			in.FailID(ErrScript, "not-bound", target)
		}
		v.SetFlag(cellFlagProtected)
		f.Out.Move(target)
	case target.Kind().IsSeries():
		target.SeriesNode().SetFlag(seriesFlagFrozen)
		f.Out.Move(target)
	default:
		in.FailID(ErrScript, "invalid-arg", target)
	}
	return RetOut
}

func nativeFreeze(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	if !v.Kind().IsSeries() {
		in.FailID(ErrScript, "invalid-arg", v)
	}
	v.SeriesNode().SetFlag(seriesFlagFrozen)
	f.Out.Move(v)
	return RetOut
}
