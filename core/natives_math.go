package core

import (
	"bytes"
	"math"
)

// ---------------------------------------------------------------------------
// Math and comparison natives
// ---------------------------------------------------------------------------

func (in *Interp) initMathNatives() {
	binary := []ParamSpec{
		argTyped("value1", KindInteger, KindDecimal),
		argTyped("value2", KindInteger, KindDecimal),
	}

	in.AddNative("add", binary, nativeAdd, false)
	in.AddNative("subtract", binary, nativeSubtract, false)
	in.AddNative("multiply", binary, nativeMultiply, false)
	in.AddNative("divide", binary, nativeDivide, false)

	in.AddNative("+", binary, nativeAdd, true)
	in.AddNative("-", binary, nativeSubtract, true)
	in.AddNative("*", binary, nativeMultiply, true)
	in.AddNative("/", binary, nativeDivide, true)

	cmp := []ParamSpec{arg("value1"), arg("value2")}
	in.AddNative("=", cmp, nativeEqual, true)
	in.AddNative("<>", cmp, nativeNotEqual, true)
	in.AddNative("!=", cmp, nativeNotEqual, true)
	in.AddNative("<", cmp, nativeLesser, true)
	in.AddNative(">", cmp, nativeGreater, true)
	in.AddNative("<=", cmp, nativeLesserEqual, true)
	in.AddNative(">=", cmp, nativeGreaterEqual, true)

	in.AddNative("equal?", cmp, nativeEqual, false)
	in.AddNative("negate", []ParamSpec{
		argTyped("value", KindInteger, KindDecimal),
	}, nativeNegate, false)

	in.AddNative("not", []ParamSpec{arg("value")}, nativeNot, false)

	// of is enfix with a hard-quoted property word on its left
	in.AddNative("of", []ParamSpec{
		hardArg("property"),
		arg("value"),
	}, nativeOf, true)
}

// asDecimal widens either numeric kind to float64.
func asDecimal(c *Cell) float64 {
	if c.Kind() == KindInteger {
		return float64(c.Int64())
	}
	return c.Float64()
}

func bothInts(a, b *Cell) bool {
	return a.Kind() == KindInteger && b.Kind() == KindInteger
}

func nativeAdd(in *Interp, f *Frame) Ret {
	a, b := f.Arg(1), f.Arg(2)
	if bothInts(a, b) {
		x, y := a.Int64(), b.Int64()
		sum := x + y
		if (x > 0 && y > 0 && sum < 0) || (x < 0 && y < 0 && sum >= 0) {
			in.FailID(ErrMath, "overflow", nil)
		}
		f.Out.InitInteger(sum)
		return RetOut
	}
	f.Out.InitDecimal(asDecimal(a) + asDecimal(b))
	return RetOut
}

func nativeSubtract(in *Interp, f *Frame) Ret {
	a, b := f.Arg(1), f.Arg(2)
	if bothInts(a, b) {
		x, y := a.Int64(), b.Int64()
		diff := x - y
		if (x >= 0 && y < 0 && diff < 0) || (x < 0 && y > 0 && diff >= 0) {
			in.FailID(ErrMath, "overflow", nil)
		}
		f.Out.InitInteger(diff)
		return RetOut
	}
	f.Out.InitDecimal(asDecimal(a) - asDecimal(b))
	return RetOut
}

func nativeMultiply(in *Interp, f *Frame) Ret {
	a, b := f.Arg(1), f.Arg(2)
	if bothInts(a, b) {
		x, y := a.Int64(), b.Int64()
		prod := x * y
		if x != 0 && (prod/x != y || (x == -1 && y == math.MinInt64)) {
			in.FailID(ErrMath, "overflow", nil)
		}
		f.Out.InitInteger(prod)
		return RetOut
	}
	f.Out.InitDecimal(asDecimal(a) * asDecimal(b))
	return RetOut
}

// nativeDivide always yields a decimal, so 1 / 2 is 0.5; integer
// division goes through a separate native if ever needed.
func nativeDivide(in *Interp, f *Frame) Ret {
	a, b := f.Arg(1), f.Arg(2)
	d := asDecimal(b)
	if d == 0 {
		in.FailID(ErrMath, "zero-divide", nil)
	}
	f.Out.InitDecimal(asDecimal(a) / d)
	return RetOut
}

func nativeNegate(in *Interp, f *Frame) Ret {
	v := f.Arg(1)
	if v.Kind() == KindInteger {
		if v.Int64() == math.MinInt64 {
			in.FailID(ErrMath, "overflow", nil)
		}
		f.Out.InitInteger(-v.Int64())
	} else {
		f.Out.InitDecimal(-v.Float64())
	}
	return RetOut
}

func nativeNot(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(!f.Arg(1).IsTruthy())
	return RetOut
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// cellsEqual implements loose equality: numerics compare by value
// across integer/decimal, words by canon, strings case-insensitively,
// arrays element-wise, contexts and actions by identity.
func (in *Interp) cellsEqual(a, b *Cell) bool {
	ka, kb := a.Kind(), b.Kind()

	numeric := func(k Kind) bool { return k == KindInteger || k == KindDecimal }
	if numeric(ka) && numeric(kb) {
		if bothInts(a, b) {
			return a.Int64() == b.Int64()
		}
		return asDecimal(a) == asDecimal(b)
	}
	if ka != kb {
		return false
	}

	switch {
	case ka == KindNull, ka == KindBlank:
		return true
	case ka == KindLogic:
		return a.Logic() == b.Logic()
	case ka == KindChar:
		return a.Char() == b.Char()
	case ka == KindDatatype:
		return a.DatatypeKind() == b.DatatypeKind()
	case ka.IsWord():
		return SameSymbol(a.WordSymbol(), b.WordSymbol())
	case ka == KindBinary:
		return bytes.Equal(CellBytes(a), CellBytes(b))
	case ka.IsArray():
		sa, sb := a.SeriesNode(), b.SeriesNode()
		in.ensureReadable(sa)
		in.ensureReadable(sb)
		la, lb := sa.Len()-a.Index(), sb.Len()-b.Index()
		if la != lb {
			return false
		}
		for i := 0; i < la; i++ {
			if !in.cellsEqual(sa.At(a.Index()+i), sb.At(b.Index()+i)) {
				return false
			}
		}
		return true
	case ka.IsSeries():
		return bytes.EqualFold(CellBytes(a), CellBytes(b))
	case ka.IsContext():
		return a.ContextVarlist() == b.ContextVarlist()
	case ka == KindAction:
		return a.ActionParamlist() == b.ActionParamlist()
	}
	return false
}

// compareCells orders two numerics, chars, or strings; anything else
// fails.
func (in *Interp) compareCells(a, b *Cell) int {
	numeric := func(k Kind) bool { return k == KindInteger || k == KindDecimal }
	switch {
	case numeric(a.Kind()) && numeric(b.Kind()):
		if bothInts(a, b) {
			x, y := a.Int64(), b.Int64()
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
		x, y := asDecimal(a), asDecimal(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case a.Kind() == KindChar && b.Kind() == KindChar:
		return int(a.Char()) - int(b.Char())
	case a.Kind().IsSeries() && !a.Kind().IsArray() &&
		b.Kind().IsSeries() && !b.Kind().IsArray():
		return bytes.Compare(CellBytes(a), CellBytes(b))
	}
	in.FailID(ErrScript, "invalid-arg", a)
	return 0
}

func nativeEqual(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(in.cellsEqual(f.Arg(1), f.Arg(2)))
	return RetOut
}

func nativeNotEqual(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(!in.cellsEqual(f.Arg(1), f.Arg(2)))
	return RetOut
}

func nativeLesser(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(in.compareCells(f.Arg(1), f.Arg(2)) < 0)
	return RetOut
}

func nativeGreater(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(in.compareCells(f.Arg(1), f.Arg(2)) > 0)
	return RetOut
}

func nativeLesserEqual(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(in.compareCells(f.Arg(1), f.Arg(2)) <= 0)
	return RetOut
}

func nativeGreaterEqual(in *Interp, f *Frame) Ret {
	f.Out.InitLogic(in.compareCells(f.Arg(1), f.Arg(2)) >= 0)
	return RetOut
}

// ---------------------------------------------------------------------------
// OF: property reflection
// ---------------------------------------------------------------------------

// nativeOf answers `length of x`, `type of x`, `words of x`, and the
// positional reflectors, dispatching on the pre-interned symbol ID of
// its quoted left word.
func nativeOf(in *Interp, f *Frame) Ret {
	prop := f.Arg(1)
	if !prop.Kind().IsWord() {
		in.FailID(ErrScript, "invalid-arg", prop)
	}
	v := f.Arg(2)

	switch SymbolID(prop.WordSymbol()) {
	case SymType:
		f.Out.InitDatatype(v.HeartKind())
		return RetOut

	case SymLength:
		switch {
		case v.Kind().IsArray():
			in.ensureReadable(v.SeriesNode())
			f.Out.InitInteger(int64(v.SeriesNode().Len() - v.Index()))
		case v.Kind() == KindText || v.Kind() == KindFile ||
			v.Kind() == KindEmail || v.Kind() == KindURL ||
			v.Kind() == KindTag || v.Kind() == KindIssue:
			in.ensureReadable(v.SeriesNode())
			f.Out.InitInteger(int64(TextLen(v)))
		case v.Kind() == KindBinary:
			in.ensureReadable(v.SeriesNode())
			f.Out.InitInteger(int64(len(CellBytes(v))))
		case v.Kind().IsContext():
			f.Out.InitInteger(int64(CtxLen(v.ContextVarlist())))
		default:
			in.FailID(ErrScript, "invalid-arg", v)
		}
		return RetOut

	case SymWords:
		if !v.Kind().IsContext() {
			in.FailID(ErrScript, "invalid-arg", v)
		}
		varlist := v.ContextVarlist()
		base := in.dsDepth()
		for i := 1; i <= CtxLen(varlist); i++ {
			var w Cell
			w.InitWord(KindWord, CtxKey(varlist, i).KeySymbol())
			in.dsPush(&w)
		}
		block := in.dsPopToArray(base, nodeFlagManaged)
		f.Out.InitSeries(KindBlock, block, 0)
		return RetOut

	case SymIndex:
		if !v.Kind().IsSeries() {
			in.FailID(ErrScript, "invalid-arg", v)
		}
		f.Out.InitInteger(int64(v.Index() + 1))
		return RetOut

	case SymHead:
		if !v.Kind().IsSeries() {
			in.FailID(ErrScript, "invalid-arg", v)
		}
		f.Out.Move(v)
		f.Out.SetIndex(0)
		return RetOut

	case SymTail:
		if !v.Kind().IsSeries() {
			in.FailID(ErrScript, "invalid-arg", v)
		}
		in.ensureReadable(v.SeriesNode())
		f.Out.Move(v)
		f.Out.SetIndex(v.SeriesNode().Len())
		return RetOut
	}
	in.FailID(ErrScript, "invalid-arg", prop)
	return RetOut
}
