package core

// ---------------------------------------------------------------------------
// Native actions: registration and control flow
// ---------------------------------------------------------------------------

func arg(name string) ParamSpec {
	return ParamSpec{Name: name}
}

func argTyped(name string, kinds ...Kind) ParamSpec {
	var bits uint64
	for _, k := range kinds {
		bits |= typesetBit(k)
	}
	return ParamSpec{Name: name, Types: bits}
}

func hardArg(name string) ParamSpec {
	return ParamSpec{Name: name, Class: paramClassHardQuote}
}

func softArg(name string) ParamSpec {
	return ParamSpec{Name: name, Class: paramClassSoftQuote}
}

func refine(name string) ParamSpec {
	return ParamSpec{Name: name, Class: paramClassRefine}
}

// initNatives populates the lib context: constants, datatype words,
// and every native action.
func (in *Interp) initNatives() {
	// constants
	for _, w := range []struct {
		name  string
		logic bool
	}{
		{"true", true}, {"yes", true}, {"on", true},
		{"false", false}, {"no", false}, {"off", false},
	} {
		in.FindOrAppendVar(in.lib, in.Intern(w.name)).InitLogic(w.logic)
	}
	in.FindOrAppendVar(in.lib, in.Intern("blank")).InitBlank()

	// datatype words: integer!, block!, ...
	for k := KindNull; k < KindMax; k++ {
		in.FindOrAppendVar(in.lib, in.Intern(k.String())).InitDatatype(k)
	}

	in.initMathNatives()
	in.initSeriesNatives()
	in.initSystemNatives()

	// control flow
	in.AddNative("if", []ParamSpec{
		arg("condition"),
		argTyped("branch", KindBlock),
	}, nativeIf, false)

	in.AddNative("either", []ParamSpec{
		arg("condition"),
		argTyped("true-branch", KindBlock),
		argTyped("false-branch", KindBlock),
	}, nativeEither, false)

	in.AddNative("while", []ParamSpec{
		argTyped("condition", KindBlock),
		argTyped("body", KindBlock),
	}, nativeWhile, false)

	in.AddNative("loop", []ParamSpec{
		argTyped("count", KindInteger),
		argTyped("body", KindBlock),
	}, nativeLoop, false)

	in.AddNative("do", []ParamSpec{arg("source")}, nativeDo, false)

	in.AddNative("catch", []ParamSpec{
		argTyped("block", KindBlock),
		refine("name"),
		arg("word"),
	}, nativeCatch, false)

	in.AddNative("throw", []ParamSpec{
		arg("value"),
		refine("name"),
		arg("word"),
	}, nativeThrow, false)

	in.AddNative("break", nil, nativeBreak, false)
	in.AddNative("continue", nil, nativeContinue, false)
	in.AddNative("return", []ParamSpec{arg("value")}, nativeReturn, false)

	in.AddNative("func", []ParamSpec{
		argTyped("spec", KindBlock),
		argTyped("body", KindBlock),
	}, nativeFunc, false)

	in.AddNative("fail", []ParamSpec{arg("reason")}, nativeFail, false)
	in.AddNative("attempt", []ParamSpec{arg("code")}, nativeAttempt, false)
	in.AddNative("trap", []ParamSpec{argTyped("code", KindBlock)}, nativeTrap, false)

	in.AddNative("set", []ParamSpec{softArg("target"), arg("value")}, nativeSet, false)
	in.AddNative("get", []ParamSpec{softArg("source")}, nativeGet, false)
}

func nativeIf(in *Interp, f *Frame) Ret {
	if !f.Arg(1).IsTruthy() {
		return RetNull
	}
	return in.EvalBlockCell(f.Out, f.Arg(2))
}

func nativeEither(in *Interp, f *Frame) Ret {
	branch := f.Arg(3)
	if f.Arg(1).IsTruthy() {
		branch = f.Arg(2)
	}
	return in.EvalBlockCell(f.Out, branch)
}

// loopThrowCaught handles break/continue labels inside loop bodies:
// break ends the loop with null, continue just ends the iteration.
// Any other label keeps propagating.
func (in *Interp) loopThrowCaught(out *Cell) (done, caught bool) {
	label := in.ThrownLabel(out)
	if label.Kind() != KindWord {
		return false, false
	}
	switch Spelling(CanonOf(label.WordSymbol())) {
	case "break":
		in.CatchThrown(out)
		out.InitNull()
		return true, true
	case "continue":
		in.CatchThrown(out)
		return false, true
	}
	return false, false
}

func nativeWhile(in *Interp, f *Frame) Ret {
	cond := f.Arg(1)
	body := f.Arg(2)
	f.Out.InitNull()
	for {
		in.checkSignals()
		if r := in.EvalBlockCell(f.Spare(), cond); r == RetThrown {
			f.Out.Move(f.Spare())
			return RetThrown
		}
		if !f.Spare().IsTruthy() {
			return RetOut
		}
		if r := in.EvalBlockCell(f.Out, body); r == RetThrown {
			done, caught := in.loopThrowCaught(f.Out)
			if !caught {
				return RetThrown
			}
			if done {
				return RetOut
			}
		}
	}
}

func nativeLoop(in *Interp, f *Frame) Ret {
	n := f.Arg(1).Int64()
	body := f.Arg(2)
	f.Out.InitNull()
	for i := int64(0); i < n; i++ {
		in.checkSignals()
		if r := in.EvalBlockCell(f.Out, body); r == RetThrown {
			done, caught := in.loopThrowCaught(f.Out)
			if !caught {
				return RetThrown
			}
			if done {
				return RetOut
			}
		}
	}
	return RetOut
}

func nativeDo(in *Interp, f *Frame) Ret {
	return in.DoAny(f.Out, f.Arg(1))
}

func nativeCatch(in *Interp, f *Frame) Ret {
	r := in.EvalBlockCell(f.Out, f.Arg(1))
	if r != RetThrown {
		return r
	}
	label := in.ThrownLabel(f.Out)
	if f.Arg(2).IsTruthy() {
		// catch/name
		if !labelMatches(label, f.Arg(3)) {
			return RetThrown
		}
	} else if label.Kind() != KindBlank {
		return RetThrown
	}
	in.CatchThrown(f.Out)
	return RetOut
}

func nativeThrow(in *Interp, f *Frame) Ret {
	var label *Cell
	if f.Arg(2).IsTruthy() {
		label = f.Arg(3)
	}
	in.InitThrown(f.Out, label, f.Arg(1))
	return RetThrown
}

func throwNamedWord(in *Interp, f *Frame, name string, val *Cell) Ret {
	var label Cell
	label.InitWord(KindWord, in.Intern(name))
	in.InitThrown(f.Out, &label, val)
	return RetThrown
}

func nativeBreak(in *Interp, f *Frame) Ret {
	return throwNamedWord(in, f, "break", nil)
}

func nativeContinue(in *Interp, f *Frame) Ret {
	return throwNamedWord(in, f, "continue", nil)
}

func nativeReturn(in *Interp, f *Frame) Ret {
	return throwNamedWord(in, f, "return", f.Arg(1))
}

// ---------------------------------------------------------------------------
// User functions
// ---------------------------------------------------------------------------

// nativeFunc builds an action from a spec block of words (plain words
// evaluate their arguments, lit-words take them literally, get-words
// softly) and a body block. Body words naming parameters become
// relative bindings resolved against the running frame.
func nativeFunc(in *Interp, f *Frame) Ret {
	spec := f.Arg(1).SeriesNode()
	var params []ParamSpec
	for i := f.Arg(1).Index(); i < spec.Len(); i++ {
		w := spec.At(i)
		switch w.Kind() {
		case KindWord:
			params = append(params, arg(Spelling(w.WordSymbol())))
		case KindLitWord:
			params = append(params, hardArg(Spelling(w.WordSymbol())))
		case KindGetWord:
			params = append(params, softArg(Spelling(w.WordSymbol())))
		default:
			in.FailID(ErrScript, "invalid-arg", w)
		}
	}

	// the body is copied deeply: relative binding mutates the array
	// cells, and the caller's block must stay untouched
	body := in.copyArrayShallow(f.Arg(2).SeriesNode(), f.Arg(2).Index())
	in.GuardSeries(body)
	in.deepenCopy(body)
	paramlist := in.MakeAction(params, runFuncBody, body)
	in.DropGuard()
	in.bindRelativeDeep(body, paramlist)

	f.Out.InitAction(paramlist)
	return RetOut
}

// bindRelativeDeep binds body words naming parameters relatively to
// the paramlist; the binding resolves through whichever frame of this
// action is running. Nested array cells are marked relative too, so a
// branch or loop block extracted from the body carries its frame along
// when it is derelativized.
func (in *Interp) bindRelativeDeep(arr *Series, paramlist *Series) {
	for i := 0; i < arr.Len(); i++ {
		v := arr.At(i)
		switch {
		case v.Kind().IsWord():
			canon := CanonOf(v.WordSymbol())
			for p := 1; p <= NumParams(paramlist); p++ {
				if CanonOf(ActionParam(paramlist, p).KeySymbol()) == canon {
					v.SetBinding(paramlist, p)
					break
				}
			}
		case v.Kind().IsArray():
			in.bindRelativeDeep(v.SeriesNode(), paramlist)
			v.extra = seriesBits(paramlist)
		}
	}
}

// runFuncBody is the dispatcher shared by all FUNC-built actions.
func runFuncBody(in *Interp, f *Frame) Ret {
	body := f.details.At(0)
	r := in.EvalArray(f.Out, body.SeriesNode(), body.Index(), f)
	if r != RetThrown {
		return r
	}
	label := in.ThrownLabel(f.Out)
	if label.Kind() == KindWord &&
		Spelling(CanonOf(label.WordSymbol())) == "return" {
		in.CatchThrown(f.Out)
		return RetOut
	}
	return RetThrown
}

// ---------------------------------------------------------------------------
// Fail / attempt / trap
// ---------------------------------------------------------------------------

func nativeFail(in *Interp, f *Frame) Ret {
	reason := f.Arg(1)
	switch reason.Kind() {
	case KindText:
		in.Fail(CellText(reason))
	case KindError:
		in.Fail(reason)
	default:
		in.Fail(reason)
	}
	return RetOut // unreachable
}

func nativeAttempt(in *Interp, f *Frame) Ret {
	var r Ret
	err := in.RescueError(func() {
		r = in.DoAny(f.Out, f.Arg(1))
	})
	if err != nil {
		return RetNull
	}
	return r
}

// nativeTrap runs the block and yields the error it failed with, or
// null when it completed.
func nativeTrap(in *Interp, f *Frame) Ret {
	var r Ret
	err := in.RescueError(func() {
		r = in.EvalBlockCell(f.Spare(), f.Arg(1))
	})
	if r == RetThrown {
		f.Out.Move(f.Spare())
		return RetThrown
	}
	if err == nil {
		return RetNull
	}
	f.Out.InitContextCell(KindError, err)
	return RetOut
}

// ---------------------------------------------------------------------------
// Set / get
// ---------------------------------------------------------------------------

func nativeSet(in *Interp, f *Frame) Ret {
	target := f.Arg(1)
	if !target.Kind().IsWord() {
		in.FailID(ErrScript, "invalid-arg", target)
	}
	if target.Binding() == nil {
		// unbound words land in lib, console style
		in.FindOrAppendVar(in.lib, target.WordSymbol())
		in.BindWord(target, in.lib)
	}
	in.SetVar(target, f.Arg(2), nil)
	f.Out.Move(f.Arg(2))
	return RetOut
}

func nativeGet(in *Interp, f *Frame) Ret {
	source := f.Arg(1)
	if !source.Kind().IsWord() {
		in.FailID(ErrScript, "invalid-arg", source)
	}
	v := in.lookupVar(source, nil)
	if v == nil {
		in.FailID(ErrScript, "not-bound", source)
	}
	f.Out.Move(v)
	return RetOut
}
