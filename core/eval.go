package core

// ---------------------------------------------------------------------------
// Evaluator: stepwise execution of arrays
// ---------------------------------------------------------------------------

// EvalBlock evaluates a whole array from its head; out receives the
// last expression's value (null for an empty array). RetThrown means a
// throw is propagating and out holds its label.
func (in *Interp) EvalBlock(out *Cell, block *Series) Ret {
	return in.EvalArray(out, block, 0, nil)
}

// EvalBlockCell evaluates a block or group cell from its index.
func (in *Interp) EvalBlockCell(out, c *Cell) Ret {
	return in.EvalArray(out, c.SeriesNode(), c.Index(), in.specifierFor(c))
}

// specifierFor resolves the frame that makes the relative words under
// an array cell specific: a paramlist binding means some frame of that
// action is live on the stack, and a reified frame context names its
// own frame while it still runs.
func (in *Interp) specifierFor(c *Cell) *Frame {
	b := c.Binding()
	if b == nil {
		return nil
	}
	if b.GetFlag(seriesFlagIsParamlist) {
		return in.topFrame
	}
	if b.GetFlag(seriesFlagIsVarlist) {
		for f := in.topFrame; f != nil; f = f.prior {
			if f.varlist == b {
				return f
			}
		}
	}
	return nil
}

// EvalArray evaluates feed from index under a specifier frame.
func (in *Interp) EvalArray(out *Cell, feed *Series, index int, specifier *Frame) Ret {
	in.ensureReadable(feed)
	f := &Frame{Out: out, feed: feed, index: index, specifier: specifier}
	in.pushFrame(f)
	out.InitNull()
	for !f.AtEnd() {
		in.checkSignals()
		if r := in.evalStep(f, out, true); r == RetThrown {
			in.popFrame(f)
			return RetThrown
		}
	}
	in.popFrame(f)
	return RetOut
}

// evalStep evaluates one full expression from the frame's feed into
// out. With lookahead set it also runs any enfix continuation on the
// result; argument gathering for an enfix action passes false, so the
// outer operation completes first and chains associate left to right.
func (in *Interp) evalStep(f *Frame, out *Cell, lookahead bool) Ret {
	v := f.current()
	f.index++

	// a quoting enfix action wins the token to its left before that
	// token evaluates (this is what makes `length of block` work)
	if act, sym := in.quotingEnfix(f); act != nil {
		f.index++
		in.Derelativize(&f.spare, v, f.specifier)
		r := in.applyAction(f, out, act, sym, &f.spare, nil)
		if r == RetThrown {
			return RetThrown
		}
		if r == RetNull {
			out.InitNull()
		}
		if r != RetInvisible && lookahead {
			if r2 := in.lookahead(f, out); r2 == RetThrown {
				return RetThrown
			}
		}
		return RetOut
	}

	var r Ret
	switch v.Kind() {
	case KindWord:
		r = in.evalWord(f, out, v)
	case KindSetWord:
		r = in.evalSetWord(f, out, v)
	case KindGetWord:
		val := in.lookupVar(v, f.specifier)
		if val == nil {
			in.FailID(ErrScript, "not-bound", v)
		}
		out.Move(val)
		r = RetOut
	case KindLitWord:
		out.Move(v)
		out.resetByte(uint8(KindWord), out.header&cellMaskCopyFlags)
		r = RetOut
	case KindGroup:
		r = in.EvalArray(out, v.SeriesNode(), v.Index(), in.groupSpecifier(f, v))
	case KindPath:
		r = in.evalPath(f, out, v, true, nil)
	case KindGetPath:
		r = in.evalPath(f, out, v, false, nil)
	case KindSetPath:
		r = in.evalSetPath(f, out, v)
	case KindAction:
		r = in.applyAction(f, out, v, nil, nil, nil)
	case KindQuoted:
		out.Move(v)
		out.Unquotify(1)
		r = RetOut
	default:
		in.Derelativize(out, v, f.specifier)
		r = RetOut
	}

	if r == RetThrown {
		return r
	}
	if r == RetNull {
		out.InitNull()
	}
	if r != RetInvisible && lookahead {
		if r2 := in.lookahead(f, out); r2 == RetThrown {
			return RetThrown
		}
	}
	return RetOut
}

// quotingEnfix reports whether the frame's next token is a word bound
// to an enfix action whose first parameter quotes its argument.
func (in *Interp) quotingEnfix(f *Frame) (*Cell, *Series) {
	if f.AtEnd() {
		return nil, nil
	}
	nxt := f.current()
	if nxt.Kind() != KindWord {
		return nil, nil
	}
	val := in.lookupVar(nxt, f.specifier)
	if val == nil || val.Kind() != KindAction || !val.GetFlag(cellFlagEnfixed) {
		return nil, nil
	}
	paramlist := val.ActionParamlist()
	if NumParams(paramlist) == 0 {
		return nil, nil
	}
	class := ActionParam(paramlist, 1).KeyParamClass()
	if class != paramClassHardQuote && class != paramClassSoftQuote {
		return nil, nil
	}
	return val, nxt.WordSymbol()
}

// groupSpecifier picks the specifier for a nested array: a relative
// binding keeps this frame's specifier, anything else resolves the way
// a free-standing array cell would.
func (in *Interp) groupSpecifier(f *Frame, v *Cell) *Frame {
	if v.IsRelative() {
		return f.specifier
	}
	return in.specifierFor(v)
}

// evalWord handles a plain word: actions invoke, everything else
// fetches. A variable holding null fails, which is what distinguishes
// unset-like state from a stored blank.
func (in *Interp) evalWord(f *Frame, out *Cell, word *Cell) Ret {
	val := in.lookupVar(word, f.specifier)
	if val == nil {
		in.FailID(ErrScript, "not-bound", word)
	}
	if val.Kind() == KindAction {
		if val.GetFlag(cellFlagEnfixed) {
			in.FailArgs(ErrScript, "expect-arg", word)
		}
		return in.applyAction(f, out, val, word.WordSymbol(), nil, nil)
	}
	if val.IsNulled() {
		in.FailID(ErrScript, "no-value", word)
	}
	out.Move(val)
	return RetOut
}

// evalSetWord evaluates the next expression and stores it through the
// word's binding; the value is also the expression's result.
func (in *Interp) evalSetWord(f *Frame, out *Cell, word *Cell) Ret {
	if f.AtEnd() {
		in.FailArgs(ErrScript, "expect-arg", word)
	}
	if r := in.evalStep(f, out, true); r == RetThrown {
		return RetThrown
	}
	in.SetVar(word, out, f.specifier)
	return RetOut
}

// lookahead continues an expression when the next feed item is a word
// bound to an enfix action: the value in out becomes its left argument.
func (in *Interp) lookahead(f *Frame, out *Cell) Ret {
	for !f.AtEnd() {
		nxt := f.current()
		if nxt.Kind() != KindWord {
			return RetOut
		}
		val := in.lookupVar(nxt, f.specifier)
		if val == nil || val.Kind() != KindAction || !val.GetFlag(cellFlagEnfixed) {
			return RetOut
		}
		f.index++
		f.spare.Move(out)
		r := in.applyAction(f, out, val, nxt.WordSymbol(), &f.spare, nil)
		if r == RetThrown {
			return RetThrown
		}
		if r == RetNull {
			out.InitNull()
		}
	}
	return RetOut
}

// ---------------------------------------------------------------------------
// Action application
// ---------------------------------------------------------------------------

// applyAction invokes the action in act on a fresh frame, gathering
// arguments from f's feed (left supplies the first argument for enfix
// calls; refines activates refinement parameters from a path
// invocation). The parent's feed index advances past the consumed
// arguments.
//
// Parameters following an inactive refinement stay null and consume
// nothing from the feed.
func (in *Interp) applyAction(f *Frame, out *Cell, act *Cell, label *Series, left *Cell, refines []*Series) Ret {
	paramlist := act.ActionParamlist()
	details := act.ActionDetails()
	n := NumParams(paramlist)

	sub := &Frame{
		Out:       out,
		feed:      f.feed,
		index:     f.index,
		specifier: f.specifier,
		action:    paramlist,
		details:   details,
		label:     label,
	}
	sub.args = make([]Cell, n)
	for i := range sub.args {
		sub.args[i].header = nodeFlagNode | nodeFlagCell | nodeFlagStack
		sub.args[i].InitNull()
	}
	in.pushFrame(sub)

	used := 0
	gathering := true
	for i := 1; i <= n; i++ {
		key := ActionParam(paramlist, i)
		arg := sub.Arg(i)
		class := key.KeyParamClass()

		if class == paramClassRefine {
			active := false
			canon := CanonOf(key.KeySymbol())
			for _, r := range refines {
				if CanonOf(r) == canon {
					active = true
					used++
					break
				}
			}
			if active {
				arg.InitLogic(true)
			} else {
				arg.InitBlank()
			}
			gathering = active
			continue
		}

		if i == 1 && left != nil {
			arg.Move(left)
			in.checkArg(sub, key, arg)
			continue
		}

		switch class {
		case paramClassLocal, paramClassReturn:
			arg.InitNull()
			continue
		}

		if !gathering {
			arg.InitNull()
			continue
		}

		if sub.AtEnd() {
			var w Cell
			w.InitWord(KindWord, key.KeySymbol())
			in.FailArgs(ErrScript, "expect-arg", &w)
		}

		switch class {
		case paramClassNormal:
			if r := in.evalStep(sub, arg, left == nil); r == RetThrown {
				out.Move(arg)
				f.index = sub.index
				in.popFrame(sub)
				return RetThrown
			}
		case paramClassHardQuote:
			in.Derelativize(arg, sub.current(), sub.specifier)
			sub.index++
		case paramClassSoftQuote:
			cur := sub.current()
			switch cur.Kind() {
			case KindGroup:
				if r := in.EvalArray(arg, cur.SeriesNode(), cur.Index(),
					in.groupSpecifier(sub, cur)); r == RetThrown {
					out.Move(arg)
					f.index = sub.index + 1
					in.popFrame(sub)
					return RetThrown
				}
				sub.index++
			case KindGetWord:
				in.GetVar(arg, cur, sub.specifier)
				sub.index++
			default:
				in.Derelativize(arg, cur, sub.specifier)
				sub.index++
			}
		}
		in.checkArg(sub, key, arg)
	}

	if used < len(refines) {
		for _, r := range refines {
			if in.findRefine(paramlist, r) == 0 {
				var w Cell
				w.InitWord(KindWord, r)
				in.FailID(ErrScript, "bad-refine", &w)
			}
		}
	}

	r := in.dispatcherOf(details)(in, sub)
	f.index = sub.index
	in.popFrame(sub)
	if r == RetNull {
		out.InitNull()
		r = RetOut
	}
	return r
}

// findRefine returns the paramlist index of a refinement key by canon,
// or 0 when absent.
func (in *Interp) findRefine(paramlist *Series, sym *Series) int {
	canon := CanonOf(sym)
	for i := 1; i <= NumParams(paramlist); i++ {
		key := ActionParam(paramlist, i)
		if key.KeyParamClass() == paramClassRefine &&
			CanonOf(key.KeySymbol()) == canon {
			return i
		}
	}
	return 0
}

// checkArg enforces a parameter's typeset.
func (in *Interp) checkArg(f *Frame, key, arg *Cell) {
	if arg.IsNulled() || key.KeyAccepts(arg.HeartKind()) {
		return
	}
	var lbl Cell
	if f.label != nil {
		lbl.InitWord(KindWord, f.label)
	} else {
		lbl.InitWord(KindWord, key.KeySymbol())
	}
	var pname Cell
	pname.InitWord(KindWord, key.KeySymbol())
	var t Cell
	t.InitDatatype(arg.HeartKind())
	in.FailArgs(ErrScript, "expect-arg", &lbl, &pname, &t)
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// evalPath walks a path's segments. With invoke set, a final action
// value is applied (plain paths); otherwise it is fetched (get-paths).
// A non-nil setVal turns the walk into an assignment of the last
// segment.
func (in *Interp) evalPath(f *Frame, out *Cell, pv *Cell, invoke bool, setVal *Cell) Ret {
	arr := pv.SeriesNode()
	in.ensureReadable(arr)
	if arr.Len() == 0 {
		in.FailID(ErrScript, "bad-path", pv)
	}

	head := arr.At(0)
	cur := &f.spare
	switch head.Kind() {
	case KindWord:
		val := in.lookupVar(head, f.specifier)
		if val == nil {
			in.FailID(ErrScript, "not-bound", head)
		}
		cur.Move(val)
	case KindGroup:
		if r := in.EvalArray(cur, head.SeriesNode(), head.Index(),
			in.groupSpecifier(f, head)); r == RetThrown {
			out.Move(cur)
			return RetThrown
		}
	default:
		in.FailID(ErrScript, "bad-path", pv)
	}

	for i := 1; i < arr.Len(); i++ {
		seg := arr.At(i)
		last := i == arr.Len()-1

		if cur.Kind() == KindAction {
			// the rest of the path names refinements
			if !invoke || setVal != nil {
				in.FailID(ErrScript, "bad-path", pv)
			}
			var refines []*Series
			for ; i < arr.Len(); i++ {
				rseg := arr.At(i)
				if !rseg.Kind().IsWord() {
					in.FailID(ErrScript, "bad-refine", rseg)
				}
				refines = append(refines, rseg.WordSymbol())
			}
			var lbl *Series
			if head.Kind() == KindWord {
				lbl = head.WordSymbol()
			}
			act := *cur // applyAction sub-evals may reuse spare
			return in.applyAction(f, out, &act, lbl, nil, refines)
		}

		var picker Cell
		switch seg.Kind() {
		case KindGroup:
			if r := in.EvalArray(&picker, seg.SeriesNode(), seg.Index(),
				in.groupSpecifier(f, seg)); r == RetThrown {
				out.Move(&picker)
				return RetThrown
			}
		default:
			picker.Move(seg)
		}

		if last && setVal != nil {
			in.pokeCell(cur, &picker, setVal)
			out.Move(setVal)
			return RetOut
		}
		in.pickCell(cur, &picker, cur)
	}

	if invoke && cur.Kind() == KindAction {
		var lbl *Series
		if head.Kind() == KindWord {
			lbl = head.WordSymbol()
		}
		act := *cur // applyAction sub-evals may reuse spare
		return in.applyAction(f, out, &act, lbl, nil, nil)
	}
	if setVal != nil {
		in.FailID(ErrScript, "bad-path", pv)
	}
	out.Move(cur)
	return RetOut
}

// evalSetPath evaluates the next expression and assigns it through the
// path.
func (in *Interp) evalSetPath(f *Frame, out *Cell, pv *Cell) Ret {
	if f.AtEnd() {
		in.FailArgs(ErrScript, "expect-arg", pv)
	}
	var val Cell
	if r := in.evalStep(f, &val, true); r == RetThrown {
		out.Move(&val)
		return RetThrown
	}
	in.GuardCell(&val)
	defer in.DropGuard()
	return in.evalPath(f, out, pv, false, &val)
}

// pickCell reads one element out of a container into dst. Contexts
// pick by word, series by integer (1-based from the cell's index).
// Out-of-range picks yield null.
func (in *Interp) pickCell(container, picker, dst *Cell) {
	switch {
	case container.Kind().IsContext():
		if !picker.Kind().IsWord() {
			in.FailID(ErrScript, "bad-path", picker)
		}
		varlist := container.ContextVarlist()
		in.ensureReadable(varlist)
		idx := in.FindKey(varlist, picker.WordSymbol())
		if idx == 0 {
			in.FailID(ErrScript, "bad-path", picker)
		}
		dst.Move(CtxVar(varlist, idx))
	case container.Kind().IsArray():
		if picker.Kind() != KindInteger {
			in.FailID(ErrScript, "bad-path", picker)
		}
		s := container.SeriesNode()
		in.ensureReadable(s)
		at := container.Index() + int(picker.Int64()) - 1
		if at < 0 || at >= s.Len() {
			dst.InitNull()
			return
		}
		in.Derelativize(dst, s.At(at), nil)
	case container.Kind().IsSeries():
		if picker.Kind() != KindInteger {
			in.FailID(ErrScript, "bad-path", picker)
		}
		s := container.SeriesNode()
		in.ensureReadable(s)
		b := CellBytes(container)
		at := int(picker.Int64()) - 1
		if at < 0 || at >= len(b) {
			dst.InitNull()
			return
		}
		if container.Kind() == KindBinary {
			dst.InitInteger(int64(b[at]))
		} else {
			dst.InitChar(rune(b[at]))
		}
	default:
		in.FailID(ErrScript, "bad-path", picker)
	}
}

// pokeCell writes one element of a container in place.
func (in *Interp) pokeCell(container, picker, val *Cell) {
	switch {
	case container.Kind().IsContext():
		if !picker.Kind().IsWord() {
			in.FailID(ErrScript, "bad-path", picker)
		}
		varlist := container.ContextVarlist()
		in.ensureMutable(varlist)
		idx := in.FindKey(varlist, picker.WordSymbol())
		if idx == 0 {
			in.FailID(ErrScript, "bad-path", picker)
		}
		slot := CtxVar(varlist, idx)
		if slot.IsProtected() {
			in.FailID(ErrScript, "protected", picker)
		}
		slot.Move(val)
	case container.Kind().IsArray():
		if picker.Kind() != KindInteger {
			in.FailID(ErrScript, "bad-path", picker)
		}
		s := container.SeriesNode()
		in.ensureMutable(s)
		at := container.Index() + int(picker.Int64()) - 1
		if at < 0 || at >= s.Len() {
			in.FailID(ErrSeries, "out-of-range", picker)
		}
		s.At(at).Move(val)
	case container.Kind().IsSeries():
		if picker.Kind() != KindInteger || val.Kind() != KindInteger &&
			val.Kind() != KindChar {
			in.FailID(ErrScript, "bad-path", picker)
		}
		s := container.SeriesNode()
		in.ensureMutable(s)
		b := CellBytes(container)
		at := int(picker.Int64()) - 1
		if at < 0 || at >= len(b) {
			in.FailID(ErrSeries, "out-of-range", picker)
		}
		if val.Kind() == KindInteger {
			b[at] = byte(val.Int64())
		} else {
			b[at] = byte(val.Char())
		}
	default:
		in.FailID(ErrScript, "bad-path", picker)
	}
}

// ---------------------------------------------------------------------------
// Do
// ---------------------------------------------------------------------------

// DoAny evaluates a value the way the DO native does: blocks and
// groups run, text scans then runs bound to lib, actions apply with no
// arguments, anything else passes through.
func (in *Interp) DoAny(out, v *Cell) Ret {
	switch v.Kind() {
	case KindBlock, KindGroup:
		return in.EvalBlockCell(out, v)
	case KindText:
		return in.RunText(out, CellText(v))
	case KindAction:
		f := in.topFrame
		if f == nil {
			f = &Frame{}
		}
		return in.applyAction(f, out, v, nil, nil, nil)
	default:
		out.Move(v)
		return RetOut
	}
}

// RunText scans source text, binds it into lib, and evaluates it.
// Top-level set-words get fresh lib variables first, so assignments to
// new names work the way they do at a console.
// This is the embedding entry point behind the console and rend.Value.
func (in *Interp) RunText(out *Cell, src string) Ret {
	return in.RunBlock(out, in.Scan(src))
}

// RunBlock binds a scanned block into lib and evaluates it, growing
// lib with any top-level set-words first.
func (in *Interp) RunBlock(out *Cell, block *Series) Ret {
	in.GuardSeries(block)
	defer in.DropGuard()
	in.collectSetWords(block, in.lib)
	in.BindArrayDeep(block, in.lib)
	return in.EvalBlock(out, block)
}

// collectSetWords appends a variable for each top-level set-word of
// the array that the context lacks.
func (in *Interp) collectSetWords(arr *Series, varlist *Series) {
	for i := 0; i < arr.Len(); i++ {
		v := arr.At(i)
		if v.Kind() == KindSetWord {
			in.FindOrAppendVar(varlist, v.WordSymbol())
		}
	}
}
