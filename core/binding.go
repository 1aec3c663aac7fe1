package core

// ---------------------------------------------------------------------------
// Bindings: how words reach variables
// ---------------------------------------------------------------------------

// A word cell stores its spelling symbol in the first payload slot, a
// cached index in the second, and its binding in extra. The binding is
// one of:
//
//	0            unbound
//	varlist      specific: look the variable up by index
//	paramlist    relative: must be combined with a running frame for
//	             that action (the specifier) to reach an argument
//
// Relative bindings never escape arrays that share an action's body;
// copying a cell out of such an array goes through Derelativize.

// InitWord makes an unbound word cell of the given word flavor.
func (c *Cell) InitWord(k Kind, sym *Series) {
	if !k.IsWord() {
		panic("binding: InitWord of non-word " + k.String())
	}
	c.Reset(k, cellFlagFirstIsNode)
	c.extra = 0
	c.first = seriesBits(sym)
	c.second = 0
}

// WordSymbol returns the spelling symbol of a word cell.
func (c *Cell) WordSymbol() *Series {
	if !c.Kind().IsWord() {
		panic("binding: WordSymbol on " + c.Kind().String())
	}
	return seriesFromBits(c.first)
}

// Binding returns the binding node of a bindable cell (nil if unbound).
func (c *Cell) Binding() *Series {
	if !c.Kind().IsBindable() {
		return nil
	}
	return seriesFromBits(c.extra)
}

// SetBinding rebinds the cell to the given node with a cached index.
func (c *Cell) SetBinding(binding *Series, index int) {
	c.extra = seriesBits(binding)
	c.SetIndex(index)
}

// IsRelative reports whether the cell's binding needs a specifier
// frame to resolve.
func (c *Cell) IsRelative() bool {
	b := c.Binding()
	return b != nil && b.GetFlag(seriesFlagIsParamlist)
}

// BindWord binds a word cell into a context at the keylist position of
// its spelling, returning false when the context has no such key.
func (in *Interp) BindWord(c *Cell, varlist *Series) bool {
	idx := in.FindKey(varlist, c.WordSymbol())
	if idx == 0 {
		return false
	}
	c.SetBinding(varlist, idx)
	return true
}

// BindArrayDeep walks an array binding every word with a key in the
// context, recursing into nested arrays.
func (in *Interp) BindArrayDeep(arr *Series, varlist *Series) {
	for i := 0; i < arr.Len(); i++ {
		v := arr.At(i)
		k := v.Kind()
		switch {
		case k.IsWord():
			in.BindWord(v, varlist)
		case k.IsArray():
			in.BindArrayDeep(v.SeriesNode(), varlist)
		}
	}
}

// lookupVar resolves a bound word to its variable cell. The specifier
// supplies the frame for relative bindings. Returns nil when unbound.
func (in *Interp) lookupVar(c *Cell, specifier *Frame) *Cell {
	binding := c.Binding()
	if binding == nil {
		return nil
	}
	if binding.GetFlag(seriesFlagIsParamlist) {
		// relative: resolve against the running frame of that action
		f := specifier
		for f != nil && f.action != binding {
			f = f.prior
		}
		if f == nil {
			panic("binding: relative word with no live frame")
		}
		return &f.args[c.Index()-1]
	}
	if binding.GetFlag(seriesFlagInaccessible) {
		in.FailID(ErrSeries, "series-freed", nil)
	}
	return binding.At(c.Index())
}

// GetVar fetches the value of a word into out, failing on unbound
// words or unset variables.
func (in *Interp) GetVar(out, word *Cell, specifier *Frame) {
	v := in.lookupVar(word, specifier)
	if v == nil {
		in.FailID(ErrScript, "not-bound", word)
	}
	out.Move(v)
}

// SetVar stores a value through a word binding.
func (in *Interp) SetVar(word, value *Cell, specifier *Frame) {
	v := in.lookupVar(word, specifier)
	if v == nil {
		in.FailID(ErrScript, "not-bound", word)
	}
	if v.IsProtected() {
		in.FailID(ErrScript, "protected", word)
	}
	v.Move(value)
}

// Derelativize copies src into dst like Move, but resolves a relative
// binding against the specifier frame so the result is specific.
func (in *Interp) Derelativize(dst, src *Cell, specifier *Frame) {
	dst.Move(src)
	if !src.IsRelative() {
		return
	}
	f := specifier
	for f != nil && f.action != src.Binding() {
		f = f.prior
	}
	if f == nil {
		panic("binding: derelativize with no live frame")
	}
	varlist := in.reifyFrame(f)
	dst.SetBinding(varlist, src.Index())
}
