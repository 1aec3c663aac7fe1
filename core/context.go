package core

// ---------------------------------------------------------------------------
// Contexts: varlist + keylist pairs
// ---------------------------------------------------------------------------

// A context is an array of cells (the varlist) whose slot 0 holds the
// context's archetype value and whose slots 1..N hold variables. The
// varlist's link slot points at a sibling keylist: an array whose slot
// 0 is a root key and whose slots 1..N are typeset keys naming the
// variables. Keylists may be shared between contexts; a shared keylist
// has no owner back-pointer, a unique one links back to its varlist.

// MakeContext builds an empty managed context of the given kind with
// room for capacity variables.
func (in *Interp) MakeContext(kind Kind, capacity int) *Series {
	if !kind.IsContext() {
		panic("context: MakeContext of " + kind.String())
	}
	keylist := in.MakeArray(capacity+1, nodeFlagManaged|seriesFlagIsKeylist)
	in.appendBlankRootKey(keylist)

	varlist := in.MakeArray(capacity+1, nodeFlagManaged|seriesFlagIsVarlist)
	in.ExpandSeries(varlist, 0, 1)
	archetype := varlist.At(0)
	archetype.Reset(kind, cellFlagFirstIsNode)
	archetype.extra = 0
	archetype.first = seriesBits(varlist)
	archetype.second = 0

	varlist.link = seriesBits(keylist)
	varlist.SetFlag(seriesFlagLinkIsNode)
	keylist.link = seriesBits(varlist)
	keylist.SetFlag(seriesFlagLinkIsNode)
	return varlist
}

func (in *Interp) appendBlankRootKey(keylist *Series) {
	in.ExpandSeries(keylist, 0, 1)
	keylist.At(0).InitBlank()
}

// Keylist returns the context's keylist.
func Keylist(varlist *Series) *Series {
	return varlist.LinkNode()
}

// CtxLen returns the number of variables in the context.
func CtxLen(varlist *Series) int {
	return varlist.Len() - 1
}

// CtxVar returns variable cell i (1-based).
func CtxVar(varlist *Series, i int) *Cell {
	return varlist.At(i)
}

// CtxKey returns key cell i (1-based).
func CtxKey(varlist *Series, i int) *Cell {
	return Keylist(varlist).At(i)
}

// CtxArchetype returns the context's archetype cell (slot 0).
func CtxArchetype(varlist *Series) *Cell {
	return varlist.At(0)
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// Parameter classes, stored in the mirror byte of typeset keys.
const (
	paramClassNormal    = 0 // evaluate the argument
	paramClassHardQuote = 1 // take the argument literally
	paramClassSoftQuote = 2 // literal unless group/get-word
	paramClassRefine    = 3 // refinement flag
	paramClassLocal     = 4 // no argument; starts unset
	paramClassReturn    = 5 // definitional return slot
)

// InitKey formats a typeset key cell naming sym, accepting the kinds
// in bits, with the given parameter class.
func (c *Cell) InitKey(sym *Series, bits uint64, class uint8) {
	c.Reset(KindTypeset, cellFlagFirstIsNode)
	c.extra = 0
	c.first = seriesBits(sym)
	c.second = bits
	c.setMirror(class)
}

// KeySymbol returns the symbol naming a typeset key.
func (c *Cell) KeySymbol() *Series {
	if c.Kind() != KindTypeset {
		panic("context: KeySymbol on " + c.Kind().String())
	}
	return seriesFromBits(c.first)
}

// KeyParamClass returns the parameter class of a key.
func (c *Cell) KeyParamClass() uint8 {
	return c.mirrorByte()
}

// typesetBit returns the membership bit for a kind.
func typesetBit(k Kind) uint64 {
	return 1 << uint(k)
}

// tsAny accepts every first-class kind.
const tsAny = ^uint64(0)

// KeyAccepts reports whether the key's typeset admits the kind.
func (c *Cell) KeyAccepts(k Kind) bool {
	return c.second&typesetBit(k) != 0
}

// FindKey returns the 1-based index of the key matching sym's canon,
// or 0 when absent.
func (in *Interp) FindKey(varlist *Series, sym *Series) int {
	keylist := Keylist(varlist)
	canon := CanonOf(sym)
	for i := 1; i < keylist.Len(); i++ {
		k := keylist.At(i)
		if k.Kind() != KindTypeset {
			continue
		}
		if CanonOf(k.KeySymbol()) == canon {
			return i
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// ensureUniqueKeylist clones a shared keylist before a mutation that
// would diverge it, re-linking the clone to this varlist.
func (in *Interp) ensureUniqueKeylist(varlist *Series) *Series {
	keylist := Keylist(varlist)
	if !keylist.GetFlag(seriesFlagKeylistShared) {
		return keylist
	}
	clone := in.MakeArray(keylist.Len()+1, nodeFlagManaged|seriesFlagIsKeylist)
	in.ExpandSeries(clone, 0, keylist.Len())
	copy(clone.Slice(), keylist.Slice())
	clone.link = seriesBits(varlist)
	clone.SetFlag(seriesFlagLinkIsNode)
	varlist.link = seriesBits(clone)
	return clone
}

// AppendContextVar adds a variable named by sym, returning its cell.
// The new variable starts as null.
func (in *Interp) AppendContextVar(varlist *Series, sym *Series) *Cell {
	keylist := in.ensureUniqueKeylist(varlist)
	at := keylist.Len()
	in.ExpandSeries(keylist, at, 1)
	keylist.At(at).InitKey(sym, tsAny, paramClassNormal)

	in.ExpandSeries(varlist, varlist.Len(), 1)
	v := varlist.At(varlist.Len() - 1)
	v.InitNull()
	return v
}

// FindOrAppendVar returns the variable for sym, adding it if needed.
func (in *Interp) FindOrAppendVar(varlist *Series, sym *Series) *Cell {
	if idx := in.FindKey(varlist, sym); idx != 0 {
		return CtxVar(varlist, idx)
	}
	return in.AppendContextVar(varlist, sym)
}

// ShareContextShape makes a new context of the same kind sharing the
// keylist of the original; variables start null.
func (in *Interp) ShareContextShape(varlist *Series) *Series {
	keylist := Keylist(varlist)
	keylist.SetFlag(seriesFlagKeylistShared)
	keylist.link = 0
	keylist.ClearFlag(seriesFlagLinkIsNode)

	kind := CtxArchetype(varlist).Kind()
	n := CtxLen(varlist)
	clone := in.MakeArray(n+1, nodeFlagManaged|seriesFlagIsVarlist)
	in.ExpandSeries(clone, 0, n+1)
	archetype := clone.At(0)
	archetype.Reset(kind, cellFlagFirstIsNode)
	archetype.extra = 0
	archetype.first = seriesBits(clone)
	archetype.second = 0
	for i := 1; i <= n; i++ {
		clone.At(i).InitNull()
	}
	clone.link = seriesBits(keylist)
	clone.SetFlag(seriesFlagLinkIsNode)
	return clone
}

// InitContextCell formats a cell referencing the context.
func (c *Cell) InitContextCell(kind Kind, varlist *Series) {
	if !kind.IsContext() {
		panic("context: InitContextCell of " + kind.String())
	}
	c.Reset(kind, cellFlagFirstIsNode)
	c.extra = 0
	c.first = seriesBits(varlist)
	c.second = 0
}

// ContextVarlist returns the varlist of a context-kind cell.
func (c *Cell) ContextVarlist() *Series {
	if !c.Kind().IsContext() {
		panic("context: ContextVarlist on " + c.Kind().String())
	}
	return seriesFromBits(c.first)
}
