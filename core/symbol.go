package core

import "strings"

// ---------------------------------------------------------------------------
// Symbols: interned word spellings
// ---------------------------------------------------------------------------

// Word spellings are byte series flagged as symbols. Each distinct
// spelling gets one series; spellings equal under case folding share a
// canon, reached through the link slot (the canon links to itself).
// Identity comparisons go through the canon; the canon's misc bits
// carry a small ID usable in switch dispatch.
//
// The tables hold the only non-word references to symbols, and the GC
// treats them weakly: canons with no surviving referencing word are
// swept out of the tables. Pre-interned symbols are protected from
// this by a mark during collection.

// SymID is the dispatch ID of a pre-interned symbol. Symbols interned
// after boot all answer SymNone.
type SymID uint16

const (
	SymNone SymID = iota
	SymAdd
	SymSubtract
	SymMultiply
	SymDivide
	SymLength
	SymType
	SymWords
	SymIndex
	SymHead
	SymTail
	SymValue
	SymMessage
	SymNear
	SymWhere
	SymFile
	SymLine
	SymCode
	SymErrType
	SymErrID
	SymArg1
	SymArg2
	SymArg3
	SymSpec
	SymActor
	SymBody
	symMaxPreinterned
)

// preinterned maps boot symbols to their dispatch IDs.
var preinterned = map[string]SymID{
	"add":      SymAdd,
	"subtract": SymSubtract,
	"multiply": SymMultiply,
	"divide":   SymDivide,
	"length":   SymLength,
	"type":     SymType,
	"words":    SymWords,
	"index":    SymIndex,
	"head":     SymHead,
	"tail":     SymTail,
	"value":    SymValue,
	"message":  SymMessage,
	"near":     SymNear,
	"where":    SymWhere,
	"file":     SymFile,
	"line":     SymLine,
	"code":     SymCode,
	"err-type": SymErrType,
	"id":       SymErrID,
	"arg1":     SymArg1,
	"arg2":     SymArg2,
	"arg3":     SymArg3,
	"spec":     SymSpec,
	"actor":    SymActor,
	"body":     SymBody,
}

// initSymbols pre-interns the protected boot symbols.
func (in *Interp) initSymbols() {
	in.canons = make(map[string]*Series)
	in.spellings = make(map[string]*Series)
	for name, id := range preinterned {
		sym := in.Intern(name)
		canon := CanonOf(sym)
		canon.misc = uint64(id)
		in.protectedSyms = append(in.protectedSyms, canon)
	}
}

// Intern returns the symbol series for the exact spelling, creating it
// (and its canon) on first sight.
func (in *Interp) Intern(spelling string) *Series {
	if sym, ok := in.spellings[spelling]; ok {
		return sym
	}

	folded := strings.ToLower(spelling)
	canon := in.canons[folded]
	if canon == nil {
		canon = in.makeSymbolSeries(spelling)
		canon.SetFlag(seriesFlagIsCanon)
		canon.link = seriesBits(canon)
		canon.SetFlag(seriesFlagLinkIsNode)
		in.canons[folded] = canon
		in.spellings[spelling] = canon
		if spelling != folded {
			// the canon carries this exact spelling; the folded form
			// resolves to it through the canons table only
			return canon
		}
		return canon
	}

	sym := in.makeSymbolSeries(spelling)
	sym.link = seriesBits(canon)
	sym.SetFlag(seriesFlagLinkIsNode)
	in.spellings[spelling] = sym
	return sym
}

// makeSymbolSeries builds a managed width-1 series holding the
// spelling bytes.
func (in *Interp) makeSymbolSeries(spelling string) *Series {
	s := in.MakeSeries(len(spelling), 1, seriesFlagIsSymbol|nodeFlagManaged)
	if s.IsDynamic() {
		copy(s.data, spelling)
		s.used = len(spelling)
	} else {
		copy(s.small[:], spelling)
		s.setLenByte(len(spelling))
	}
	return s
}

// CanonOf returns the canonical symbol for a spelling series.
func CanonOf(sym *Series) *Series {
	if !sym.GetFlag(seriesFlagIsSymbol) {
		panic("symbol: CanonOf on non-symbol series")
	}
	if sym.GetFlag(seriesFlagIsCanon) {
		return sym
	}
	return sym.LinkNode()
}

// Spelling returns the spelling bytes of a symbol as a string.
func Spelling(sym *Series) string {
	return string(sym.Bytes())
}

// SymbolID returns the dispatch ID of a symbol's canon (SymNone for
// post-boot symbols).
func SymbolID(sym *Series) SymID {
	return SymID(CanonOf(sym).misc)
}

// SameSymbol reports case-insensitive symbol identity.
func SameSymbol(a, b *Series) bool {
	return CanonOf(a) == CanonOf(b)
}

// sweepSymbols drops table entries whose symbol series did not survive
// the mark phase. Runs inside the GC, before the pool sweep.
func (in *Interp) sweepSymbols() {
	for spelling, sym := range in.spellings {
		if sym.info&nodeFlagMarked == 0 {
			delete(in.spellings, spelling)
		}
	}
	for folded, canon := range in.canons {
		if canon.info&nodeFlagMarked == 0 {
			delete(in.canons, folded)
		}
	}
}
