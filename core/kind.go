// Package core implements the rend interpreter: the tagged cell value
// model, the series memory substrate with its pooled allocator and
// mark/sweep collector, contexts, actions, frames, the scanner and
// evaluator, and the embedding API.
package core

// Kind identifies what a cell holds. Kind 0 is reserved for the END
// sentinel so that a zeroed kind byte terminates cell sequences.
//
// Kind bytes 64..255 encode shallowly quoted values: the byte is the
// base kind plus 64 per quote level (up to 3 levels). Deeper quoting
// uses KindQuoted with an escape payload.
type Kind uint8

const (
	KindEnd Kind = iota // array terminator, never a first-class value

	KindNull
	KindBlank
	KindLogic
	KindInteger
	KindDecimal
	KindMoney
	KindChar
	KindPair
	KindTime
	KindDate

	KindDatatype
	KindTypeset
	KindBitset
	KindMap
	KindHandle

	KindBinary
	KindText
	KindFile
	KindEmail
	KindURL
	KindTag
	KindIssue

	KindWord
	KindSetWord
	KindGetWord
	KindLitWord

	KindPath
	KindSetPath
	KindGetPath

	KindGroup
	KindBlock

	KindAction
	KindFrame
	KindObject
	KindModule
	KindError
	KindPort
	KindVarargs

	KindQuoted // deep-quote escape (level > 3)
	KindCustom

	KindMax
)

// quoteShift is the kind-byte bias per shallow quote level.
const quoteShift = 64

var kindNames = [KindMax]string{
	KindEnd:      "end!",
	KindNull:     "null!",
	KindBlank:    "blank!",
	KindLogic:    "logic!",
	KindInteger:  "integer!",
	KindDecimal:  "decimal!",
	KindMoney:    "money!",
	KindChar:     "char!",
	KindPair:     "pair!",
	KindTime:     "time!",
	KindDate:     "date!",
	KindDatatype: "datatype!",
	KindTypeset:  "typeset!",
	KindBitset:   "bitset!",
	KindMap:      "map!",
	KindHandle:   "handle!",
	KindBinary:   "binary!",
	KindText:     "text!",
	KindFile:     "file!",
	KindEmail:    "email!",
	KindURL:      "url!",
	KindTag:      "tag!",
	KindIssue:    "issue!",
	KindWord:     "word!",
	KindSetWord:  "set-word!",
	KindGetWord:  "get-word!",
	KindLitWord:  "lit-word!",
	KindPath:     "path!",
	KindSetPath:  "set-path!",
	KindGetPath:  "get-path!",
	KindGroup:    "group!",
	KindBlock:    "block!",
	KindAction:   "action!",
	KindFrame:    "frame!",
	KindObject:   "object!",
	KindModule:   "module!",
	KindError:    "error!",
	KindPort:     "port!",
	KindVarargs:  "varargs!",
	KindQuoted:   "quoted!",
	KindCustom:   "custom!",
}

// String returns the datatype name for the kind.
func (k Kind) String() string {
	if k < KindMax {
		return kindNames[k]
	}
	return "quoted!"
}

// IsBindable reports whether cells of this kind carry a binding in
// their extra slot. Bindable kinds are the word and array families.
func (k Kind) IsBindable() bool {
	return k >= KindWord && k <= KindBlock
}

// IsWord reports whether the kind is one of the word flavors.
func (k Kind) IsWord() bool {
	return k >= KindWord && k <= KindLitWord
}

// IsArray reports whether cells of this kind point at an array of
// cells as their first payload slot.
func (k Kind) IsArray() bool {
	return (k >= KindPath && k <= KindBlock) || k == KindVarargs
}

// IsSeries reports whether cells of this kind point at any series
// (byte-form or array-form) as their first payload slot.
func (k Kind) IsSeries() bool {
	return (k >= KindBinary && k <= KindIssue) || k.IsArray()
}

// IsContext reports whether cells of this kind point at a varlist.
func (k Kind) IsContext() bool {
	return k == KindFrame || k == KindObject || k == KindModule ||
		k == KindError || k == KindPort
}

// IsTruthy reports conditional truth of the kind's values: null,
// blank, and false logic are falsey; everything else is truthy.
// (Logic needs the cell; see Cell.IsTruthy.)
func (k Kind) isAlwaysTruthy() bool {
	return k != KindNull && k != KindBlank && k != KindLogic
}
