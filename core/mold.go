package core

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Mold: render cells back to loadable source text
// ---------------------------------------------------------------------------

// MoldCell renders a cell in loadable form ("molded"): strings get
// their quotes, blocks their brackets. The shared mold buffer is used
// as scratch space and rewound on exit, so molds may nest.
func (in *Interp) MoldCell(c *Cell) string {
	return in.moldOrForm(c, true)
}

// FormCell renders a cell in human form: strings without delimiters,
// blocks as space-joined elements.
func (in *Interp) FormCell(c *Cell) string {
	return in.moldOrForm(c, false)
}

func (in *Interp) moldOrForm(c *Cell, molded bool) string {
	base := in.moldBuf.Len()
	stackBase := len(in.moldStack)
	in.moldValue(c, molded)
	out := string(in.moldBuf.Bytes()[base:])
	in.moldBuf.SetLen(base)
	in.moldStack = in.moldStack[:stackBase]
	return out
}

func (in *Interp) emit(s string) {
	in.appendBytes(in.moldBuf, []byte(s))
}

// moldSeen pushes s on the mold stack, or reports a cycle.
func (in *Interp) moldSeen(s *Series) bool {
	for _, p := range in.moldStack {
		if p == s {
			return true
		}
	}
	in.moldStack = append(in.moldStack, s)
	return false
}

func (in *Interp) moldDone() {
	in.moldStack = in.moldStack[:len(in.moldStack)-1]
}

func (in *Interp) moldValue(c *Cell, molded bool) {
	for n := c.NumQuotes(); n > 0; n-- {
		in.emit("'")
	}
	plain := *c.Unescaped()
	if plain.KindByte() >= quoteShift {
		plain.resetByte(plain.KindByte()%quoteShift, plain.header&cellMaskCopyFlags)
	}
	u := &plain

	switch u.Kind() {
	case KindEnd:
		in.emit("~end~")
	case KindNull:
		in.emit("null")
	case KindBlank:
		in.emit("_")
	case KindLogic:
		if u.Logic() {
			in.emit("#[true]")
		} else {
			in.emit("#[false]")
		}
	case KindInteger:
		in.emit(strconv.FormatInt(u.Int64(), 10))
	case KindDecimal:
		in.emit(moldDecimal(u.Float64()))
	case KindChar:
		in.emit(moldChar(u.Char(), molded))
	case KindDatatype:
		in.emit(u.DatatypeKind().String())
	case KindText:
		in.moldText(u, molded)
	case KindFile:
		in.emit("%" + CellText(u))
	case KindEmail, KindURL:
		in.emit(CellText(u))
	case KindTag:
		in.emit("<" + CellText(u) + ">")
	case KindIssue:
		in.emit("#" + CellText(u))
	case KindBinary:
		in.emit("#{" + strings.ToUpper(hex.EncodeToString(CellBytes(u))) + "}")
	case KindWord:
		in.emit(Spelling(u.WordSymbol()))
	case KindSetWord:
		in.emit(Spelling(u.WordSymbol()) + ":")
	case KindGetWord:
		in.emit(":" + Spelling(u.WordSymbol()))
	case KindLitWord:
		in.emit("'" + Spelling(u.WordSymbol()))
	case KindBlock:
		in.moldArray(u, molded, "[", "]")
	case KindGroup:
		in.moldArray(u, molded, "(", ")")
	case KindPath:
		in.moldPath(u, "")
	case KindSetPath:
		in.moldPath(u, ":")
	case KindGetPath:
		in.emit(":")
		in.moldPath(u, "")
	case KindAction:
		in.moldAction(u)
	case KindObject, KindModule, KindFrame, KindPort:
		in.moldContext(u, molded)
	case KindError:
		in.emit(in.MoldError(u.ContextVarlist()))
	case KindHandle:
		in.emit("#[handle!]")
	case KindTypeset:
		in.emit("#[typeset!]")
	default:
		in.emit("#[" + u.HeartKind().String() + "]")
	}
}

func moldDecimal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") &&
		!strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}

func moldChar(r rune, molded bool) string {
	if !molded {
		return string(r)
	}
	switch r {
	case '\n':
		return `#"^/"`
	case '\t':
		return `#"^-"`
	case '"':
		return `#"^""`
	case '^':
		return `#"^^"`
	}
	return `#"` + string(r) + `"`
}

func (in *Interp) moldText(c *Cell, molded bool) {
	text := CellText(c)
	if !molded {
		in.emit(text)
		return
	}
	in.emit(`"`)
	for _, r := range text {
		switch r {
		case '"':
			in.emit(`^"`)
		case '^':
			in.emit("^^")
		case '\n':
			in.emit("^/")
		case '\t':
			in.emit("^-")
		default:
			in.appendRune(in.moldBuf, r)
		}
	}
	in.emit(`"`)
}

func (in *Interp) moldArray(c *Cell, molded bool, open, close string) {
	s := c.SeriesNode()
	if in.moldSeen(s) {
		in.emit(open + "..." + close)
		return
	}
	defer in.moldDone()

	if molded {
		in.emit(open)
	}
	in.ensureReadable(s)
	for i := c.Index(); i < s.Len(); i++ {
		item := s.At(i)
		if i > c.Index() {
			if molded && item.GetFlag(cellFlagNewlineBefore) {
				in.emit("\n")
			} else {
				in.emit(" ")
			}
		}
		in.moldValue(item, molded)
	}
	if molded {
		in.emit(close)
	}
}

func (in *Interp) moldPath(c *Cell, suffix string) {
	s := c.SeriesNode()
	if in.moldSeen(s) {
		in.emit(".../...")
		return
	}
	defer in.moldDone()
	for i := c.Index(); i < s.Len(); i++ {
		if i > c.Index() {
			in.emit("/")
		}
		in.moldValue(s.At(i), true)
	}
	in.emit(suffix)
}

func (in *Interp) moldAction(c *Cell) {
	paramlist := c.ActionParamlist()
	in.emit("#[action! [")
	n := NumParams(paramlist)
	for i := 1; i <= n; i++ {
		if i > 1 {
			in.emit(" ")
		}
		in.emit(Spelling(ActionParam(paramlist, i).KeySymbol()))
	}
	in.emit("]]")
}

func (in *Interp) moldContext(c *Cell, molded bool) {
	varlist := c.ContextVarlist()
	if in.moldSeen(varlist) {
		in.emit("make object! [...]")
		return
	}
	defer in.moldDone()
	in.emit("make " + c.HeartKind().String() + " [")
	n := CtxLen(varlist)
	for i := 1; i <= n; i++ {
		if i > 1 {
			in.emit(" ")
		}
		in.emit(Spelling(CtxKey(varlist, i).KeySymbol()) + ": ")
		in.moldValue(CtxVar(varlist, i), molded)
	}
	in.emit("]")
}

// MoldError renders an error context the way the console reports it:
//
//	** Script Error: my-word is not a valid argument
//	** Where: foo bar
//	** Near: [foo 1 + 2]
func (in *Interp) MoldError(err *Series) string {
	var b strings.Builder
	b.WriteString("** ")
	b.WriteString(in.ErrorCategoryOf(err))
	b.WriteString(" Error: ")
	b.WriteString(in.ErrorMessage(err))

	if where := in.errorField(err, "where"); where != nil &&
		where.Kind() == KindBlock && where.SeriesNode().Len() > 0 {
		b.WriteString("\n** Where: ")
		b.WriteString(in.FormCell(where))
	}
	if near := in.errorField(err, "near"); near != nil &&
		near.Kind() == KindBlock {
		b.WriteString("\n** Near: ")
		b.WriteString(in.MoldCell(near))
	}
	return b.String()
}
