package core

import "strings"

// ---------------------------------------------------------------------------
// Error contexts
// ---------------------------------------------------------------------------

// ErrCategory names an error family; with an id it selects a message
// template from the catalog.
type ErrCategory string

const (
	ErrSyntax   ErrCategory = "Syntax"
	ErrScript   ErrCategory = "Script"
	ErrMath     ErrCategory = "Math"
	ErrAccess   ErrCategory = "Access"
	ErrSeries   ErrCategory = "Series"
	ErrUser     ErrCategory = "User"
	ErrInternal ErrCategory = "Internal"
)

// initErrorCatalog loads the (type, id) -> template table. Templates
// substitute :arg1 :arg2 :arg3 with the arguments: texts and words are
// formed (no quotes), composite values are molded.
func (in *Interp) initErrorCatalog() {
	in.errorCatalog = map[string]map[string]string{
		string(ErrSyntax): {
			"scan-invalid": "invalid token :arg1 (line :arg2)",
			"scan-missing": "missing :arg1 (line :arg2)",
			"scan-extra":   "unexpected :arg1 (line :arg2)",
		},
		string(ErrScript): {
			"no-value":     ":arg1 has no value",
			"not-bound":    ":arg1 word is not bound to a context",
			"not-done":     "reserved for future use (or not yet implemented)",
			"invalid-arg":  ":arg1 is not a valid argument",
			"expect-arg":   ":arg1 expects :arg3 for its :arg2 argument",
			"bad-value":    "bad value :arg1",
			"protected":    "protected value or series - cannot modify :arg1",
			"bad-path":     "cannot follow path :arg1",
			"uncaught":     "no catch for throw of :arg1",
			"bad-refine":   "incompatible or duplicate refinement: :arg1",
			"needs":        "script needs :arg1",
		},
		string(ErrMath): {
			"zero-divide": "attempt to divide by zero",
			"overflow":    "math or number overflow",
			"positive":    "positive number required",
		},
		string(ErrSeries): {
			"locked-series": "series is source or permanently locked, can't modify",
			"series-freed":  "series data freed while still in use",
			"out-of-range":  "value out of range: :arg1",
			"past-end":      "out of range or past end",
		},
		string(ErrAccess): {
			"cannot-open": "cannot open :arg1",
			"bad-handle":  "invalid or released handle",
		},
		string(ErrUser): {
			"message": ":arg1",
		},
		string(ErrInternal): {
			"stack-overflow": "stack overflow",
			"no-memory":      "not enough memory: :arg1 bytes",
			"halted":         "halted by user or script",
			"bad-internal":   "internal invariant violated: :arg1",
		},
	}

	// errors that must exist without allocating at raise time
	in.stackOverflowError = in.buildError(ErrInternal, "stack-overflow", nil)
	in.haltError = in.buildError(ErrInternal, "halted", nil)
}

// buildError makes an error context with the standard field shape:
// {code type id message arg1 arg2 arg3 near where file line}.
func (in *Interp) buildError(cat ErrCategory, id string, args []*Cell) *Series {
	tmpl := "unknown error"
	if m, ok := in.errorCatalog[string(cat)]; ok {
		if t, ok := m[id]; ok {
			tmpl = t
		}
	}

	msg := tmpl
	for i := 0; i < 3; i++ {
		tag := [...]string{":arg1", ":arg2", ":arg3"}[i]
		if !strings.Contains(msg, tag) {
			continue
		}
		repl := "~"
		if i < len(args) && args[i] != nil {
			a := args[i]
			if a.Kind() == KindText || a.Kind().IsWord() {
				repl = in.FormCell(a)
			} else {
				repl = in.MoldCell(a)
			}
		}
		msg = strings.ReplaceAll(msg, tag, repl)
	}

	err := in.MakeContext(KindError, 11)
	set := func(name string, fill func(*Cell)) {
		fill(in.AppendContextVar(err, in.Intern(name)))
	}
	set("code", func(c *Cell) { c.InitInteger(0) })
	set("err-type", func(c *Cell) { c.InitWord(KindWord, in.Intern(string(cat))) })
	set("id", func(c *Cell) { c.InitWord(KindWord, in.Intern(id)) })
	set("message", func(c *Cell) { in.InitText(c, msg) })
	for i, name := range []string{"arg1", "arg2", "arg3"} {
		i := i
		set(name, func(c *Cell) {
			if i < len(args) && args[i] != nil {
				c.Move(args[i])
			} else {
				c.InitNull()
			}
		})
	}
	set("near", func(c *Cell) { c.InitNull() })
	set("where", func(c *Cell) { in.fillWhere(c) })
	set("file", func(c *Cell) { c.InitNull() })
	set("line", func(c *Cell) { c.InitNull() })
	return err
}

// fillWhere records the labels of the live frame stack, innermost
// first, as a block of words.
func (in *Interp) fillWhere(c *Cell) {
	base := in.dsDepth()
	for f := in.topFrame; f != nil; f = f.prior {
		if f.label == nil {
			continue
		}
		var w Cell
		w.InitWord(KindWord, f.label)
		in.dsPush(&w)
	}
	block := in.dsPopToArray(base, nodeFlagManaged)
	c.InitSeries(KindBlock, block, 0)
}

// errorField fetches a named field of an error context (nil if absent).
func (in *Interp) errorField(err *Series, name string) *Cell {
	idx := in.FindKey(err, in.Intern(name))
	if idx == 0 {
		return nil
	}
	return CtxVar(err, idx)
}

// ErrorMessage returns the rendered message text of an error context.
func (in *Interp) ErrorMessage(err *Series) string {
	msg := in.errorField(err, "message")
	if msg == nil || msg.Kind() != KindText {
		return ""
	}
	return string(msg.SeriesNode().Bytes())
}

// ErrorCategoryOf returns the error's type word spelling.
func (in *Interp) ErrorCategoryOf(err *Series) string {
	t := in.errorField(err, "err-type")
	if t == nil || !t.Kind().IsWord() {
		return string(ErrInternal)
	}
	return Spelling(t.WordSymbol())
}

// ErrorIDOf returns the error's id word spelling.
func (in *Interp) ErrorIDOf(err *Series) string {
	t := in.errorField(err, "id")
	if t == nil || !t.Kind().IsWord() {
		return ""
	}
	return Spelling(t.WordSymbol())
}

// MakeUserError builds an error whose message is the given text.
func (in *Interp) MakeUserError(message string) *Series {
	var arg Cell
	in.InitText(&arg, message)
	in.GuardCell(&arg)
	err := in.buildError(ErrUser, "message", []*Cell{&arg})
	in.DropGuard()
	return err
}
