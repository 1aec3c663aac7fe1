package core

// ---------------------------------------------------------------------------
// Actions: paramlist + details
// ---------------------------------------------------------------------------

// An action is an array of cells (the paramlist) whose slot 0 is the
// action's archetype and whose slots 1..N are typeset keys describing
// parameters. A sibling details array carries the body (or other
// dispatcher-specific data) in its cells; the dispatcher itself is an
// index into the interpreter's dispatch table, stored in the details'
// misc bits, and the details' link points back at the paramlist.

// Ret is a dispatcher's verdict about what landed in the frame's out
// cell.
type Ret uint8

const (
	RetOut       Ret = iota // out holds the result
	RetThrown               // out holds a throw label; arg is in flight
	RetNull                 // result is null (out may be stale)
	RetInvisible            // evaluation produced no value
)

// Dispatcher executes an action invocation against its frame.
type Dispatcher func(in *Interp, f *Frame) Ret

// ParamSpec describes one parameter of a native.
type ParamSpec struct {
	Name  string
	Class uint8  // paramClass* constant
	Types uint64 // typeset bits; 0 means any
}

// MakeAction builds a managed action from a parameter specification
// and dispatcher, plus an optional body array for the details.
func (in *Interp) MakeAction(params []ParamSpec, dispatcher Dispatcher, body *Series) *Series {
	paramlist := in.MakeArray(len(params)+1, nodeFlagManaged|seriesFlagIsParamlist)
	in.ExpandSeries(paramlist, 0, len(params)+1)

	details := in.MakeArray(1, nodeFlagManaged|seriesFlagIsDetails)
	in.ExpandSeries(details, 0, 1)
	if body != nil {
		details.At(0).InitSeries(KindBlock, body, 0)
	} else {
		details.At(0).InitBlank()
	}
	details.link = seriesBits(paramlist)
	details.SetFlag(seriesFlagLinkIsNode)
	details.misc = uint64(in.registerDispatcher(dispatcher))

	archetype := paramlist.At(0)
	archetype.Reset(KindAction, cellFlagFirstIsNode|cellFlagSecondIsNode)
	archetype.extra = 0
	archetype.first = seriesBits(paramlist)
	archetype.second = seriesBits(details)

	for i, p := range params {
		types := p.Types
		if types == 0 {
			types = tsAny
		}
		paramlist.At(i + 1).InitKey(in.Intern(p.Name), types, p.Class)
	}
	return paramlist
}

// registerDispatcher stores a Go function in the dispatch table and
// returns its index. Function values cannot live in node slots.
func (in *Interp) registerDispatcher(d Dispatcher) int {
	in.dispatchers = append(in.dispatchers, d)
	return len(in.dispatchers) - 1
}

// ActionParamlist returns the paramlist of an action cell.
func (c *Cell) ActionParamlist() *Series {
	if c.Kind() != KindAction {
		panic("action: ActionParamlist on " + c.Kind().String())
	}
	return seriesFromBits(c.first)
}

// ActionDetails returns the details of an action cell.
func (c *Cell) ActionDetails() *Series {
	if c.Kind() != KindAction {
		panic("action: ActionDetails on " + c.Kind().String())
	}
	return seriesFromBits(c.second)
}

// dispatcherOf fetches the Go function for an action's details.
func (in *Interp) dispatcherOf(details *Series) Dispatcher {
	return in.dispatchers[int(details.misc)]
}

// NumParams returns the parameter count of a paramlist.
func NumParams(paramlist *Series) int {
	return paramlist.Len() - 1
}

// ActionParam returns parameter key i (1-based) of a paramlist.
func ActionParam(paramlist *Series, i int) *Cell {
	return paramlist.At(i)
}

// InitAction formats a cell referencing an action.
func (c *Cell) InitAction(paramlist *Series) {
	archetype := paramlist.At(0)
	c.Move(archetype)
}

// ---------------------------------------------------------------------------
// Native registration
// ---------------------------------------------------------------------------

// AddNative builds an action and binds it to a word in the lib
// context. Enfix natives gather their first argument from the left.
func (in *Interp) AddNative(name string, params []ParamSpec, d Dispatcher, enfix bool) *Series {
	paramlist := in.MakeAction(params, d, nil)
	v := in.FindOrAppendVar(in.lib, in.Intern(name))
	v.InitAction(paramlist)
	if enfix {
		v.SetFlag(cellFlagEnfixed)
	}
	return paramlist
}
