package core

import "testing"

func TestCellImmediates(t *testing.T) {
	var c Cell

	c.InitInteger(-42)
	if c.Kind() != KindInteger || c.Int64() != -42 {
		t.Errorf("integer cell = %s %d", c.Kind(), c.Int64())
	}

	c.InitDecimal(1.25)
	if c.Kind() != KindDecimal || c.Float64() != 1.25 {
		t.Errorf("decimal cell = %s %g", c.Kind(), c.Float64())
	}

	c.InitLogic(true)
	if c.Kind() != KindLogic || !c.Logic() {
		t.Errorf("logic cell = %s %v", c.Kind(), c.Logic())
	}

	c.InitChar('λ')
	if c.Kind() != KindChar || c.Char() != 'λ' {
		t.Errorf("char cell = %s %c", c.Kind(), c.Char())
	}

	c.InitDatatype(KindBlock)
	if c.Kind() != KindDatatype || c.DatatypeKind() != KindBlock {
		t.Errorf("datatype cell = %s %s", c.Kind(), c.DatatypeKind())
	}

	c.InitNull()
	if !c.IsNulled() {
		t.Error("null cell not nulled")
	}

	c.InitEnd()
	if !c.IsEnd() {
		t.Error("end cell not end")
	}
}

func TestCellTruthiness(t *testing.T) {
	var c Cell

	c.InitNull()
	if c.IsTruthy() {
		t.Error("null should be falsey")
	}
	c.InitBlank()
	if c.IsTruthy() {
		t.Error("blank should be falsey")
	}
	c.InitLogic(false)
	if c.IsTruthy() {
		t.Error("false should be falsey")
	}
	c.InitInteger(0)
	if !c.IsTruthy() {
		t.Error("zero integer should be truthy")
	}
	c.InitLogic(true)
	if !c.IsTruthy() {
		t.Error("true should be truthy")
	}
}

func TestCellMovePreservesPersistBits(t *testing.T) {
	var src, dst Cell
	src.InitInteger(7)
	src.SetFlag(cellFlagNewlineBefore)
	src.SetFlag(cellFlagUnevaluated)

	dst.InitBlank()
	dst.SetFlag(nodeFlagManaged | nodeFlagRoot)
	dst.Move(&src)

	if dst.Int64() != 7 {
		t.Errorf("moved payload = %d, want 7", dst.Int64())
	}
	if !dst.GetFlag(nodeFlagManaged) || !dst.GetFlag(nodeFlagRoot) {
		t.Error("destination lifetime bits did not survive the move")
	}
	if !dst.HasNewlineBefore() {
		t.Error("newline flag should travel with the value")
	}
	if dst.GetFlag(cellFlagUnevaluated) {
		t.Error("evaluation-state flag should not travel")
	}
}

func TestCellMoveIntoProtectedPanics(t *testing.T) {
	var src, dst Cell
	src.InitInteger(1)
	dst.InitBlank()
	dst.SetFlag(cellFlagProtected)

	defer func() {
		if recover() == nil {
			t.Error("move into a protected cell should panic")
		}
	}()
	dst.Move(&src)
}

func TestCellQuotifyBias(t *testing.T) {
	in := NewInterp(Options{})

	var c Cell
	c.InitInteger(5)
	in.Quotify(&c, 1)

	if c.Kind() != KindQuoted {
		t.Errorf("quoted Kind = %s, want quoted!", c.Kind())
	}
	if c.HeartKind() != KindInteger {
		t.Errorf("quoted HeartKind = %s, want integer!", c.HeartKind())
	}
	if c.NumQuotes() != 1 {
		t.Errorf("NumQuotes = %d, want 1", c.NumQuotes())
	}

	in.Quotify(&c, 2)
	if c.NumQuotes() != 3 {
		t.Errorf("NumQuotes = %d, want 3", c.NumQuotes())
	}
	// at three levels the kind byte is still biased in place
	if c.Unescaped() != &c {
		t.Error("three quote levels should not escape to a pairing")
	}

	c.Unquotify(3)
	if c.Kind() != KindInteger || c.Int64() != 5 {
		t.Errorf("unquotified cell = %s, want integer 5", c.Kind())
	}
}

func TestCellQuotifyDeepEscape(t *testing.T) {
	in := NewInterp(Options{})

	var c Cell
	c.InitInteger(9)
	in.Quotify(&c, 5)

	if c.NumQuotes() != 5 {
		t.Errorf("NumQuotes = %d, want 5", c.NumQuotes())
	}
	if c.HeartKind() != KindInteger {
		t.Errorf("HeartKind = %s, want integer!", c.HeartKind())
	}
	if c.Unescaped() == &c {
		t.Error("five quote levels should escape to a pairing cell")
	}

	// dropping to two levels re-inlines the value with bias
	c.Unquotify(3)
	if c.NumQuotes() != 2 {
		t.Errorf("NumQuotes after Unquotify = %d, want 2", c.NumQuotes())
	}
	if c.Unescaped() != &c {
		t.Error("two quote levels should be inline bias again")
	}
	c.Unquotify(2)
	if c.Int64() != 9 {
		t.Errorf("payload = %d, want 9", c.Int64())
	}
}

func TestCellDequoted(t *testing.T) {
	in := NewInterp(Options{})

	var c Cell
	c.InitInteger(3)
	in.Quotify(&c, 2)

	u := c.Dequoted()
	if u.Kind() != KindInteger || u.Int64() != 3 {
		t.Errorf("Dequoted = %s, want integer 3", u.Kind())
	}
	if c.NumQuotes() != 2 {
		t.Error("Dequoted must not modify the original")
	}
}

func TestCellSeriesAccessors(t *testing.T) {
	in := NewInterp(Options{})
	s := in.MakeArray(4, 0)

	var c Cell
	c.InitSeries(KindBlock, s, 2)
	if c.SeriesNode() != s {
		t.Error("SeriesNode mismatch")
	}
	if c.Index() != 2 {
		t.Errorf("Index = %d, want 2", c.Index())
	}
	c.SetIndex(0)
	if c.Index() != 0 {
		t.Errorf("Index after SetIndex = %d, want 0", c.Index())
	}
}
