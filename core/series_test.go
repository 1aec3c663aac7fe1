package core

import (
	"bytes"
	"testing"
)

func TestSeriesInlineToDynamicPromotion(t *testing.T) {
	in := NewInterp(Options{})

	// a capacity-1 array starts as an inline singular stub
	arr := in.MakeArray(1, 0)
	if arr.IsDynamic() {
		t.Fatal("capacity-1 array should start inline")
	}
	if !arr.GetFlag(seriesFlagIsSingular) {
		t.Error("inline array missing singular flag")
	}

	var c Cell
	c.InitInteger(1)
	in.appendCell(arr, &c)
	if arr.IsDynamic() {
		t.Error("one element still fits inline")
	}

	c.InitInteger(2)
	in.appendCell(arr, &c)
	if !arr.IsDynamic() {
		t.Fatal("second element should promote to dynamic")
	}
	if arr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", arr.Len())
	}
	if arr.At(0).Int64() != 1 || arr.At(1).Int64() != 2 {
		t.Error("promotion lost inline content")
	}
	if !arr.At(arr.Len()).IsEnd() {
		t.Error("dynamic array missing END terminator")
	}
	in.CheckMemory()
}

func TestSeriesByteGrowth(t *testing.T) {
	in := NewInterp(Options{})

	s := in.MakeSeries(4, 1, 0)
	if s.IsDynamic() {
		t.Fatal("four bytes should start inline")
	}

	in.appendBytes(s, []byte("hello"))
	if got := string(s.Bytes()); got != "hello" {
		t.Errorf("Bytes = %q, want hello", got)
	}

	// push past the inline capacity
	big := bytes.Repeat([]byte("x"), smallSize)
	in.appendBytes(s, big)
	if !s.IsDynamic() {
		t.Fatal("overflowing the small buffer should promote to dynamic")
	}
	want := "hello" + string(big)
	if got := string(s.Bytes()); got != want {
		t.Errorf("promoted content = %q, want %q", got, want)
	}
	in.CheckMemory()
}

func TestSeriesHeadInsertUsesBias(t *testing.T) {
	in := NewInterp(Options{})

	arr := in.MakeArray(8, 0)
	var c Cell
	for i := 1; i <= 3; i++ {
		c.InitInteger(int64(i))
		in.appendCell(arr, &c)
	}

	// remove from the head by sliding the bias forward
	arr.bias++
	arr.used--
	if arr.Bias() != 1 || arr.Len() != 2 {
		t.Fatalf("bias/len = %d/%d, want 1/2", arr.Bias(), arr.Len())
	}

	// a head insertion is then served from the bias without copying
	base := &arr.cells[0]
	in.ExpandSeries(arr, 0, 1)
	if arr.Bias() != 0 {
		t.Errorf("bias after head insert = %d, want 0", arr.Bias())
	}
	if &arr.cells[0] != base {
		t.Error("head insertion within bias should not relocate")
	}
	arr.At(0).InitInteger(1)
	for i := 0; i < 3; i++ {
		if got := arr.At(i).Int64(); got != int64(i+1) {
			t.Errorf("At(%d) = %d, want %d", i, got, i+1)
		}
	}
}

func TestSeriesExpandRelocates(t *testing.T) {
	in := NewInterp(Options{})

	arr := in.MakeArray(2, 0)
	var c Cell
	for i := 0; i < 40; i++ {
		c.InitInteger(int64(i))
		in.appendCell(arr, &c)
	}
	if arr.Len() != 40 {
		t.Fatalf("Len = %d, want 40", arr.Len())
	}
	for i := 0; i < 40; i++ {
		if got := arr.At(i).Int64(); got != int64(i) {
			t.Fatalf("At(%d) = %d after relocation", i, got)
		}
	}
	if !arr.At(40).IsEnd() {
		t.Error("relocated array missing END terminator")
	}
	in.CheckMemory()
}

func TestSeriesMidInsert(t *testing.T) {
	in := NewInterp(Options{})

	s := in.MakeSeries(smallSize*2, 1, 0)
	in.appendBytes(s, []byte("abef"))
	in.ExpandSeries(s, 2, 2)
	copy(s.ByteAt(2), "cd")
	if got := string(s.Bytes()); got != "abcdef" {
		t.Errorf("mid insert = %q, want abcdef", got)
	}
}

func TestSeriesRemake(t *testing.T) {
	in := NewInterp(Options{})

	s := in.MakeSeries(smallSize*2, 1, 0)
	in.appendBytes(s, []byte("keepme-dropme"))

	in.RemakeSeries(s, 6, true)
	if got := string(s.Bytes()); got != "keepme" {
		t.Errorf("preserved remake = %q, want keepme", got)
	}

	in.RemakeSeries(s, 8, false)
	if s.Len() != 0 {
		t.Errorf("unpreserved remake Len = %d, want 0", s.Len())
	}
}

func TestSeriesFrozenRejectsMutation(t *testing.T) {
	in := NewInterp(Options{})

	s := in.MakeSeries(smallSize*2, 1, 0)
	in.appendBytes(s, []byte("ab"))
	s.SetFlag(seriesFlagFrozen)

	errCtx := in.RescueError(func() { in.ExpandSeries(s, 0, 1) })
	if errCtx == nil {
		t.Fatal("expanding a frozen series should fail")
	}
	if got := in.ErrorIDOf(errCtx); got != "locked-series" {
		t.Errorf("error id = %q, want locked-series", got)
	}
}

func TestSeriesDecayBecomesInaccessible(t *testing.T) {
	in := NewInterp(Options{})

	s := in.MakeSeries(smallSize*2, 1, 0)
	in.appendBytes(s, []byte("gone"))
	in.DecaySeries(s)

	if !s.GetFlag(seriesFlagInaccessible) {
		t.Error("decayed series should be inaccessible")
	}
	errCtx := in.RescueError(func() { in.ensureReadable(s) })
	if errCtx == nil || in.ErrorIDOf(errCtx) != "series-freed" {
		t.Error("reading a decayed series should fail with series-freed")
	}
}

func TestSeriesSwapContent(t *testing.T) {
	in := NewInterp(Options{})

	a := in.MakeSeries(smallSize*2, 1, 0)
	b := in.MakeSeries(smallSize*2, 1, 0)
	in.appendBytes(a, []byte("aaaa"))
	in.appendBytes(b, []byte("bb"))

	in.SwapContent(a, b)
	if got := string(a.Bytes()); got != "bb" {
		t.Errorf("a after swap = %q, want bb", got)
	}
	if got := string(b.Bytes()); got != "aaaa" {
		t.Errorf("b after swap = %q, want aaaa", got)
	}
}

func TestSeriesSwapContentRejectsMismatch(t *testing.T) {
	in := NewInterp(Options{})

	// differing unit widths would misinterpret each other's buffers
	a := in.MakeSeries(smallSize*2, 1, 0)
	b := in.MakeSeries(8, 4, 0)
	errCtx := in.RescueError(func() { in.SwapContent(a, b) })
	if errCtx == nil || in.ErrorIDOf(errCtx) != "invalid-arg" {
		t.Error("swapping series of different widths should fail with invalid-arg")
	}

	// arrays and byte series never trade buffers
	c := in.MakeSeries(smallSize*2, 1, 0)
	d := in.MakeArray(4, 0)
	errCtx = in.RescueError(func() { in.SwapContent(c, d) })
	if errCtx == nil || in.ErrorIDOf(errCtx) != "invalid-arg" {
		t.Error("swapping a byte series with an array should fail with invalid-arg")
	}
}
