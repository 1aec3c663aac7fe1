package dist

import (
	"testing"

	"github.com/rendlang/rend/core"
)

// roundTrip scans src, marshals the block, rebuilds it, and molds both.
func roundTrip(t *testing.T, src string) (string, string) {
	t.Helper()
	in := core.NewInterp(core.Options{})

	block := in.Scan(src)
	in.GuardSeries(block)
	defer in.DropGuard()

	var before core.Cell
	before.InitSeries(core.KindBlock, block, 0)
	orig := in.MoldCell(&before)

	wire, err := MarshalBlock(block)
	if err != nil {
		t.Fatalf("MarshalBlock(%q): %v", src, err)
	}
	rebuilt, err := UnmarshalBlock(in, wire)
	if err != nil {
		t.Fatalf("UnmarshalBlock(%q): %v", src, err)
	}

	var after core.Cell
	after.InitSeries(core.KindBlock, rebuilt, 0)
	return orig, in.MoldCell(&after)
}

func TestWireRoundTrip(t *testing.T) {
	tests := []string{
		"1 2 3",
		"1.5 -0.25",
		"foo bar: :baz 'qux",
		`"text with ^/ escapes" #"x"`,
		"#{DEADBEEF} #issue %some/file.r <tag>",
		"[nested [deeper 1] ()] (a b)",
		"a/b/c a/2",
		"_ #[true] #[false]",
		"''double-quoted '''[deep]",
		"first-line\nsecond-line same-line",
	}
	for _, src := range tests {
		before, after := roundTrip(t, src)
		if before != after {
			t.Errorf("round trip of %q: %q != %q", src, after, before)
		}
	}
}

func TestWireCanonicalBytes(t *testing.T) {
	in := core.NewInterp(core.Options{})

	block := in.Scan("a [b 1] 2.5")
	in.GuardSeries(block)
	defer in.DropGuard()

	first, err := MarshalBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("canonical encoding should be byte-stable")
	}
}

func TestWireVersionRejected(t *testing.T) {
	in := core.NewInterp(core.Options{})

	wire, err := cborEncMode.Marshal(&WireBlock{Version: WireVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalBlock(in, wire); err == nil {
		t.Error("a future wire version should be rejected")
	}
}

func TestWireGarbageRejected(t *testing.T) {
	in := core.NewInterp(core.Options{})
	if _, err := UnmarshalBlock(in, []byte("not cbor at all")); err == nil {
		t.Error("garbage bytes should not decode")
	}
}

func TestWireNewlineMarkersSurvive(t *testing.T) {
	in := core.NewInterp(core.Options{})

	block := in.Scan("a\nb")
	in.GuardSeries(block)
	defer in.DropGuard()

	wire, err := MarshalBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := UnmarshalBlock(in, wire)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.At(0).HasNewlineBefore() {
		t.Error("first value gained a newline marker")
	}
	if !rebuilt.At(1).HasNewlineBefore() {
		t.Error("newline marker lost in transit")
	}
}

func TestWireDecodedBlockEvaluates(t *testing.T) {
	in := core.NewInterp(core.Options{})

	block := in.Scan("x: 3 x * 14")
	in.GuardSeries(block)
	defer in.DropGuard()

	wire, err := MarshalBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := UnmarshalBlock(in, wire)
	if err != nil {
		t.Fatal(err)
	}

	h := in.Eval(rebuilt)
	if h == nil || h.Int64() != 42 {
		t.Fatalf("decoded block evaluates to %v, want 42", h)
	}
	in.Release(h)
}
