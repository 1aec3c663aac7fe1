package core

import (
	"strings"
	"testing"
)

// scanMold scans source and molds the resulting block.
func scanMold(t *testing.T, in *Interp, src string) string {
	t.Helper()
	var molded string
	errCtx := in.RescueError(func() {
		blk := in.Scan(src)
		var c Cell
		c.InitSeries(KindBlock, blk, 0)
		molded = in.MoldCell(&c)
	})
	if errCtx != nil {
		t.Fatalf("Scan(%q) failed: %s", src, in.MoldError(errCtx))
	}
	return molded
}

func TestScanRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		// numbers
		{"1 2 3", "[1 2 3]"},
		{"-5 +7", "[-5 7]"},
		{"1.5 -0.25", "[1.5 -0.25]"},
		{"1'000'000", "[1000000]"},
		{"9223372036854775807", "[9223372036854775807]"},

		// words
		{"foo bar-baz set? <= >=", "[foo bar-baz set? <= >=]"},
		{"x: :y 'z", "[x: :y 'z]"},
		{"1 / 2", "[1 / 2]"}, // a lone slash is the division word
		{"/ //", "[/ //]"},

		// strings and chars
		{`"hello"`, `["hello"]`},
		{`"a^/b"`, `["a^/b"]`},
		{"{braced}", `["braced"]`},
		{`#"a" #"^/"`, `[#"a" #"^/"]`},

		// binary, issue, file, tag
		{"#{DEADBEEF}", "[#{DEADBEEF}]"},
		{"#{}", "[#{}]"},
		{"#issue", "[#issue]"},
		{"%some/file.r", "[%some/file.r]"},
		{"<div>", "[<div>]"},

		// arrays
		{"[1 [2] 3]", "[[1 [2] 3]]"},
		{"(a b)", "[(a b)]"},
		{"[]", "[[]]"},

		// paths
		{"a/b/c", "[a/b/c]"},
		{"a/b: 1", "[a/b: 1]"},
		{":a/b", "[:a/b]"},
		{"a/2", "[a/2]"},
		{"a/(b)", "[a/(b)]"},

		// comments vanish
		{"1 ; a comment\n2", "[1\n2]"},

		// blank and construction syntax
		{"_", "[_]"},
		{"#[true] #[false]", "[#[true] #[false]]"},
	}

	for _, tt := range tests {
		in := NewInterp(Options{})
		if got := scanMold(t, in, tt.src); got != tt.want {
			t.Errorf("scan(%q) molds %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestScanNewlineMarkers(t *testing.T) {
	in := NewInterp(Options{})
	blk := in.Scan("a\nb c")
	if blk.Len() != 3 {
		t.Fatalf("Scan length = %d, want 3", blk.Len())
	}
	if blk.At(0).HasNewlineBefore() {
		t.Error("first value should not carry a newline marker")
	}
	if !blk.At(1).HasNewlineBefore() {
		t.Error("value after line break should carry a newline marker")
	}
	if blk.At(2).HasNewlineBefore() {
		t.Error("same-line value should not carry a newline marker")
	}
}

func TestScanErrors(t *testing.T) {
	tests := []string{
		"[1 2",     // unterminated block
		`"open`,    // unterminated string
		"1 2 ]",    // stray close
		"#{GG}",    // bad hex
		"(a b c",   // unterminated group
		"#[maybe]", // unknown construction
	}
	for _, src := range tests {
		in := NewInterp(Options{})
		errCtx := in.RescueError(func() { in.Scan(src) })
		if errCtx == nil {
			t.Errorf("Scan(%q) should fail", src)
			continue
		}
		if got := in.ErrorCategoryOf(errCtx); got != "Syntax" {
			t.Errorf("Scan(%q) error category = %q, want Syntax", src, got)
		}
	}
}

func TestScanLineNumbers(t *testing.T) {
	in := NewInterp(Options{})
	errCtx := in.RescueError(func() { in.Scan("ok\nok\n[broken") })
	if errCtx == nil {
		t.Fatal("expected scan failure")
	}
	if msg := in.ErrorMessage(errCtx); !strings.Contains(msg, "3") {
		t.Errorf("scan error message %q should name line 3", msg)
	}
}
