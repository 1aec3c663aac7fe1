package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: UTF-8 source text to block
// ---------------------------------------------------------------------------

type scanner struct {
	in         *Interp
	src        []byte
	pos        int
	line       int
	sawNewline bool
}

// Scan turns source text into a managed block of values. Scan errors
// fail with a Syntax error carrying the offending text and line.
func (in *Interp) Scan(src string) *Series {
	return in.ScanSource([]byte(src))
}

// ScanSource scans raw UTF-8 bytes into a managed block.
func (in *Interp) ScanSource(src []byte) *Series {
	s := &scanner{in: in, src: src, line: 1}
	arr := s.scanArray(0)
	if s.pos < len(s.src) {
		s.fail("scan-extra", string(s.src[s.pos]))
	}
	return arr
}

func (s *scanner) fail(id string, what string) {
	var arg1, arg2 Cell
	s.in.InitText(&arg1, what)
	arg2.InitInteger(int64(s.line))
	s.in.FailArgs(ErrSyntax, id, &arg1, &arg2)
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) at(off int) byte {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}

func (s *scanner) skipBlank() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\r':
			s.pos++
		case '\n':
			s.line++
			s.sawNewline = true
			s.pos++
		case ';':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

// scanArray scans values until term (']' or ')', or 0 for end of
// input), pushing them through the data stack into a fresh block.
func (s *scanner) scanArray(term byte) *Series {
	base := s.in.dsDepth()
	for {
		s.skipBlank()
		if s.pos >= len(s.src) {
			if term != 0 {
				s.fail("scan-missing", string(term))
			}
			break
		}
		if term != 0 && s.peek() == term {
			s.pos++
			break
		}
		if s.peek() == ']' || s.peek() == ')' {
			s.fail("scan-extra", string(s.peek()))
		}

		newline := s.sawNewline
		s.sawNewline = false
		var v Cell
		s.scanValue(&v)
		if newline {
			v.SetFlag(cellFlagNewlineBefore)
		}
		s.in.dsPush(&v)
	}
	arr := s.in.dsPopToArray(base, nodeFlagManaged)
	if s.sawNewline {
		arr.SetFlag(seriesFlagNewlineAtTail)
	}
	return arr
}

// scanValue scans one value into out.
func (s *scanner) scanValue(out *Cell) {
	c := s.peek()
	switch {
	case c == '[':
		s.pos++
		out.InitSeries(KindBlock, s.scanArray(']'), 0)
	case c == '(':
		s.pos++
		out.InitSeries(KindGroup, s.scanArray(')'), 0)
	case c == '"':
		s.scanQuotedText(out)
	case c == '{':
		s.scanBracedText(out)
	case c == '#':
		s.scanHash(out)
	case c == '%':
		s.pos++
		s.in.InitFile(out, s.scanFileText())
	case c == '/':
		// a slash run is a word (/ and // are the division operators);
		// interior slashes are path notation and never reach here
		start := s.pos
		for s.peek() == '/' {
			s.pos++
		}
		sym := s.in.Intern(string(s.src[start:s.pos]))
		if s.peek() == ':' {
			s.pos++
			out.InitWord(KindSetWord, sym)
		} else {
			out.InitWord(KindWord, sym)
		}
	case c == '\'':
		s.scanQuote(out)
	case c == ':':
		s.pos++
		s.scanWordLike(out, KindGetWord)
	case c == '<' && s.looksLikeTag():
		s.scanTag(out)
	case c >= '0' && c <= '9':
		s.scanNumber(out)
	case (c == '+' || c == '-') && s.at(1) >= '0' && s.at(1) <= '9':
		s.scanNumber(out)
	case isWordChar(c) || c >= utf8.RuneSelf:
		s.scanWordLike(out, KindWord)
	default:
		s.fail("scan-invalid", string(c))
	}
	s.maybePath(out)
}

// looksLikeTag distinguishes <tag> from the comparison words < <= <>.
func (s *scanner) looksLikeTag() bool {
	n := s.at(1)
	return n != 0 && n != ' ' && n != '\t' && n != '\n' && n != '=' &&
		n != '<' && n != '>'
}

func (s *scanner) scanTag(out *Cell) {
	s.pos++ // <
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '>' {
		if s.src[s.pos] == '\n' {
			s.fail("scan-missing", ">")
		}
		s.pos++
	}
	if s.pos >= len(s.src) {
		s.fail("scan-missing", ">")
	}
	text := string(s.src[start:s.pos])
	s.pos++
	out.InitSeries(KindTag, s.in.MakeText(text), 0)
}

// scanQuote handles leading apostrophes: a run of n quotes lifts the
// following value n levels; a single quote on a plain word scans as a
// lit-word.
func (s *scanner) scanQuote(out *Cell) {
	n := 0
	for s.peek() == '\'' {
		n++
		s.pos++
	}
	s.skipBlank()
	if s.pos >= len(s.src) {
		s.fail("scan-missing", "value after '")
	}
	s.scanValue(out)
	if n == 1 && out.Kind() == KindWord {
		out.resetByte(uint8(KindLitWord), out.header&cellMaskCopyFlags)
		return
	}
	s.in.Quotify(out, n)
}

// wordStops are the characters that end a word.
const wordStops = " \t\r\n;()[]{}\"/:"

func isWordChar(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	return strings.IndexByte("+-*/=<>?!&_.~^|", c) >= 0
}

func (s *scanner) scanWordText() string {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c < utf8.RuneSelf && strings.IndexByte(wordStops, c) >= 0 {
			break
		}
		s.pos++
	}
	if s.pos == start {
		s.fail("scan-invalid", string(s.peek()))
	}
	return string(s.src[start:s.pos])
}

// fileStops are the characters that end a file. Unlike words, files
// may contain slashes and colons (%dir/name.r, %/c/path).
const fileStops = " \t\r\n;()[]{}\""

func (s *scanner) scanFileText() string {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c < utf8.RuneSelf && strings.IndexByte(fileStops, c) >= 0 {
			break
		}
		s.pos++
	}
	if s.pos == start {
		s.fail("scan-invalid", "%")
	}
	return string(s.src[start:s.pos])
}

// scanWordLike scans a word and resolves the set-word colon suffix.
// The slash is left for maybePath.
func (s *scanner) scanWordLike(out *Cell, kind Kind) {
	spelling := s.scanWordText()
	sym := s.in.Intern(spelling)
	if kind == KindWord && s.peek() == ':' {
		s.pos++
		out.InitWord(KindSetWord, sym)
		return
	}
	out.InitWord(kind, sym)
}

func (s *scanner) scanNumber(out *Cell) {
	start := s.pos
	if s.peek() == '+' || s.peek() == '-' {
		s.pos++
	}
	isDecimal := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c >= '0' && c <= '9':
			s.pos++
		case c == '.' && !isDecimal && s.at(1) >= '0' && s.at(1) <= '9':
			isDecimal = true
			s.pos++
		case (c == 'e' || c == 'E') && s.pos > start:
			isDecimal = true
			s.pos++
			if s.peek() == '+' || s.peek() == '-' {
				s.pos++
			}
		case c == '\'': // digit group separator
			s.pos++
		default:
			goto done
		}
	}
done:
	text := strings.ReplaceAll(string(s.src[start:s.pos]), "'", "")
	if isDecimal {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			s.fail("scan-invalid", text)
		}
		out.InitDecimal(f)
		return
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		s.fail("scan-invalid", text)
	}
	out.InitInteger(i)
}

// scanQuotedText scans "..." with caret escapes.
func (s *scanner) scanQuotedText(out *Cell) {
	s.pos++ // "
	ser := s.in.MakeText("")
	s.in.GuardSeries(ser)
	defer s.in.DropGuard()
	for {
		if s.pos >= len(s.src) || s.src[s.pos] == '\n' {
			s.fail("scan-missing", `"`)
		}
		c := s.src[s.pos]
		if c == '"' {
			s.pos++
			break
		}
		if c == '^' {
			s.pos++
			s.scanEscape(ser)
			continue
		}
		s.in.appendByte(ser, c)
		s.pos++
	}
	out.InitSeries(KindText, ser, 0)
}

// scanBracedText scans {...} with nesting; newlines are literal.
func (s *scanner) scanBracedText(out *Cell) {
	s.pos++ // {
	depth := 1
	ser := s.in.MakeText("")
	s.in.GuardSeries(ser)
	defer s.in.DropGuard()
	for {
		if s.pos >= len(s.src) {
			s.fail("scan-missing", "}")
		}
		c := s.src[s.pos]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s.pos++
				out.InitSeries(KindText, ser, 0)
				return
			}
		case '\n':
			s.line++
		case '^':
			s.pos++
			s.scanEscape(ser)
			continue
		}
		s.in.appendByte(ser, c)
		s.pos++
	}
}

func (s *scanner) scanEscape(ser *Series) {
	if s.pos >= len(s.src) {
		s.fail("scan-missing", "escape")
	}
	c := s.src[s.pos]
	s.pos++
	switch c {
	case '/':
		s.in.appendByte(ser, '\n')
	case '-':
		s.in.appendByte(ser, '\t')
	case '^':
		s.in.appendByte(ser, '^')
	case '"':
		s.in.appendByte(ser, '"')
	case '(':
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] != ')' {
			s.pos++
		}
		if s.pos >= len(s.src) {
			s.fail("scan-missing", ")")
		}
		code, err := strconv.ParseUint(string(s.src[start:s.pos]), 16, 32)
		if err != nil {
			s.fail("scan-invalid", string(s.src[start:s.pos]))
		}
		s.pos++
		s.in.appendRune(ser, rune(code))
	default:
		s.fail("scan-invalid", "^"+string(c))
	}
}

// scanHash dispatches the # forms: #{binary}, #"char", #[construction],
// #issue.
func (s *scanner) scanHash(out *Cell) {
	s.pos++ // #
	switch s.peek() {
	case '[':
		s.pos++
		arr := s.scanArray(']')
		if arr.Len() == 1 && arr.At(0).Kind() == KindWord {
			switch Spelling(CanonOf(arr.At(0).WordSymbol())) {
			case "true":
				out.InitLogic(true)
				return
			case "false":
				out.InitLogic(false)
				return
			}
		}
		s.fail("scan-invalid", "#[")
	case '{':
		s.pos++
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] != '}' {
			s.pos++
		}
		if s.pos >= len(s.src) {
			s.fail("scan-missing", "}")
		}
		text := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, string(s.src[start:s.pos]))
		s.pos++
		data, err := hex.DecodeString(text)
		if err != nil {
			s.fail("scan-invalid", text)
		}
		s.in.InitBinary(out, data)
	case '"':
		s.pos++
		r, size := utf8.DecodeRune(s.src[s.pos:])
		if size == 0 {
			s.fail("scan-missing", `"`)
		}
		if r == '^' {
			s.pos++
			tmp := s.in.MakeText("")
			s.in.GuardSeries(tmp)
			s.scanEscape(tmp)
			r, _ = utf8.DecodeRune(tmp.Bytes())
			s.in.DropGuard()
		} else {
			s.pos += size
		}
		if s.peek() != '"' {
			s.fail("scan-missing", `"`)
		}
		s.pos++
		out.InitChar(r)
	default:
		s.in.InitIssue(out, s.scanWordText())
	}
}

// maybePath wraps a scanned value into a path when a slash follows.
// a/b/c stays a path; a/b/c: becomes a set-path; a leading get-word
// makes a get-path.
func (s *scanner) maybePath(out *Cell) {
	if s.peek() != '/' {
		return
	}
	head := out.Kind()
	if !head.IsWord() && head != KindGroup && head != KindInteger {
		return
	}
	kind := KindPath
	if head == KindGetWord {
		kind = KindGetPath
		out.resetByte(uint8(KindWord), out.header&cellMaskCopyFlags)
	}

	base := s.in.dsDepth()
	s.in.dsPush(out)
	for s.peek() == '/' {
		s.pos++
		var seg Cell
		c := s.peek()
		switch {
		case c == '(':
			s.pos++
			seg.InitSeries(KindGroup, s.scanArray(')'), 0)
		case c >= '0' && c <= '9':
			s.scanNumber(&seg)
		case isWordChar(c) || c >= utf8.RuneSelf:
			spelling := s.scanWordText()
			seg.InitWord(KindWord, s.in.Intern(spelling))
		default:
			s.fail("scan-invalid", "/"+string(c))
		}
		s.in.dsPush(&seg)
	}
	if s.peek() == ':' {
		s.pos++
		kind = KindSetPath
	}
	arr := s.in.dsPopToArray(base, nodeFlagManaged)
	out.InitSeries(kind, arr, 0)
}
