package core

import "unicode/utf8"

// ---------------------------------------------------------------------------
// Text, binary, and issue cells over byte series
// ---------------------------------------------------------------------------

// MakeText allocates a managed UTF-8 byte series holding s.
func (in *Interp) MakeText(s string) *Series {
	ser := in.MakeSeries(len(s), 1, nodeFlagManaged)
	in.appendBytes(ser, []byte(s))
	return ser
}

// MakeBinary allocates a managed byte series holding b.
func (in *Interp) MakeBinary(b []byte) *Series {
	ser := in.MakeSeries(len(b), 1, nodeFlagManaged)
	in.appendBytes(ser, b)
	return ser
}

// InitText fills c as a text! at index 0 over a fresh series.
func (in *Interp) InitText(c *Cell, s string) {
	c.InitSeries(KindText, in.MakeText(s), 0)
}

// InitBinary fills c as a binary! at index 0 over a fresh series.
func (in *Interp) InitBinary(c *Cell, b []byte) {
	c.InitSeries(KindBinary, in.MakeBinary(b), 0)
}

// InitIssue fills c as an issue! over a fresh series.
func (in *Interp) InitIssue(c *Cell, s string) {
	c.InitSeries(KindIssue, in.MakeText(s), 0)
}

// InitFile fills c as a file! over a fresh series.
func (in *Interp) InitFile(c *Cell, s string) {
	c.InitSeries(KindFile, in.MakeText(s), 0)
}

// appendBytes grows a byte series at the tail by copying b in.
func (in *Interp) appendBytes(s *Series, b []byte) {
	if len(b) == 0 {
		return
	}
	at := s.Len()
	if !s.IsDynamic() && (at+len(b))*s.Width() <= smallSize {
		copy(s.small[at*s.Width():], b)
		s.setLenByte(at + len(b))
		return
	}
	in.ExpandSeries(s, at, len(b))
	copy(s.ByteAt(at), b)
}

// appendByte appends one byte.
func (in *Interp) appendByte(s *Series, b byte) {
	in.appendBytes(s, []byte{b})
}

// appendRune appends one code point in UTF-8 form.
func (in *Interp) appendRune(s *Series, r rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	in.appendBytes(s, buf[:n])
}

// CellBytes returns the byte content of a series cell from its index to
// the tail. An index past the tail clamps to empty.
func CellBytes(c *Cell) []byte {
	s := c.SeriesNode()
	b := s.Bytes()
	idx := c.Index()
	if idx >= len(b) {
		return nil
	}
	return b[idx:]
}

// CellText returns the text content of a string-family cell from its
// index to the tail.
func CellText(c *Cell) string {
	return string(CellBytes(c))
}

// TextLen returns the code point count from the cell's index.
func TextLen(c *Cell) int {
	return utf8.RuneCount(CellBytes(c))
}

// appendCell grows an array at the tail with a copy of v and returns
// the new cell.
func (in *Interp) appendCell(arr *Series, v *Cell) *Cell {
	at := arr.Len()
	in.ExpandSeries(arr, at, 1)
	dst := arr.At(at)
	dst.header = nodeFlagNode | nodeFlagCell
	if v != nil {
		dst.Move(v)
	} else {
		dst.InitNull()
	}
	return dst
}
