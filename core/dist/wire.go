// Package dist implements the portable wire format for scanned source
// and the persistent scan cache built on it.
package dist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/rendlang/rend/core"
)

// cborEncMode uses canonical mode so equal blocks encode to equal
// bytes; cache keys and content hashes depend on that.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// WireValue is the portable form of one value. Exactly the fields a
// kind needs are populated; nested arrays carry their items inline.
type WireValue struct {
	Kind   uint8       `cbor:"k"`
	Quotes int         `cbor:"q,omitempty"`
	Int    int64       `cbor:"i,omitempty"`
	Float  float64     `cbor:"f,omitempty"`
	Str    string      `cbor:"s,omitempty"`
	Bytes  []byte      `cbor:"b,omitempty"`
	Items  []WireValue `cbor:"l,omitempty"`
	Flags  uint8       `cbor:"g,omitempty"` // bit 0: newline before
}

const wireNewlineBefore = 1 << 0

// WireBlock is the top-level frame of an encoded block.
type WireBlock struct {
	Version int         `cbor:"v"`
	Items   []WireValue `cbor:"items"`
}

// WireVersion is bumped when the encoding changes shape.
const WireVersion = 1

// MarshalBlock serializes a block of values to canonical CBOR.
func MarshalBlock(block *core.Series) ([]byte, error) {
	items, err := encodeArray(block, 0)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(&WireBlock{Version: WireVersion, Items: items})
}

// UnmarshalBlock rebuilds a managed block from wire bytes.
func UnmarshalBlock(in *core.Interp, data []byte) (*core.Series, error) {
	var wb WireBlock
	if err := cbor.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("dist: unmarshal block: %w", err)
	}
	if wb.Version != WireVersion {
		return nil, fmt.Errorf("dist: wire version %d, want %d", wb.Version, WireVersion)
	}
	return decodeArray(in, wb.Items)
}

func encodeArray(s *core.Series, from int) ([]WireValue, error) {
	items := make([]WireValue, 0, s.Len()-from)
	for i := from; i < s.Len(); i++ {
		wv, err := encodeValue(s.At(i))
		if err != nil {
			return nil, err
		}
		items = append(items, wv)
	}
	return items, nil
}

func encodeValue(c *core.Cell) (WireValue, error) {
	wv := WireValue{Quotes: c.NumQuotes()}
	if c.HasNewlineBefore() {
		wv.Flags |= wireNewlineBefore
	}

	k := c.HeartKind()
	wv.Kind = uint8(k)
	u := c.Dequoted()

	switch {
	case k == core.KindNull, k == core.KindBlank:
	case k == core.KindLogic:
		if u.Logic() {
			wv.Int = 1
		}
	case k == core.KindInteger:
		wv.Int = u.Int64()
	case k == core.KindDecimal:
		wv.Float = u.Float64()
	case k == core.KindChar:
		wv.Int = int64(u.Char())
	case k == core.KindDatatype:
		wv.Int = int64(u.DatatypeKind())
	case k.IsWord():
		wv.Str = core.Spelling(u.WordSymbol())
	case k == core.KindBinary:
		wv.Bytes = core.CellBytes(&u)
	case k.IsArray():
		items, err := encodeArray(u.SeriesNode(), u.Index())
		if err != nil {
			return wv, err
		}
		wv.Items = items
	case k.IsSeries():
		wv.Str = core.CellText(&u)
	default:
		return wv, fmt.Errorf("dist: cannot encode %s", k)
	}
	return wv, nil
}

func decodeArray(in *core.Interp, items []WireValue) (*core.Series, error) {
	// Built unmanaged; managed only once fully formed.
	block := in.MakeArray(len(items), 0)
	in.ExpandSeries(block, 0, len(items))
	for i := range items {
		if err := decodeValue(in, block.At(i), &items[i]); err != nil {
			in.FreeUnmanaged(block)
			return nil, err
		}
	}
	in.Manage(block)
	return block, nil
}

func decodeValue(in *core.Interp, c *core.Cell, wv *WireValue) error {
	k := core.Kind(wv.Kind)
	switch {
	case k == core.KindNull:
		c.InitNull()
	case k == core.KindBlank:
		c.InitBlank()
	case k == core.KindLogic:
		c.InitLogic(wv.Int != 0)
	case k == core.KindInteger:
		c.InitInteger(wv.Int)
	case k == core.KindDecimal:
		c.InitDecimal(wv.Float)
	case k == core.KindChar:
		c.InitChar(rune(wv.Int))
	case k == core.KindDatatype:
		c.InitDatatype(core.Kind(wv.Int))
	case k.IsWord():
		c.InitWord(k, in.Intern(wv.Str))
	case k == core.KindBinary:
		in.InitBinary(c, wv.Bytes)
	case k.IsArray():
		nested, err := decodeArray(in, wv.Items)
		if err != nil {
			return err
		}
		c.InitSeries(k, nested, 0)
	case k.IsSeries():
		c.InitSeries(k, in.MakeText(wv.Str), 0)
	default:
		return fmt.Errorf("dist: cannot decode kind %d", wv.Kind)
	}
	if wv.Quotes > 0 {
		in.Quotify(c, wv.Quotes)
	}
	if wv.Flags&wireNewlineBefore != 0 {
		c.SetNewlineBefore()
	}
	return nil
}
