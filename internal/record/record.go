// Package record decodes SQLite's record format: a header of serial-type
// varints followed by a body of fixed/computed-width values. Kept free of
// I/O and catalog state, per the teacher's decoder layering.
package record

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/nyxdb/sqlitequery/internal/sqlerr"
	"github.com/nyxdb/sqlitequery/internal/varint"
)

// Kind identifies the dynamic type of a decoded Value.
type Kind int

const (
	Null Kind = iota
	Int
	Float
	Text
	Blob
)

// Value is a dynamically-typed record field, following spec §9's
// instruction to confine numeric/text coercion to one consumer.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bytes []byte // Text or Blob payload
}

// Record is a decoded tuple of values in column declaration order.
type Record struct {
	Values []Value
}

// serialWidth returns the number of payload bytes a serial type occupies.
func serialWidth(serialType uint64) int {
	switch {
	case serialType <= 4:
		return [...]int{0, 1, 2, 3, 4}[serialType]
	case serialType == 5:
		return 6
	case serialType == 6, serialType == 7:
		return 8
	case serialType == 8, serialType == 9:
		return 0
	case serialType >= 12 && serialType%2 == 0:
		return int((serialType - 12) / 2)
	case serialType >= 13 && serialType%2 == 1:
		return int((serialType - 13) / 2)
	default:
		return -1 // 10, 11: reserved/invalid
	}
}

func decodeSignedInt(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 3:
		v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		if v&0x800000 != 0 {
			v |= 0xFF000000
		}
		return int64(int32(v))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b)))
	case 6:
		v := uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
			uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
		if v&0x800000000000 != 0 {
			v |= 0xFFFF000000000000
		}
		return int64(v)
	case 8:
		return int64(binary.BigEndian.Uint64(b))
	}
	return 0
}

// Decode parses payload into a Record holding one value per serial type
// in the record header. It takes no expected column count and does not
// check the number of values against one. If rowid is non-nil and rowidAliasColumn is within range, a NULL value at
// that column is replaced by the rowid (the INTEGER PRIMARY KEY alias
// rule from spec §3/§4.3).
func Decode(payload []byte, rowid *int64, rowidAliasColumn int) (*Record, error) {
	headerLen, n, err := varint.Decode(payload, 0)
	if err != nil {
		return nil, sqlerr.New(sqlerr.TruncatedRecord, "decode_header_length", err, nil)
	}

	var serialTypes []uint64
	offset := n
	for offset < int(headerLen) {
		st, consumed, err := varint.Decode(payload, offset)
		if err != nil {
			return nil, sqlerr.New(sqlerr.TruncatedRecord, "decode_serial_type", err, nil)
		}
		serialTypes = append(serialTypes, st)
		offset += consumed
	}
	if offset != int(headerLen) {
		return nil, sqlerr.New(sqlerr.TruncatedRecord, "header_length_mismatch", nil, map[string]interface{}{
			"declared": headerLen,
			"consumed": offset,
		})
	}

	values := make([]Value, len(serialTypes))
	bodyOffset := int(headerLen)
	for i, st := range serialTypes {
		width := serialWidth(st)
		if width < 0 {
			return nil, sqlerr.New(sqlerr.TruncatedRecord, "reserved_serial_type", nil, map[string]interface{}{"serial_type": st})
		}
		if bodyOffset+width > len(payload) {
			return nil, sqlerr.New(sqlerr.TruncatedRecord, "body_truncated", nil, map[string]interface{}{
				"column": i,
				"need":   bodyOffset + width,
				"have":   len(payload),
			})
		}
		field := payload[bodyOffset : bodyOffset+width]
		switch {
		case st == 0:
			values[i] = Value{Kind: Null}
		case st <= 6:
			values[i] = Value{Kind: Int, Int: decodeSignedInt(field)}
		case st == 7:
			bits := binary.BigEndian.Uint64(field)
			values[i] = Value{Kind: Float, Float: math.Float64frombits(bits)}
		case st == 8:
			values[i] = Value{Kind: Int, Int: 0}
		case st == 9:
			values[i] = Value{Kind: Int, Int: 1}
		case st%2 == 0:
			values[i] = Value{Kind: Blob, Bytes: append([]byte(nil), field...)}
		default:
			values[i] = Value{Kind: Text, Bytes: append([]byte(nil), field...)}
		}
		bodyOffset += width
	}

	if rowid != nil && rowidAliasColumn >= 0 && rowidAliasColumn < len(values) &&
		values[rowidAliasColumn].Kind == Null {
		values[rowidAliasColumn] = Value{Kind: Int, Int: *rowid}
	}

	return &Record{Values: values}, nil
}

// numeric reports whether v carries a numeric value and returns it as a
// float64 for comparison purposes.
func numeric(v Value) (float64, bool) {
	switch v.Kind {
	case Int:
		return float64(v.Int), true
	case Float:
		return v.Float, true
	default:
		return 0, false
	}
}

// Compare orders two values using spec §4.9's comparison rules: numeric
// comparison when both sides are numeric, otherwise a byte-wise (BINARY
// collation) comparison of their textual representation. NULL has no
// defined order here; callers must special-case NULL before calling
// Compare, since NULL compares unequal to everything for every operator.
func Compare(a, b Value) int {
	if af, aok := numeric(a); aok {
		if bf, bok := numeric(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// String renders a value the way the output formatter emits it: NULL as
// empty string, integers as decimal, floats in normal decimal notation,
// text/blob as raw bytes.
func (v Value) String() string {
	switch v.Kind {
	case Null:
		return ""
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return string(v.Bytes)
	}
}
