// Package varint decodes SQLite's 1-to-9-byte big-endian variable-length
// integers. Kept free of I/O and catalog state so it is trivially
// fuzzable and unit-testable from byte slices.
package varint

import "github.com/nyxdb/sqlitequery/internal/sqlerr"

// Decode reads a varint from data starting at offset. It returns the
// decoded value and the number of bytes consumed (1..9).
func Decode(data []byte, offset int) (uint64, int, error) {
	var result uint64
	for i := 0; i < 9; i++ {
		if offset+i >= len(data) {
			return 0, 0, sqlerr.New(sqlerr.MalformedVarint, "decode", nil, map[string]interface{}{
				"offset": offset,
				"byte":   i,
			})
		}
		b := data[offset+i]
		if i == 8 {
			// Ninth byte contributes all 8 bits.
			result = (result << 8) | uint64(b)
			return result, i + 1, nil
		}
		result = (result << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	return 0, 0, sqlerr.New(sqlerr.MalformedVarint, "decode", nil, map[string]interface{}{"offset": offset})
}

// Encode writes x as a varint and returns the bytes. Only used by tests to
// exercise the round-trip invariant in spec §8.
func Encode(x uint64) []byte {
	if x < uint64(1)<<56 {
		n := 1
		for n < 8 && x >= uint64(1)<<(7*n) {
			n++
		}
		out := make([]byte, n)
		v := x
		for i := n - 1; i >= 0; i-- {
			out[i] = byte(v & 0x7F)
			if i != n-1 {
				out[i] |= 0x80
			}
			v >>= 7
		}
		return out
	}

	// Values needing all 56 high bits spill into the 9-byte form: the
	// first 8 bytes carry the top 56 bits as continuation groups, the
	// 9th carries the low 8 bits verbatim.
	hi := x >> 8
	out := make([]byte, 9)
	for i := 7; i >= 0; i-- {
		out[i] = byte(hi&0x7F) | 0x80
		hi >>= 7
	}
	out[8] = byte(x & 0xFF)
	return out
}
