// Package keys holds byte-order helpers shared by prefix scans.
package keys

import "slices"

// Successor returns the smallest key that sorts strictly after key: key
// followed by a zero byte. The input is not modified.
func Successor(key []byte) []byte {
	return append(slices.Clip(key), 0x00)
}

// UpperBound returns the first key that does not carry prefix, or nil when
// no such key exists (the prefix is empty or all 0xFF).
//
// [0x01, 0x02, 0xFF] yields [0x01, 0x03] and [0x01, 0x02] yields [0x01, 0x03].
func UpperBound(prefix []byte) (limit []byte) {
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c == 0xFF {
			continue
		}
		limit = make([]byte, i+1)
		copy(limit, prefix)
		limit[i] = c + 1
		break
	}
	return limit
}
