package rn

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Hex4 encodes a 16-bit value as 4 uppercase hex digits, the wire form of
// handles, bitmaps and advertising intervals.
func Hex4(v uint16) string {
	return fmt.Sprintf("%04X", v)
}

// Hex2 encodes an 8-bit value as 2 uppercase hex digits, the wire form of
// property bytes, octet lengths and small bitmaps.
func Hex2(v uint8) string {
	return fmt.Sprintf("%02X", v)
}

// ValidUUID reports whether s has one of the two accepted UUID lengths.
// Content is not checked; the module rejects bad hex itself.
func ValidUUID(s string) bool {
	return len(s) == UUID16Len || len(s) == UUID128Len
}

// UUID128 formats u in the module's 32-hex-digit form, uppercase and
// without dashes.
func UUID128(u uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
}

// ParseHex4 reads exactly 4 hex digits from the start of s as a big-endian
// 16-bit value. Any non-hex character yields (0, false).
func ParseHex4(s string) (uint16, bool) {
	if len(s) < 4 {
		return 0, false
	}
	var v uint16
	for i := 0; i < 4; i++ {
		d, ok := hexDigit(s[i])
		if !ok {
			return 0, false
		}
		v = v<<4 | uint16(d)
	}
	return v, true
}

// ParseHex2 reads exactly 2 hex digits from the start of s as an 8-bit
// value. Any non-hex character yields (0, false).
func ParseHex2(s string) (uint8, bool) {
	if len(s) < 2 {
		return 0, false
	}
	var v uint8
	for i := 0; i < 2; i++ {
		d, ok := hexDigit(s[i])
		if !ok {
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
