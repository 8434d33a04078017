package rn

import "strings"

// ParseListingRow extracts the handle and property fields from one LS row.
// Rows have the form <uuid>,<handle hex4>,<property hex2>[,...]. Both
// fields are fixed width and must start immediately after their comma; no
// whitespace is tolerated. A field with a non-hex character reads as zero
// rather than failing the row, so one malformed row cannot derail a scan.
//
// ok is false when the row is missing a comma or a field is shorter than
// its fixed width; handle and property are only meaningful when ok.
func ParseListingRow(row string) (handle uint16, property uint8, ok bool) {
	first := strings.IndexByte(row, ',')
	if first < 0 || first+1 >= len(row) {
		return 0, 0, false
	}
	rest := row[first+1:]
	if len(rest) < 4 {
		return 0, 0, false
	}
	handle, _ = ParseHex4(rest[:4])

	second := strings.IndexByte(rest, ',')
	if second < 0 || second+1 >= len(rest) {
		return 0, 0, false
	}
	propField := rest[second+1:]
	if len(propField) < 2 {
		return 0, 0, false
	}
	property, _ = ParseHex2(propField[:2])
	return handle, property, true
}
