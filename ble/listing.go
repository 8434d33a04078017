package ble

import (
	"strings"
	"time"

	"i4.energy/across/blegw/rn"
)

// listingSettle gives the module a moment to start streaming the listing
// before the scan begins; the command echo is discarded with the flush.
const listingSettle = 15 * time.Millisecond

// FindHandle lists the module's services and characteristics and returns
// the handle of the row matching targetUUID whose property byte equals
// targetProperty. It returns 0 when nothing matched; the module never
// assigns handle 0.
//
// Listing rows are CR+LF delimited — a lone LF does not end a row — and
// the listing closes with a literal END row. When several rows match, the
// last one wins. If the deadline lapses before END arrives, whatever
// partial row is buffered gets one salvage parse: the last row of a long
// listing can be cut off mid-flight, and failing the whole discovery over
// a missing terminator would be worse than reading the complete row we
// already hold.
func (d *Device) FindHandle(targetUUID string, targetProperty uint8) uint16 {
	d.SendCommand(rn.ListServices)
	time.Sleep(listingSettle)
	d.transport.FlushRx()
	d.clearLine()

	var (
		gotCR bool
		found uint16
	)
	deadline := time.Now().Add(d.config.commandTimeout)
	for time.Now().Before(deadline) {
		b, ok := d.transport.ReadByte()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		switch {
		case b == rn.CR:
			gotCR = true
		case b == rn.LF && gotCR:
			row := string(d.line[:d.lineLen])
			d.clearLine()
			gotCR = false
			if row == rn.ListingEnd {
				return found
			}
			if h, ok := matchListingRow(row, targetUUID, targetProperty); ok {
				found = h
			}
		default:
			if gotCR {
				// CR not followed by LF belongs to the row.
				if d.lineLen < len(d.line) {
					d.line[d.lineLen] = rn.CR
					d.lineLen++
				}
				gotCR = false
			}
			if d.lineLen < len(d.line) {
				d.line[d.lineLen] = b
				d.lineLen++
			}
		}
	}

	// Deadline without END: salvage the unterminated row, if any.
	if d.lineLen > 0 {
		if h, ok := matchListingRow(string(d.line[:d.lineLen]), targetUUID, targetProperty); ok {
			found = h
		}
	}
	if found == 0 {
		d.logger.Warn("characteristic handle not found", "uuid", targetUUID, "property", targetProperty)
	}
	return found
}

// matchListingRow applies the row matching logic: the row must contain the
// target UUID and carry a property byte equal to the target. The returned
// handle may still be 0 when the row's handle field was malformed.
func matchListingRow(row, targetUUID string, targetProperty uint8) (uint16, bool) {
	if row == "" || !strings.Contains(row, targetUUID) {
		return 0, false
	}
	handle, property, ok := rn.ParseListingRow(row)
	if !ok || property != targetProperty {
		return 0, false
	}
	return handle, true
}
