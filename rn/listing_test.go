package rn_test

import (
	"testing"

	"i4.energy/across/blegw/rn"
)

func TestParseListingRow(t *testing.T) {
	tests := []struct {
		name     string
		row      string
		handle   uint16
		property uint8
		ok       bool
	}{
		{
			name:     "characteristic row",
			row:      "AD11CF40163F11E5BE3E0002A5D5C51B,0012,05",
			handle:   0x0012,
			property: 0x05,
			ok:       true,
		},
		{
			name:     "row with trailing fields",
			row:      "AD11CF40363F11E5BE3E0002A5D5C51B,0034,06,V",
			handle:   0x0034,
			property: 0x06,
			ok:       true,
		},
		{
			name:     "short public UUID",
			row:      "180A,0102,12",
			handle:   0x0102,
			property: 0x12,
			ok:       true,
		},
		{
			name:     "non-hex handle reads as zero",
			row:      "180A,00G2,05",
			handle:   0,
			property: 0x05,
			ok:       true,
		},
		{
			name:     "non-hex property reads as zero",
			row:      "180A,0012,XY",
			handle:   0x0012,
			property: 0,
			ok:       true,
		},
		{
			name: "service row without property field",
			row:  "AD11CF40063F11E5BE3E0002A5D5C51B,000B",
			ok:   false,
		},
		{
			name: "no commas",
			row:  "AD11CF40063F11E5BE3E0002A5D5C51B",
			ok:   false,
		},
		{
			name: "handle field too short",
			row:  "180A,12",
			ok:   false,
		},
		{
			name: "property field too short",
			row:  "180A,0012,5",
			ok:   false,
		},
		{
			name: "empty row",
			row:  "",
			ok:   false,
		},
		{
			name: "trailing comma only",
			row:  "180A,",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, property, ok := rn.ParseListingRow(tt.row)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if handle != tt.handle {
				t.Errorf("handle = %#04x, want %#04x", handle, tt.handle)
			}
			if property != tt.property {
				t.Errorf("property = %#02x, want %#02x", property, tt.property)
			}
		})
	}
}
