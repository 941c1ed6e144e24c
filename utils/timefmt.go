// utils/timefmt.go
package utils

import (
	"fmt"
	"strings"
	"time"
)

// VendorTimeLayout is the timestamp layout the Lotek and Vectronic APIs
// accept and return, without zone. Times are UTC.
const VendorTimeLayout = "2006-01-02T15:04:05"

// ZeroVendorTime is how Lotek reports "not set" for timestamps.
const ZeroVendorTime = "0001-01-01T00:00:00"

var vendorLayouts = []string{
	time.RFC3339Nano,
	VendorTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseVendorTime parses the timestamp formats seen in vendor payloads and
// ATS exports. Values without a zone are taken as UTC.
func ParseVendorTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range vendorLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatVendorTime renders t in the layout vendor query parameters expect.
func FormatVendorTime(t time.Time) string {
	return t.UTC().Format(VendorTimeLayout)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
