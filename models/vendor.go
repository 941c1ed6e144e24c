// models/vendor.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Vendor identifies a telemetry provider. The string value is what the
// store records in vendor and device_make columns.
type Vendor string

const (
	VendorATS       Vendor = "ATS"
	VendorLotek     Vendor = "Lotek"
	VendorVectronic Vendor = "Vectronic"
)

// AllVendors lists vendors in the order a full run processes them.
var AllVendors = []Vendor{VendorLotek, VendorVectronic, VendorATS}

// ParseVendor accepts any casing of a vendor name.
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ats":
		return VendorATS, nil
	case "lotek":
		return VendorLotek, nil
	case "vectronic", "vectronics":
		return VendorVectronic, nil
	}
	return "", fmt.Errorf("unknown vendor %q", s)
}

func (v Vendor) String() string { return string(v) }

// VendorCredential is decrypted on read and never persisted by this process.
type VendorCredential struct {
	Vendor   Vendor
	Name     string
	Username string
	Password string
	URL      string
}

// DeviceRef is a device as listed by a vendor. Key carries per-device
// secrets such as the Vectronic collar key.
type DeviceRef struct {
	ID    string
	Key   string
	Label string
}

// Window bounds a fetch. A zero Until means open-ended.
type Window struct {
	Since time.Time
	Until time.Time
}
