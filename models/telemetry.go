// models/telemetry.go
package models

import "time"

// RawRecord is a single vendor record in the vendor's own shape.
type RawRecord map[string]any

// CanonicalTelemetryRow is one persisted telemetry fix.
// (DeviceID, Vendor, AcquisitionDate) is unique in the store.
type CanonicalTelemetryRow struct {
	DeviceID        int64
	Vendor          Vendor
	VendorRecordID  string
	AcquisitionDate time.Time
	Latitude        *float64
	Longitude       *float64
	Elevation       *float64
	MainVoltage     *float64
	BackupVoltage   *float64
	Temperature     *float64
	Raw             map[string]any
	// Geometry is WKT in SRID 4326, empty when the fix has no position.
	Geometry string
}

// LotekDevice is an entry of the Lotek /devices listing.
type LotekDevice struct {
	DeviceID  int64  `json:"nDeviceID"`
	SpecialID string `json:"strSpecialID"`
	Created   string `json:"dtCreated"`
	Satellite string `json:"strSatellite"`
}
