// models/alert.go
package models

import "time"

// AlertRecord is a row of telemetry_sensor_alert. An alert is open while
// ValidTo is nil or in the future.
type AlertRecord struct {
	DeviceID   int64      `json:"device_id"`
	DeviceMake Vendor     `json:"device_make"`
	AlertType  string     `json:"alert_type"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
}

// VendorAlert is an alert as the vendor reports it.
type VendorAlert struct {
	DeviceID   int64
	Type       string
	DetectedAt time.Time
	// CanceledAt is nil while the vendor still reports the condition.
	CanceledAt *time.Time
	Latitude   *float64
	Longitude  *float64
}

// Alert types kept by the alert path. Stored lower-cased.
const (
	AlertTypeMortality   = "Mortality"
	AlertTypeMalfunction = "Malfunction"
)
