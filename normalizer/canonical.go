// normalizer/canonical.go
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/utils"
)

// ToTelemetryRow converts a normalized record into a row for the telemetry
// table. Records without a device id or acquisition timestamp cannot be
// keyed and are rejected with an error.
func ToTelemetryRow(vendor models.Vendor, rec Record) (models.CanonicalTelemetryRow, error) {
	deviceID, ok := toInt64(rec.Fields["device_id"])
	if !ok {
		return models.CanonicalTelemetryRow{}, fmt.Errorf("record has no usable device_id: %v", rec.Fields["device_id"])
	}

	rawDate := rec.Fields["acquisition_date"]
	if rawDate == nil {
		rawDate = rec.Fields["date"]
	}
	acquired, err := toTime(rawDate)
	if err != nil {
		return models.CanonicalTelemetryRow{}, fmt.Errorf("device %d: %w", deviceID, err)
	}

	row := models.CanonicalTelemetryRow{
		DeviceID:        deviceID,
		Vendor:          vendor,
		AcquisitionDate: acquired,
		Latitude:        floatPtr(rec.Fields["latitude"]),
		Longitude:       floatPtr(rec.Fields["longitude"]),
		Elevation:       floatPtr(rec.Fields["elevation"]),
		MainVoltage:     floatPtr(rec.Fields["main_voltage"]),
		BackupVoltage:   floatPtr(rec.Fields["backup_voltage"]),
		Temperature:     floatPtr(rec.Fields["temperature"]),
		Raw:             rec.Raw,
		Geometry:        rec.Geometry,
	}
	if id := rec.Fields["vendor_record_id"]; id != nil {
		row.VendorRecordID = fmt.Sprint(id)
	}
	return row, nil
}

func floatPtr(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return utils.ParseVendorTime(t)
	case nil:
		return time.Time{}, fmt.Errorf("record has no acquisition_date")
	}
	return time.Time{}, fmt.Errorf("unsupported acquisition_date %T", v)
}
