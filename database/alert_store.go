// database/alert_store.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bctw/collector/models"
)

const alertTable = "telemetry_sensor_alert"

// AlertStore reads and writes telemetry_sensor_alert.
type AlertStore struct {
	db DBTX
}

func NewAlertStore(db DBTX) *AlertStore {
	return &AlertStore{db: db}
}

// IsDuplicateOpenAlert reports whether an alert of the same type is still
// open for the device.
func (s *AlertStore) IsDuplicateOpenAlert(ctx context.Context, deviceID int64, deviceMake models.Vendor, alertType string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM `+alertTable+`
			WHERE device_id = $1 AND device_make = $2 AND alert_type = $3
			  AND (valid_to IS NULL OR valid_to > now())
		)`,
		deviceID, string(deviceMake), strings.ToLower(alertType),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open alerts for device %d: %w", deviceID, err)
	}
	return exists, nil
}

// InsertAlert stores a new open alert.
func (s *AlertStore) InsertAlert(ctx context.Context, a models.AlertRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO `+alertTable+` (device_id, device_make, alert_type, valid_from, valid_to, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.DeviceID, string(a.DeviceMake), strings.ToLower(a.AlertType), a.ValidFrom.UTC(), a.ValidTo, a.Latitude, a.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s alert for device %d: %w", a.AlertType, a.DeviceID, err)
	}
	return nil
}

// LastAlertTimestamp returns the newest valid_from for the vendor, or nil
// when no alert has been stored.
func (s *AlertStore) LastAlertTimestamp(ctx context.Context, deviceMake models.Vendor) (*time.Time, error) {
	var last *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT max(valid_from) FROM `+alertTable+` WHERE device_make = $1`,
		string(deviceMake),
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last %s alert: %w", deviceMake, err)
	}
	return last, nil
}

// LastKnownLocation returns the newest non-zero position recorded for the
// device at or before at. found is false when there is none.
func (s *AlertStore) LastKnownLocation(ctx context.Context, deviceID int64, vendor models.Vendor, at time.Time) (lat, lon float64, found bool, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT latitude, longitude FROM `+telemetryTable+`
		WHERE device_id = $1 AND vendor = $2 AND acquisition_date <= $3
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude <> 0 AND longitude <> 0
		ORDER BY acquisition_date DESC
		LIMIT 1`,
		deviceID, string(vendor), at.UTC(),
	).Scan(&lat, &lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to query last location for device %d: %w", deviceID, err)
	}
	return lat, lon, true, nil
}
