// database/telemetry_store.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bctw/collector/models"
)

const (
	telemetryTable = "vendor_telemetry"
	// 12 parameters per row keeps a full chunk well below the 65535
	// bind-parameter limit.
	telemetryChunkSize = 500
)

var telemetryColumns = []string{
	"device_id", "vendor", "vendor_record_id", "acquisition_date",
	"latitude", "longitude", "elevation",
	"main_voltage", "backup_voltage", "temperature",
	"raw_data", "geom",
}

// TelemetryStore writes canonical telemetry rows.
type TelemetryStore struct {
	db DBTX
}

func NewTelemetryStore(db DBTX) *TelemetryStore {
	return &TelemetryStore{db: db}
}

// InsertTelemetry inserts rows, skipping any whose (device_id, vendor,
// acquisition_date) already exists. It returns the number of rows actually
// inserted. An empty batch does not touch the database.
func (s *TelemetryStore) InsertTelemetry(ctx context.Context, rows []models.CanonicalTelemetryRow) (int, error) {
	inserted := 0
	for start := 0; start < len(rows); start += telemetryChunkSize {
		end := min(start+telemetryChunkSize, len(rows))
		query, args, err := buildTelemetryInsert(rows[start:end])
		if err != nil {
			return inserted, err
		}
		tag, err := s.db.Exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert telemetry rows: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// LastAcquisition returns the newest stored acquisition_date for vendor, or
// nil when the vendor has no rows.
func (s *TelemetryStore) LastAcquisition(ctx context.Context, vendor models.Vendor) (*time.Time, error) {
	var last *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT max(acquisition_date) FROM `+telemetryTable+` WHERE vendor = $1`,
		string(vendor),
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last %s acquisition: %w", vendor, err)
	}
	return last, nil
}

func buildTelemetryInsert(rows []models.CanonicalTelemetryRow) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + telemetryTable + " (")
	sb.WriteString(strings.Join(telemetryColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(telemetryColumns))
	for i, r := range rows {
		raw, err := json.Marshal(r.Raw)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal raw payload for device %d: %w", r.DeviceID, err)
		}
		var geom *string
		if r.Geometry != "" {
			g := r.Geometry
			geom = &g
		}
		var recordID *string
		if r.VendorRecordID != "" {
			id := r.VendorRecordID
			recordID = &id
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d::jsonb, ST_GeomFromText($%d, 4326))",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11, n+12)
		args = append(args,
			r.DeviceID, string(r.Vendor), recordID, r.AcquisitionDate.UTC(),
			r.Latitude, r.Longitude, r.Elevation,
			r.MainVoltage, r.BackupVoltage, r.Temperature,
			string(raw), geom,
		)
	}
	sb.WriteString(" ON CONFLICT (device_id, vendor, acquisition_date) DO NOTHING")
	return sb.String(), args, nil
}
