// database/device_store.go
package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bctw/collector/models"
)

const (
	lotekDeviceTable     = "api_lotek_collar_data"
	vectronicDeviceTable = "api_vectronics_collar_data"
)

// DeviceStore holds the vendor device registries.
type DeviceStore struct {
	db DBTX
}

func NewDeviceStore(db DBTX) *DeviceStore {
	return &DeviceStore{db: db}
}

// ListVectronicDevices returns registered Vectronic collars with their
// collar keys, ordered by id.
func (s *DeviceStore) ListVectronicDevices(ctx context.Context) ([]models.DeviceRef, error) {
	rows, err := s.db.Query(ctx,
		`SELECT idcollar, collarkey FROM `+vectronicDeviceTable+` ORDER BY idcollar`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectronic devices: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceRef
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("failed to scan vectronic device: %w", err)
		}
		devices = append(devices, models.DeviceRef{ID: strconv.FormatInt(id, 10), Key: key})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vectronic devices: %w", err)
	}
	return devices, nil
}

// TouchVectronicFetch records that a fetch was attempted for the collar.
func (s *DeviceStore) TouchVectronicFetch(ctx context.Context, idCollar string) error {
	id, err := strconv.ParseInt(idCollar, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid vectronic collar id %q: %w", idCollar, err)
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE `+vectronicDeviceTable+` SET dtlast_fetch = now() WHERE idcollar = $1`, id); err != nil {
		return fmt.Errorf("failed to update last fetch for collar %d: %w", id, err)
	}
	return nil
}

// UpsertLotekDevice registers a device from the Lotek listing and stamps
// its last fetch time.
func (s *DeviceStore) UpsertLotekDevice(ctx context.Context, d models.LotekDevice) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO `+lotekDeviceTable+` (ndeviceid, strspecialid, dtcreated, strsatellite, dtrecord_added, dtlast_fetch)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (ndeviceid) DO UPDATE SET
			strspecialid = EXCLUDED.strspecialid,
			strsatellite = EXCLUDED.strsatellite,
			dtlast_fetch = now()`,
		d.DeviceID, d.SpecialID, nullIfEmpty(d.Created), d.Satellite,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lotek device %d: %w", d.DeviceID, err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
