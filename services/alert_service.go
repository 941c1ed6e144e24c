// services/alert_service.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/notify"
	"github.com/bctw/collector/vendors"
)

// AlertStore is the persistence the alert path needs.
type AlertStore interface {
	IsDuplicateOpenAlert(ctx context.Context, deviceID int64, deviceMake models.Vendor, alertType string) (bool, error)
	InsertAlert(ctx context.Context, a models.AlertRecord) error
	LastKnownLocation(ctx context.Context, deviceID int64, vendor models.Vendor, at time.Time) (lat, lon float64, found bool, err error)
}

// AlertWatermark yields the time after which vendor alerts are new.
type AlertWatermark interface {
	AlertSince(ctx context.Context, vendor models.Vendor) (time.Time, error)
}

// AlertService turns vendor alerts into at most one open alert row per
// device, make and type.
type AlertService struct {
	store     AlertStore
	watermark AlertWatermark
	notifier  notify.Notifier
	logger    *slog.Logger
}

func NewAlertService(store AlertStore, watermark AlertWatermark, notifier notify.Notifier, logger *slog.Logger) *AlertService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{store: store, watermark: watermark, notifier: notifier, logger: logger}
}

// Run fetches alerts from src and stores the new ones.
func (a *AlertService) Run(ctx context.Context, vendor models.Vendor, src vendors.AlertSource, s vendors.Session, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = a.logger
	}
	since, err := a.watermark.AlertSince(ctx, vendor)
	if err != nil {
		return 0, err
	}
	alerts, err := src.FetchAlerts(ctx, s)
	if errors.Is(err, models.ErrMalformedPayload) {
		logger.Warn("Service: alert payload malformed, treating as empty", "error", err)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return a.ProcessAlerts(ctx, vendor, alerts, since, logger)
}

// ProcessAlerts stores alerts newer than since that are of a tracked type
// and still active. Alerts are handled one at a time so the duplicate
// check sees earlier inserts from the same batch.
func (a *AlertService) ProcessAlerts(ctx context.Context, vendor models.Vendor, alerts []models.VendorAlert, since time.Time, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = a.logger
	}
	inserted := 0
	for _, al := range alerts {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if !al.DetectedAt.After(since) || !trackedAlertType(al.Type) || al.CanceledAt != nil {
			continue
		}
		alertType := strings.ToLower(al.Type)
		log := logger.With("device_id", al.DeviceID, "alert_type", alertType)

		dup, err := a.store.IsDuplicateOpenAlert(ctx, al.DeviceID, vendor, alertType)
		if err != nil {
			log.Error("Service: duplicate check failed, skipping alert", "error", err)
			continue
		}
		if dup {
			log.Info("Service: open alert already exists, skipping")
			continue
		}

		rec := models.AlertRecord{
			DeviceID:   al.DeviceID,
			DeviceMake: vendor,
			AlertType:  alertType,
			ValidFrom:  al.DetectedAt,
			Latitude:   al.Latitude,
			Longitude:  al.Longitude,
		}
		if missingPosition(al.Latitude, al.Longitude) {
			rec.Latitude, rec.Longitude = nil, nil
			lat, lon, found, err := a.store.LastKnownLocation(ctx, al.DeviceID, vendor, al.DetectedAt)
			if err != nil {
				log.Warn("Service: last known location lookup failed", "error", err)
			} else if found {
				rec.Latitude, rec.Longitude = &lat, &lon
			}
		}

		if err := a.store.InsertAlert(ctx, rec); err != nil {
			log.Error("Service: failed to insert alert", "error", err)
			continue
		}
		inserted++
		log.Info("Service: alert stored", "valid_from", rec.ValidFrom, "backfilled", missingPosition(al.Latitude, al.Longitude))
		if err := a.notifier.AlertInserted(ctx, rec); err != nil {
			log.Warn("Service: alert notification failed", "error", err)
		}
	}
	return inserted, nil
}

func trackedAlertType(t string) bool {
	return strings.EqualFold(t, models.AlertTypeMortality) || strings.EqualFold(t, models.AlertTypeMalfunction)
}

// missingPosition treats an absent or zero coordinate as no position.
func missingPosition(lat, lon *float64) bool {
	return lat == nil || lon == nil || *lat == 0 || *lon == 0
}
