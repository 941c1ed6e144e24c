// watermark/tracker.go
package watermark

import (
	"context"
	"time"

	"github.com/bctw/collector/models"
)

// AlertTimestamps yields the newest stored alert for a vendor.
type AlertTimestamps interface {
	LastAlertTimestamp(ctx context.Context, vendor models.Vendor) (*time.Time, error)
}

// AcquisitionTimestamps yields the newest stored fix for a vendor.
type AcquisitionTimestamps interface {
	LastAcquisition(ctx context.Context, vendor models.Vendor) (*time.Time, error)
}

// Tracker decides how far back each poll reaches.
//
// Lotek and Vectronic telemetry use a rolling window ending now; the
// upsert absorbs the overlap between runs. ATS exports are filtered
// against the newest stored ATS fix, and alerts against the newest
// stored alert. Both fall back to a lookback when the store is empty.
type Tracker struct {
	alerts    AlertTimestamps
	telemetry AcquisitionTimestamps

	TelemetryLookback time.Duration
	AlertLookback     time.Duration
	ATSLookback       time.Duration

	Now func() time.Time
}

func NewTracker(alerts AlertTimestamps, telemetry AcquisitionTimestamps) *Tracker {
	return &Tracker{
		alerts:            alerts,
		telemetry:         telemetry,
		TelemetryLookback: 7 * 24 * time.Hour,
		AlertLookback:     7 * 24 * time.Hour,
		ATSLookback:       24 * time.Hour,
		Now:               time.Now,
	}
}

// TelemetryWindow returns the fetch window for a scheduled vendor run.
func (t *Tracker) TelemetryWindow(ctx context.Context, vendor models.Vendor) (models.Window, error) {
	now := t.Now().UTC()
	if vendor != models.VendorATS {
		return models.Window{Since: now.Add(-t.TelemetryLookback)}, nil
	}
	last, err := t.telemetry.LastAcquisition(ctx, vendor)
	if err != nil {
		return models.Window{}, err
	}
	if last == nil {
		return models.Window{Since: now.Add(-t.ATSLookback)}, nil
	}
	return models.Window{Since: last.UTC()}, nil
}

// AlertSince returns the time after which vendor alerts are new.
func (t *Tracker) AlertSince(ctx context.Context, vendor models.Vendor) (time.Time, error) {
	last, err := t.alerts.LastAlertTimestamp(ctx, vendor)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return t.Now().UTC().Add(-t.AlertLookback), nil
	}
	return last.UTC(), nil
}
