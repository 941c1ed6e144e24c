// services/ats_import.go
package services

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/normalizer"
	"github.com/bctw/collector/vendors"
)

// ImportATS loads an ATS export pair from disk without touching the portal.
// Rows already stored are skipped by the writer, so the same pair can be
// imported twice.
func (s *IngestService) ImportATS(ctx context.Context, readingsPath, transmissionsPath string) (models.RunSummary, error) {
	runID := ulid.Make().String()
	summary := models.RunSummary{RunID: runID, Vendor: models.VendorATS}
	log := s.logger.With("run_id", runID, "vendor", string(models.VendorATS), "import", true)

	records, skipped, err := vendors.ReadATSFiles(readingsPath, transmissionsPath)
	if err != nil {
		return summary, fmt.Errorf("failed to read ATS export: %w", err)
	}
	if skipped > 0 {
		log.Warn("Service: skipped ATS readings with unreadable dates", "skipped", skipped)
	}
	summary.RecordsFetched = len(records)

	rows := make([]models.CanonicalTelemetryRow, 0, len(records))
	devices := map[int64]struct{}{}
	for _, r := range records {
		row, err := normalizer.ToTelemetryRow(models.VendorATS, normalizer.Normalize(r))
		if err != nil {
			log.Warn("Service: record cannot be keyed, skipping", "error", err)
			continue
		}
		devices[row.DeviceID] = struct{}{}
		rows = append(rows, row)
	}
	summary.Devices = len(devices)

	inserted, err := s.writer.InsertTelemetry(ctx, rows)
	if err != nil {
		return summary, fmt.Errorf("failed to store ATS telemetry: %w", err)
	}
	summary.RowsInserted = inserted
	log.Info("Service: ATS import finished", "records", summary.RecordsFetched, "inserted", inserted)

	if err := s.notifier.RunFinished(ctx, summary); err != nil {
		log.Warn("Service: run notification failed", "error", err)
	}
	return summary, nil
}
