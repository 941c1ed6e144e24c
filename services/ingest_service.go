// services/ingest_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bctw/collector/lock"
	"github.com/bctw/collector/models"
	"github.com/bctw/collector/normalizer"
	"github.com/bctw/collector/notify"
	"github.com/bctw/collector/vendors"
)

// TelemetryWriter persists canonical rows and reports how many were new.
type TelemetryWriter interface {
	InsertTelemetry(ctx context.Context, rows []models.CanonicalTelemetryRow) (int, error)
}

// WindowTracker decides how far back a scheduled run fetches.
type WindowTracker interface {
	TelemetryWindow(ctx context.Context, vendor models.Vendor) (models.Window, error)
}

// IngestDeps wires an IngestService. Locker, Notifier and Alerts may be
// nil.
type IngestDeps struct {
	Adapters    []vendors.Adapter
	Credentials *CredentialResolver
	Writer      TelemetryWriter
	Tracker     WindowTracker
	Alerts      *AlertService
	Locker      lock.Locker
	Notifier    notify.Notifier
	Workers     int
	LockTTL     time.Duration
	Logger      *slog.Logger
}

// IngestService runs vendor ingestion: one credential lookup and session
// per run, then a bounded fan-out over devices. A device failure is logged
// and never stops its siblings.
type IngestService struct {
	adapters map[models.Vendor]vendors.Adapter
	creds    *CredentialResolver
	writer   TelemetryWriter
	tracker  WindowTracker
	alerts   *AlertService
	locker   lock.Locker
	notifier notify.Notifier
	workers  int
	lockTTL  time.Duration
	logger   *slog.Logger
}

func NewIngestService(d IngestDeps) *IngestService {
	s := &IngestService{
		adapters: make(map[models.Vendor]vendors.Adapter, len(d.Adapters)),
		creds:    d.Credentials,
		writer:   d.Writer,
		tracker:  d.Tracker,
		alerts:   d.Alerts,
		locker:   d.Locker,
		notifier: d.Notifier,
		workers:  d.Workers,
		lockTTL:  d.LockTTL,
		logger:   d.Logger,
	}
	for _, a := range d.Adapters {
		s.adapters[a.Vendor()] = a
	}
	if s.locker == nil {
		s.locker = lock.Nop{}
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 30 * time.Minute
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type deviceResult struct {
	device   models.DeviceRef
	found    int
	inserted int
	err      error
}

// Run performs one scheduled ingestion for vendor. It returns an error
// only when the run could not start or list devices; per-device failures
// are counted in the summary.
func (s *IngestService) Run(ctx context.Context, vendor models.Vendor) (models.RunSummary, error) {
	runID := ulid.Make().String()
	summary := models.RunSummary{RunID: runID, Vendor: vendor}
	log := s.logger.With("run_id", runID, "vendor", string(vendor))
	start := time.Now()

	adapter, ok := s.adapters[vendor]
	if !ok {
		return summary, fmt.Errorf("%w: vendor %s is not enabled", models.ErrFatalConfig, vendor)
	}

	release, err := s.locker.Acquire(ctx, "run:"+strings.ToLower(string(vendor)), runID, s.lockTTL)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Service: failed to release run lock", "error", err)
		}
	}()

	log.Info("Service: starting vendor run")
	session, err := s.open(ctx, adapter)
	if err != nil {
		log.Error("Service: vendor run aborted", "error", err)
		return summary, err
	}

	window, err := s.tracker.TelemetryWindow(ctx, vendor)
	if err != nil {
		return summary, fmt.Errorf("failed to compute %s fetch window: %w", vendor, err)
	}

	// Alerts are fetched alongside the device fan-out and joined below.
	var alertWG sync.WaitGroup
	if src, ok := adapter.(vendors.AlertSource); ok && s.alerts != nil {
		alertWG.Add(1)
		go func() {
			defer alertWG.Done()
			n, err := s.alerts.Run(ctx, vendor, src, session, log)
			if err != nil {
				log.Error("Service: alert path failed", "error", err)
			}
			summary.AlertsInserted = n
		}()
	}

	devices, err := adapter.ListDevices(ctx, session)
	if err != nil {
		alertWG.Wait()
		log.Error("Service: failed to list devices", "error", err)
		return summary, err
	}

	results := s.processDevices(ctx, log, adapter, session, devices, window)
	alertWG.Wait()

	summary.Devices = len(devices)
	for _, r := range results {
		summary.RecordsFetched += r.found
		summary.RowsInserted += r.inserted
		if r.err != nil {
			summary.DevicesFailed++
		}
	}
	log.Info("Service: vendor run finished",
		"devices", summary.Devices,
		"devices_failed", summary.DevicesFailed,
		"records_fetched", summary.RecordsFetched,
		"rows_inserted", summary.RowsInserted,
		"alerts_inserted", summary.AlertsInserted,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err := s.notifier.RunFinished(ctx, summary); err != nil {
		log.Warn("Service: run notification failed", "error", err)
	}
	return summary, nil
}

// FetchDevices runs an on-demand fetch for the listed device ids over an
// explicit window. An empty ids list means every device.
func (s *IngestService) FetchDevices(ctx context.Context, vendor models.Vendor, ids []string, window models.Window) ([]models.DeviceFetchResult, error) {
	log := s.logger.With("run_id", ulid.Make().String(), "vendor", string(vendor), "manual", true)
	adapter, ok := s.adapters[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: vendor %s is not enabled", models.ErrFatalConfig, vendor)
	}
	session, err := s.open(ctx, adapter)
	if err != nil {
		return nil, err
	}
	devices, err := adapter.ListDevices(ctx, session)
	if err != nil {
		return nil, err
	}

	var selected []models.DeviceRef
	var out []models.DeviceFetchResult
	for _, id := range ids {
		idx := slices.IndexFunc(devices, func(d models.DeviceRef) bool { return d.ID == id })
		if idx < 0 {
			out = append(out, models.DeviceFetchResult{DeviceID: id, Vendor: vendor, Error: "device not found"})
			continue
		}
		selected = append(selected, devices[idx])
	}
	if len(ids) == 0 {
		selected = devices
	}

	for _, r := range s.processDevices(ctx, log, adapter, session, selected, window) {
		res := models.DeviceFetchResult{
			DeviceID:     r.device.ID,
			Vendor:       vendor,
			RecordsFound: r.found,
			Inserted:     r.inserted,
		}
		if r.err != nil {
			res.Error = r.err.Error()
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *IngestService) open(ctx context.Context, adapter vendors.Adapter) (vendors.Session, error) {
	cred, err := s.creds.Resolve(ctx, adapter.Vendor())
	if err != nil {
		return vendors.Session{}, err
	}
	session, err := adapter.Open(ctx, cred)
	if err != nil {
		return vendors.Session{}, fmt.Errorf("failed to open %s session: %w", adapter.Vendor(), err)
	}
	return session, nil
}

func (s *IngestService) processDevices(ctx context.Context, log *slog.Logger, adapter vendors.Adapter, session vendors.Session, devices []models.DeviceRef, window models.Window) []deviceResult {
	results := make([]deviceResult, len(devices))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, d := range devices {
		g.Go(func() error {
			results[i] = s.processDevice(ctx, log.With("device_id", d.ID), adapter, session, d, window)
			return nil
		})
	}
	g.Wait()
	return results
}

// processDevice runs fetch, normalize and persist for one device.
func (s *IngestService) processDevice(ctx context.Context, log *slog.Logger, adapter vendors.Adapter, session vendors.Session, d models.DeviceRef, window models.Window) deviceResult {
	res := deviceResult{device: d}

	records, err := adapter.FetchRecords(ctx, session, d, window)
	if errors.Is(err, models.ErrMalformedPayload) {
		log.Warn("Service: malformed payload, treating as empty", "error", err)
		return res
	}
	if err != nil {
		log.Error("Service: fetch failed, skipping device", "error", err)
		res.err = err
		return res
	}
	res.found = len(records)

	rows := make([]models.CanonicalTelemetryRow, 0, len(records))
	for _, r := range records {
		row, err := normalizer.ToTelemetryRow(adapter.Vendor(), normalizer.Normalize(r))
		if err != nil {
			log.Warn("Service: record cannot be keyed, skipping", "error", err)
			continue
		}
		rows = append(rows, row)
	}

	inserted, err := s.writer.InsertTelemetry(ctx, rows)
	if err != nil {
		log.Error("Service: failed to store telemetry", "error", err)
		res.err = err
		return res
	}
	res.inserted = inserted
	log.Debug("Service: device processed", "records", res.found, "inserted", inserted)
	return res
}
