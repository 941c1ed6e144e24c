// services/fakes_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/vendors"
)

type fakeCredentialStore struct {
	creds map[string]models.VendorCredential
	calls int
}

func (f *fakeCredentialStore) GetCredentials(_ context.Context, name string) (models.VendorCredential, error) {
	f.calls++
	c, ok := f.creds[name]
	if !ok {
		return models.VendorCredential{}, fmt.Errorf("credential %q: %w", name, models.ErrCredentialNotFound)
	}
	return c, nil
}

// fakeAdapter serves one record per device unless failures names the
// device, in which case that error is returned.
type fakeAdapter struct {
	vendor   models.Vendor
	devices  []models.DeviceRef
	failures map[string]error
	alerts   []models.VendorAlert
	alertErr error

	mu        sync.Mutex
	opens     int
	fetched   []string
	lastWin   models.Window
	alertRuns int
}

func (f *fakeAdapter) Vendor() models.Vendor { return f.vendor }

func (f *fakeAdapter) Open(_ context.Context, cred models.VendorCredential) (vendors.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return vendors.Session{BaseURL: cred.URL, Username: cred.Username}, nil
}

func (f *fakeAdapter) ListDevices(context.Context, vendors.Session) ([]models.DeviceRef, error) {
	return f.devices, nil
}

func (f *fakeAdapter) FetchRecords(_ context.Context, _ vendors.Session, d models.DeviceRef, w models.Window) ([]models.RawRecord, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, d.ID)
	f.lastWin = w
	f.mu.Unlock()
	if err := f.failures[d.ID]; err != nil {
		return nil, err
	}
	return []models.RawRecord{{
		"DeviceID":    d.ID,
		"RecDateTime": "2024-03-01T10:00:00",
		"Latitude":    49.25,
		"Longitude":   -123.1,
	}}, nil
}

func (f *fakeAdapter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// fakeAlertAdapter adds the alert capability to fakeAdapter.
type fakeAlertAdapter struct {
	*fakeAdapter
}

func (f fakeAlertAdapter) FetchAlerts(context.Context, vendors.Session) ([]models.VendorAlert, error) {
	f.mu.Lock()
	f.alertRuns++
	f.mu.Unlock()
	return f.alerts, f.alertErr
}

type fakeWriter struct {
	mu   sync.Mutex
	rows []models.CanonicalTelemetryRow
	err  error
}

func (f *fakeWriter) InsertTelemetry(_ context.Context, rows []models.CanonicalTelemetryRow) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	return len(rows), nil
}

type fixedTracker struct {
	window models.Window
	since  time.Time
}

func (f fixedTracker) TelemetryWindow(context.Context, models.Vendor) (models.Window, error) {
	return f.window, nil
}

func (f fixedTracker) AlertSince(context.Context, models.Vendor) (time.Time, error) {
	return f.since, nil
}

type location struct {
	lat, lon float64
}

// fakeAlertStore keeps alerts in memory and answers the open-alert query
// the same way the table does.
type fakeAlertStore struct {
	mu        sync.Mutex
	rows      []models.AlertRecord
	locations map[int64]location
	now       time.Time
}

func (f *fakeAlertStore) IsDuplicateOpenAlert(_ context.Context, deviceID int64, deviceMake models.Vendor, alertType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.DeviceID != deviceID || r.DeviceMake != deviceMake || r.AlertType != alertType {
			continue
		}
		if r.ValidTo == nil || r.ValidTo.After(f.now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, a models.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, a)
	return nil
}

func (f *fakeAlertStore) LastKnownLocation(_ context.Context, deviceID int64, _ models.Vendor, _ time.Time) (float64, float64, bool, error) {
	loc, ok := f.locations[deviceID]
	return loc.lat, loc.lon, ok, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.AlertRecord
	runs   []models.RunSummary
}

func (n *recordingNotifier) AlertInserted(_ context.Context, a models.AlertRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *recordingNotifier) RunFinished(_ context.Context, s models.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, s)
	return nil
}

func (n *recordingNotifier) Close() {}

func ptr(f float64) *float64 { return &f }
