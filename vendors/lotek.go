// vendors/lotek.go
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/utils"
)

// LotekRegistry records devices seen in the Lotek listing.
type LotekRegistry interface {
	UpsertLotekDevice(ctx context.Context, d models.LotekDevice) error
}

// LotekAdapter talks to the Lotek web service: password grant login, then
// bearer-authenticated device, GPS and alert endpoints.
type LotekAdapter struct {
	opts     HTTPOptions
	registry LotekRegistry
}

func NewLotekAdapter(opts HTTPOptions, registry LotekRegistry) *LotekAdapter {
	return &LotekAdapter{opts: opts.withDefaults(), registry: registry}
}

func (a *LotekAdapter) Vendor() models.Vendor { return models.VendorLotek }

func (a *LotekAdapter) Open(ctx context.Context, cred models.VendorCredential) (Session, error) {
	if cred.URL == "" {
		return Session{}, fmt.Errorf("lotek url is not configured: %w", models.ErrFatalConfig)
	}
	base := strings.TrimRight(cred.URL, "/")
	form := url.Values{
		"username":   {cred.Username},
		"password":   {cred.Password},
		"grant_type": {"password"},
	}
	body, err := fetch(ctx, a.opts, nil, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/user/login", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if isAuthRejection(err) {
		return Session{}, fmt.Errorf("%w: lotek rejected the credentials for %s: %v", models.ErrFatalConfig, cred.Username, err)
	}
	if err != nil {
		return Session{}, fmt.Errorf("lotek login failed: %w", err)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return Session{}, fmt.Errorf("failed to decode lotek token: %w", err)
	}
	if token.AccessToken == "" {
		return Session{}, fmt.Errorf("%w: lotek login returned no access token for %s", models.ErrFatalConfig, cred.Username)
	}
	return Session{BaseURL: base, Token: token.AccessToken, Username: cred.Username}, nil
}

// ListDevices returns the account's devices and registers each one.
// Registry failures are logged and do not drop the device.
func (a *LotekAdapter) ListDevices(ctx context.Context, s Session) ([]models.DeviceRef, error) {
	body, err := getJSON(ctx, a.opts, s.BaseURL+"/devices", s.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to list lotek devices: %w", err)
	}
	var listed []models.LotekDevice
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, fmt.Errorf("%w: lotek device list: %v", models.ErrMalformedPayload, err)
	}

	refs := make([]models.DeviceRef, 0, len(listed))
	for _, d := range listed {
		if a.registry != nil {
			if err := a.registry.UpsertLotekDevice(ctx, d); err != nil {
				a.opts.Logger.Warn("Lotek: failed to register device", "device_id", d.DeviceID, "error", err)
			}
		}
		refs = append(refs, models.DeviceRef{ID: strconv.FormatInt(d.DeviceID, 10), Label: d.SpecialID})
	}
	return refs, nil
}

// FetchRecords returns GPS records for the device inside w. Records
// missing RecDateTime or DeviceID are dropped and logged.
func (a *LotekAdapter) FetchRecords(ctx context.Context, s Session, d models.DeviceRef, w models.Window) ([]models.RawRecord, error) {
	q := url.Values{}
	q.Set("deviceId", d.ID)
	q.Set("dtStart", utils.FormatVendorTime(w.Since))
	if !w.Until.IsZero() {
		q.Set("dtEnd", utils.FormatVendorTime(w.Until))
	}
	body, err := getJSON(ctx, a.opts, s.BaseURL+"/gps?"+q.Encode(), s.Token)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}

	kept := records[:0]
	for _, r := range records {
		if hasValue(r, "RecDateTime") && hasValue(r, "DeviceID") {
			kept = append(kept, r)
		}
	}
	if dropped := len(records) - len(kept); dropped > 0 {
		a.opts.Logger.Warn("Lotek: dropped records without RecDateTime or DeviceID", "device_id", d.ID, "dropped", dropped)
	}
	return kept, nil
}

type lotekAlert struct {
	DeviceID        int64    `json:"nDeviceID"`
	AlertType       string   `json:"strAlertType"`
	Timestamp       string   `json:"dtTimestamp"`
	TimestampCancel string   `json:"dtTimestampCancel"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

// FetchAlerts returns every alert the account currently reports. Alerts
// with an unreadable timestamp are skipped.
func (a *LotekAdapter) FetchAlerts(ctx context.Context, s Session) ([]models.VendorAlert, error) {
	body, err := getJSON(ctx, a.opts, s.BaseURL+"/alerts", s.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lotek alerts: %w", err)
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: lotek alerts are not an array", models.ErrMalformedPayload)
	}
	var raw []lotekAlert
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: lotek alerts: %v", models.ErrMalformedPayload, err)
	}

	alerts := make([]models.VendorAlert, 0, len(raw))
	for _, r := range raw {
		detected, err := utils.ParseVendorTime(r.Timestamp)
		if err != nil {
			a.opts.Logger.Warn("Lotek: skipping alert with bad timestamp", "device_id", r.DeviceID, "error", err)
			continue
		}
		alert := models.VendorAlert{
			DeviceID:   r.DeviceID,
			Type:       r.AlertType,
			DetectedAt: detected,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
		}
		if c := strings.TrimSpace(r.TimestampCancel); c != "" && c != utils.ZeroVendorTime {
			canceled, err := utils.ParseVendorTime(c)
			if err != nil {
				canceled = detected
			}
			if !canceled.IsZero() {
				alert.CanceledAt = &canceled
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
