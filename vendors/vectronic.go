// vendors/vectronic.go
package vendors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/utils"
)

// VectronicRegistry is the local list of Vectronic collars and their keys.
type VectronicRegistry interface {
	ListVectronicDevices(ctx context.Context) ([]models.DeviceRef, error)
	TouchVectronicFetch(ctx context.Context, idCollar string) error
}

// VectronicAdapter fetches positions per collar using the collar key as
// the only credential.
type VectronicAdapter struct {
	opts     HTTPOptions
	registry VectronicRegistry
}

func NewVectronicAdapter(opts HTTPOptions, registry VectronicRegistry) *VectronicAdapter {
	return &VectronicAdapter{opts: opts.withDefaults(), registry: registry}
}

func (a *VectronicAdapter) Vendor() models.Vendor { return models.VendorVectronic }

func (a *VectronicAdapter) Open(_ context.Context, cred models.VendorCredential) (Session, error) {
	if cred.URL == "" {
		return Session{}, fmt.Errorf("vectronic url is not configured: %w", models.ErrFatalConfig)
	}
	return Session{BaseURL: strings.TrimRight(cred.URL, "/")}, nil
}

func (a *VectronicAdapter) ListDevices(ctx context.Context, _ Session) ([]models.DeviceRef, error) {
	devices, err := a.registry.ListVectronicDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectronic devices: %w", err)
	}
	return devices, nil
}

// FetchRecords returns positions for the collar. The collar's last fetch
// time is stamped after every attempt, whatever its outcome.
func (a *VectronicAdapter) FetchRecords(ctx context.Context, s Session, d models.DeviceRef, w models.Window) (records []models.RawRecord, err error) {
	defer a.touch(ctx, d)

	q := url.Values{}
	q.Set("collarkey", d.Key)
	if !w.Since.IsZero() {
		q.Set("afterScts", utils.FormatVendorTime(w.Since))
	}
	if !w.Until.IsZero() {
		q.Set("beforeScts", utils.FormatVendorTime(w.Until))
	}
	endpoint := fmt.Sprintf("%s/%s/gps?%s", s.BaseURL, url.PathEscape(d.ID), q.Encode())

	body, err := getJSON(ctx, a.opts, endpoint, "")
	if err != nil {
		return nil, err
	}
	all, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}

	records = all[:0]
	for _, r := range all {
		if hasValue(r, "idPosition") {
			records = append(records, r)
		}
	}
	if dropped := len(all) - len(records); dropped > 0 {
		a.opts.Logger.Warn("Vectronic: dropped records without idPosition", "device_id", d.ID, "dropped", dropped)
	}
	return records, nil
}

func (a *VectronicAdapter) touch(ctx context.Context, d models.DeviceRef) {
	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.registry.TouchVectronicFetch(touchCtx, d.ID); err != nil {
		a.opts.Logger.Warn("Vectronic: failed to update last fetch", "device_id", d.ID, "error", err)
	}
}
