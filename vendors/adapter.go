// vendors/adapter.go
package vendors

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bctw/collector/models"
)

// Session is the authenticated state of one vendor run. It is passed
// explicitly to every call and never shared between runs.
type Session struct {
	BaseURL  string
	Token    string
	Username string
	// HTTP is set when the session depends on cookies.
	HTTP *http.Client
}

// Adapter is implemented once per vendor.
type Adapter interface {
	Vendor() models.Vendor
	Open(ctx context.Context, cred models.VendorCredential) (Session, error)
	ListDevices(ctx context.Context, s Session) ([]models.DeviceRef, error)
	FetchRecords(ctx context.Context, s Session, d models.DeviceRef, w models.Window) ([]models.RawRecord, error)
}

// AlertSource is implemented by vendors that report device alerts.
type AlertSource interface {
	FetchAlerts(ctx context.Context, s Session) ([]models.VendorAlert, error)
}

// HTTPOptions configures vendor HTTP calls.
type HTTPOptions struct {
	Client         *http.Client
	RequestTimeout time.Duration
	MaxRetries     int
	RetryWait      time.Duration
	Logger         *slog.Logger
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
