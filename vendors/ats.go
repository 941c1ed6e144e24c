// vendors/ats.go
package vendors

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bctw/collector/models"
)

// ATSAdapter drives the ATS web portal. The account is the only "device":
// each fetch downloads both exports, merges them and returns the rows
// that fall inside the window.
type ATSAdapter struct {
	opts            HTTPOptions
	portal          PortalOptions
	archiveDir      string
	deleteDownloads bool
}

// ATSOptions configures what happens to exports once they are parsed.
type ATSOptions struct {
	Portal          PortalOptions
	ArchiveDir      string
	DeleteDownloads bool
}

func NewATSAdapter(opts HTTPOptions, ats ATSOptions) *ATSAdapter {
	return &ATSAdapter{
		opts:            opts.withDefaults(),
		portal:          ats.Portal,
		archiveDir:      ats.ArchiveDir,
		deleteDownloads: ats.DeleteDownloads,
	}
}

func (a *ATSAdapter) Vendor() models.Vendor { return models.VendorATS }

func (a *ATSAdapter) Open(ctx context.Context, cred models.VendorCredential) (Session, error) {
	if cred.URL == "" {
		return Session{}, fmt.Errorf("ats url is not configured: %w", models.ErrFatalConfig)
	}
	if a.portal.LoginFormID == "" || a.portal.UsernameFieldID == "" || a.portal.PasswordFieldID == "" {
		return Session{}, fmt.Errorf("ats login form selectors are not configured: %w", models.ErrFatalConfig)
	}
	client, err := newPortalClient(a.opts.RequestTimeout)
	if err != nil {
		return Session{}, err
	}
	if _, err := portalLogin(ctx, a.opts, client, a.portal, cred.URL, cred.Username, cred.Password); err != nil {
		return Session{}, err
	}
	return Session{BaseURL: cred.URL, Username: cred.Username, HTTP: client}, nil
}

func (a *ATSAdapter) ListDevices(_ context.Context, s Session) ([]models.DeviceRef, error) {
	return []models.DeviceRef{{ID: s.Username, Label: "ATS account"}}, nil
}

func (a *ATSAdapter) FetchRecords(ctx context.Context, s Session, _ models.DeviceRef, w models.Window) ([]models.RawRecord, error) {
	if s.HTTP == nil {
		return nil, fmt.Errorf("ats session is not logged in")
	}
	pageURL, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ATS url %q: %w", s.BaseURL, err)
	}
	page, err := getDocument(ctx, a.opts, s.HTTP, pageURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load ATS account page: %w", err)
	}

	var files []string
	defer func() { a.disposeDownloads(files) }()

	transmissions, err := downloadExport(ctx, a.opts, s.HTTP, a.portal, page, pageURL, ATSTransmissionsLabel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransientFetch, err)
	}
	files = append(files, transmissions)
	readings, err := downloadExport(ctx, a.opts, s.HTTP, a.portal, page, pageURL, ATSDataPointsLabel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransientFetch, err)
	}
	files = append(files, readings)

	records, skipped, err := ReadATSFiles(readings, transmissions)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		a.opts.Logger.Warn("ATS: skipped readings with unreadable dates", "skipped", skipped)
	}
	return filterWindow(records, w), nil
}

// disposeDownloads deletes or archives exports once parsed.
func (a *ATSAdapter) disposeDownloads(files []string) {
	for _, f := range files {
		if a.deleteDownloads || a.archiveDir == "" {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				a.opts.Logger.Warn("ATS: failed to delete download", "file", f, "error", err)
			}
			continue
		}
		if err := os.MkdirAll(a.archiveDir, 0o755); err != nil {
			a.opts.Logger.Warn("ATS: failed to create archive directory", "dir", a.archiveDir, "error", err)
			continue
		}
		dest := filepath.Join(a.archiveDir, filepath.Base(f))
		if err := os.Rename(f, dest); err != nil {
			a.opts.Logger.Warn("ATS: failed to archive download", "file", f, "error", err)
		}
	}
}
