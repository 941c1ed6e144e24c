// services/credentials.go
package services

import (
	"context"
	"fmt"

	"github.com/bctw/collector/models"
)

// CredentialSource looks credentials up by name.
type CredentialSource interface {
	GetCredentials(ctx context.Context, name string) (models.VendorCredential, error)
}

// VendorCredentialConfig says where a vendor's credential comes from. Name
// selects a stored credential; otherwise Fallback is used as given.
type VendorCredentialConfig struct {
	Name     string
	Fallback models.VendorCredential
}

// CredentialResolver picks the stored or configured credential per vendor.
type CredentialResolver struct {
	store    CredentialSource
	settings map[models.Vendor]VendorCredentialConfig
}

func NewCredentialResolver(store CredentialSource, settings map[models.Vendor]VendorCredentialConfig) *CredentialResolver {
	return &CredentialResolver{store: store, settings: settings}
}

// Resolve returns the credential for vendor. Every failure wraps
// models.ErrFatalConfig.
func (r *CredentialResolver) Resolve(ctx context.Context, vendor models.Vendor) (models.VendorCredential, error) {
	cfg := r.settings[vendor]
	if cfg.Name != "" {
		if r.store == nil {
			return models.VendorCredential{}, fmt.Errorf("%w: no credential store for %s", models.ErrFatalConfig, vendor)
		}
		cred, err := r.store.GetCredentials(ctx, cfg.Name)
		if err != nil {
			return models.VendorCredential{}, fmt.Errorf("%w: %w", models.ErrFatalConfig, err)
		}
		cred.Vendor = vendor
		return cred, nil
	}
	if cfg.Fallback.URL == "" {
		return models.VendorCredential{}, fmt.Errorf("%w: no credential configured for %s", models.ErrFatalConfig, vendor)
	}
	cred := cfg.Fallback
	cred.Vendor = vendor
	return cred, nil
}
