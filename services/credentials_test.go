// services/credentials_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/bctw/collector/models"
)

func TestResolveStoredCredential(t *testing.T) {
	store := &fakeCredentialStore{creds: map[string]models.VendorCredential{
		"lotek_api": {Username: "bctw", Password: "secret", URL: "https://webservice.lotek.com"},
	}}
	r := NewCredentialResolver(store, map[models.Vendor]VendorCredentialConfig{
		models.VendorLotek: {Name: "lotek_api"},
	})

	cred, err := r.Resolve(context.Background(), models.VendorLotek)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Vendor != models.VendorLotek || cred.Username != "bctw" {
		t.Errorf("Resolve() = %+v", cred)
	}
}

func TestResolveMissingCredentialIsFatal(t *testing.T) {
	store := &fakeCredentialStore{}
	r := NewCredentialResolver(store, map[models.Vendor]VendorCredentialConfig{
		models.VendorATS: {Name: "ats_portal"},
	})

	_, err := r.Resolve(context.Background(), models.VendorATS)
	if !errors.Is(err, models.ErrFatalConfig) {
		t.Fatalf("Resolve() error = %v, want ErrFatalConfig", err)
	}
	if !errors.Is(err, models.ErrCredentialNotFound) {
		t.Errorf("Resolve() error = %v, want it to wrap ErrCredentialNotFound", err)
	}
}

func TestResolveFallback(t *testing.T) {
	r := NewCredentialResolver(nil, map[models.Vendor]VendorCredentialConfig{
		models.VendorVectronic: {Fallback: models.VendorCredential{URL: "https://api.vectronic-wildlife.com/v2/collar"}},
	})

	cred, err := r.Resolve(context.Background(), models.VendorVectronic)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.Vendor != models.VendorVectronic {
		t.Errorf("Resolve().Vendor = %q", cred.Vendor)
	}

	if _, err := r.Resolve(context.Background(), models.VendorLotek); !errors.Is(err, models.ErrFatalConfig) {
		t.Errorf("Resolve(unconfigured) error = %v, want ErrFatalConfig", err)
	}
}
