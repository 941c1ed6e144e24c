// database/credential_store.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bctw/collector/models"
)

// CredentialStore reads vendor credentials through the store's decrypting
// function. The key is loaded once at startup and reused for every call.
type CredentialStore struct {
	db  DBTX
	key string
}

func NewCredentialStore(db DBTX, key string) *CredentialStore {
	return &CredentialStore{db: db, key: key}
}

// GetCredentials returns the credential stored under name. A missing row or
// an empty URL yields models.ErrCredentialNotFound.
func (s *CredentialStore) GetCredentials(ctx context.Context, name string) (models.VendorCredential, error) {
	if strings.TrimSpace(name) == "" {
		return models.VendorCredential{}, fmt.Errorf("empty credential name: %w", models.ErrCredentialNotFound)
	}
	if s.key == "" {
		return models.VendorCredential{}, fmt.Errorf("credential key is not configured: %w", models.ErrFatalConfig)
	}

	var cred models.VendorCredential
	var username, password, url *string
	err := s.db.QueryRow(ctx,
		`SELECT username, password, url FROM get_collar_vendor_credentials($1, $2)`,
		name, s.key,
	).Scan(&username, &password, &url)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VendorCredential{}, fmt.Errorf("credential %q: %w", name, models.ErrCredentialNotFound)
	}
	if err != nil {
		return models.VendorCredential{}, fmt.Errorf("failed to query credential %q: %w", name, err)
	}
	if url == nil || strings.TrimSpace(*url) == "" {
		return models.VendorCredential{}, fmt.Errorf("credential %q has no url: %w", name, models.ErrCredentialNotFound)
	}

	cred.Name = name
	cred.URL = strings.TrimRight(*url, "/")
	if username != nil {
		cred.Username = *username
	}
	if password != nil {
		cred.Password = *password
	}
	return cred, nil
}
