// vendors/http.go
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/bctw/collector/models"
)

const maxResponseBytes = 64 << 20

// StatusError is a non-2xx vendor response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// isAuthRejection reports whether err is a vendor refusing the credentials.
func isAuthRejection(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusBadRequest || se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
}

// fetch runs one HTTP exchange with a per-attempt deadline, retrying
// network errors, 429 and 5xx responses with exponential backoff. Every
// failure it returns wraps models.ErrTransientFetch.
func fetch(ctx context.Context, o HTTPOptions, client *http.Client, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if client == nil {
		client = o.Client
	}
	var body []byte
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, o.RequestTimeout)
		defer cancel()

		req, err := newReq(reqCtx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v", models.ErrTransientFetch, req.Method, req.URL.Redacted(), err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", models.ErrTransientFetch, req.URL.Redacted(), err)
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: %w", models.ErrTransientFetch, &StatusError{URL: req.URL.Redacted(), Code: resp.StatusCode})
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("%w: %w", models.ErrTransientFetch, &StatusError{URL: req.URL.Redacted(), Code: resp.StatusCode}))
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.RetryWait
	policy.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(o.MaxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func getJSON(ctx context.Context, o HTTPOptions, url, token string) ([]byte, error) {
	return fetch(ctx, o, nil, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	})
}

// decodeRecords expects a JSON array of objects. Nested arrays are
// flattened. Any other top-level value yields models.ErrMalformedPayload.
func decodeRecords(body []byte) ([]models.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	items, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %s", models.ErrMalformedPayload, jsonKind(payload))
	}
	var records []models.RawRecord
	var walk func([]any)
	walk = func(items []any) {
		for _, item := range items {
			switch v := item.(type) {
			case map[string]any:
				records = append(records, models.RawRecord(v))
			case []any:
				walk(v)
			}
		}
	}
	walk(items)
	return records, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// hasValue reports whether a record carries a non-empty value under key.
func hasValue(r models.RawRecord, key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}
