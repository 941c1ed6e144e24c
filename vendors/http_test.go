package vendors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bctw/collector/models"
)

func testOptions() HTTPOptions {
	return HTTPOptions{
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		RetryWait:      time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}.withDefaults()
}

func TestDecodeRecords(t *testing.T) {
	records, err := decodeRecords([]byte(`[{"a":1},[{"b":2},[{"c":3}]],"noise",null]`))
	if err != nil {
		t.Fatalf("decodeRecords() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 flattened objects", len(records))
	}
}

func TestDecodeRecordsRejectsNonArray(t *testing.T) {
	for _, body := range []string{`{"error":"no data"}`, `"x"`, `null`, `not json`} {
		_, err := decodeRecords([]byte(body))
		if !errors.Is(err, models.ErrMalformedPayload) {
			t.Errorf("decodeRecords(%s) error = %v, want ErrMalformedPayload", body, err)
		}
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	body, err := getJSON(context.Background(), testOptions(), srv.URL, "")
	if err != nil {
		t.Fatalf("getJSON() error = %v", err)
	}
	if string(body) != "[]" || hits.Load() != 3 {
		t.Fatalf("body %q after %d hits", body, hits.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := getJSON(context.Background(), testOptions(), srv.URL, "")
	if !errors.Is(err, models.ErrTransientFetch) {
		t.Fatalf("getJSON() error = %v, want ErrTransientFetch", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestFetchPerRequestDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o := testOptions()
	o.RequestTimeout = 50 * time.Millisecond
	o.MaxRetries = 0
	start := time.Now()
	_, err := getJSON(context.Background(), o, srv.URL, "")
	if !errors.Is(err, models.ErrTransientFetch) {
		t.Fatalf("getJSON() error = %v, want ErrTransientFetch", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("request was not bounded by its deadline")
	}
}
