package vendors

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bctw/collector/models"
)

type recordingRegistry struct {
	mu      sync.Mutex
	devices []models.LotekDevice
}

func (r *recordingRegistry) UpsertLotekDevice(_ context.Context, d models.LotekDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, d)
	return nil
}

func lotekServer(t *testing.T, gps string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "user" || r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"access_token":"tok-1"}`)
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/devices", authed(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"nDeviceID":101,"strSpecialID":"A-101","dtCreated":"2020-01-01T00:00:00","strSatellite":"Iridium"},{"nDeviceID":102}]`)
	}))
	mux.HandleFunc("/gps", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("deviceId") != "101" || r.URL.Query().Get("dtStart") != "2021-05-01T00:00:00" {
			t.Errorf("gps query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, gps)
	}))
	mux.HandleFunc("/alerts", authed(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"nDeviceID":101,"strAlertType":"Mortality","dtTimestamp":"2021-05-02T03:04:05","dtTimestampCancel":"0001-01-01T00:00:00","latitude":0,"longitude":0},
			{"nDeviceID":102,"strAlertType":"Malfunction","dtTimestamp":"2021-05-02T03:04:05","dtTimestampCancel":"2021-05-03T00:00:00","latitude":50.1,"longitude":-120.2}
		]`)
	}))
	return httptest.NewServer(mux)
}

func TestLotekAdapterFlow(t *testing.T) {
	srv := lotekServer(t, `[{"DeviceID":101,"RecDateTime":"2021-05-01T06:00:00","Latitude":50.1,"Longitude":-120.2},{"DeviceID":101},{"RecDateTime":"2021-05-01T07:00:00"}]`)
	defer srv.Close()

	reg := &recordingRegistry{}
	a := NewLotekAdapter(testOptions(), reg)
	ctx := context.Background()

	s, err := a.Open(ctx, models.VendorCredential{Username: "user", Password: "pw", URL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Token != "tok-1" || s.BaseURL != srv.URL {
		t.Fatalf("session = %+v", s)
	}

	devices, err := a.ListDevices(ctx, s)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "101" || devices[0].Label != "A-101" {
		t.Fatalf("devices = %+v", devices)
	}
	if len(reg.devices) != 2 {
		t.Fatalf("registered = %d, want 2", len(reg.devices))
	}

	w := models.Window{Since: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)}
	records, err := a.FetchRecords(ctx, s, devices[0], w)
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 after filtering incomplete rows", len(records))
	}
}

func TestLotekOpenRejectsBadCredentials(t *testing.T) {
	srv := lotekServer(t, `[]`)
	defer srv.Close()

	_, err := NewLotekAdapter(testOptions(), nil).Open(context.Background(), models.VendorCredential{Username: "user", Password: "wrong", URL: srv.URL})
	if !errors.Is(err, models.ErrFatalConfig) {
		t.Fatalf("Open() error = %v, want ErrFatalConfig", err)
	}
	if errors.Is(err, models.ErrTransientFetch) {
		t.Errorf("Open() error = %v, should not be transient", err)
	}
}

func TestLotekOpenLoginResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		fatal     bool
		transient bool
	}{
		{"no token", http.StatusOK, `{"token_type":"bearer"}`, true, false},
		{"forbidden", http.StatusForbidden, ``, true, false},
		{"unavailable", http.StatusServiceUnavailable, ``, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewLotekAdapter(testOptions(), nil).Open(context.Background(), models.VendorCredential{Username: "user", Password: "pw", URL: srv.URL})
			if err == nil {
				t.Fatal("Open() error = nil")
			}
			if got := errors.Is(err, models.ErrFatalConfig); got != tt.fatal {
				t.Errorf("Open() error = %v, fatal = %v, want %v", err, got, tt.fatal)
			}
			if got := errors.Is(err, models.ErrTransientFetch); got != tt.transient {
				t.Errorf("Open() error = %v, transient = %v, want %v", err, got, tt.transient)
			}
		})
	}
}

func TestLotekOpenWithoutURL(t *testing.T) {
	_, err := NewLotekAdapter(testOptions(), nil).Open(context.Background(), models.VendorCredential{})
	if !errors.Is(err, models.ErrFatalConfig) {
		t.Fatalf("Open() error = %v, want ErrFatalConfig", err)
	}
}

func TestLotekFetchRecordsMalformed(t *testing.T) {
	srv := lotekServer(t, `{"Message":"An error has occurred."}`)
	defer srv.Close()

	a := NewLotekAdapter(testOptions(), nil)
	s := Session{BaseURL: srv.URL, Token: "tok-1"}
	_, err := a.FetchRecords(context.Background(), s, models.DeviceRef{ID: "101"}, models.Window{Since: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)})
	if !errors.Is(err, models.ErrMalformedPayload) {
		t.Fatalf("FetchRecords() error = %v, want ErrMalformedPayload", err)
	}
}

func TestLotekFetchAlerts(t *testing.T) {
	srv := lotekServer(t, `[]`)
	defer srv.Close()

	alerts, err := NewLotekAdapter(testOptions(), nil).FetchAlerts(context.Background(), Session{BaseURL: srv.URL, Token: "tok-1"})
	if err != nil {
		t.Fatalf("FetchAlerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d", len(alerts))
	}
	if alerts[0].CanceledAt != nil {
		t.Errorf("zero cancel timestamp should mean active, got %v", alerts[0].CanceledAt)
	}
	if alerts[1].CanceledAt == nil {
		t.Error("cancelled alert should carry CanceledAt")
	}
	if alerts[0].Latitude == nil || *alerts[0].Latitude != 0 {
		t.Errorf("Latitude = %v", alerts[0].Latitude)
	}
}
