// handlers/admin_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bctw/collector/models"
	"github.com/bctw/collector/utils"
)

// DeviceFetcher runs an on-demand fetch for listed devices.
type DeviceFetcher interface {
	FetchDevices(ctx context.Context, vendor models.Vendor, ids []string, window models.Window) ([]models.DeviceFetchResult, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminHandler serves the manual fetch and health endpoints.
type AdminHandler struct {
	fetcher DeviceFetcher
	db      Pinger
	logger  *slog.Logger
}

func NewAdminHandler(fetcher DeviceFetcher, db Pinger, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{fetcher: fetcher, db: db, logger: logger}
}

// Routes registers the handler's endpoints on a new mux.
func (h *AdminHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/api/admin/fetch-telemetry", h.FetchTelemetry)
	return mux
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Handler: failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.logger.Warn("Handler: API error", "status", code, "message", message)
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// Health checks the database connection.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Handler: health check failed", "error", err)
		h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "database connection error"})
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FetchTelemetry handles POST /api/admin/fetch-telemetry with a JSON array
// of {start, end, vendor, ids} and answers with one result per device.
func (h *AdminHandler) FetchTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	defer r.Body.Close()

	var reqs []models.FetchTelemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	type job struct {
		vendor models.Vendor
		ids    []string
		window models.Window
	}
	jobs := make([]job, 0, len(reqs))
	for i, req := range reqs {
		vendor, err := models.ParseVendor(req.Vendor)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("request %d: %v", i, err))
			return
		}
		window, err := parseWindow(req.Start, req.End)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("request %d: %v", i, err))
			return
		}
		jobs = append(jobs, job{vendor: vendor, ids: req.IDs, window: window})
	}

	results := []models.DeviceFetchResult{}
	for _, j := range jobs {
		out, err := h.fetcher.FetchDevices(r.Context(), j.vendor, j.ids, j.window)
		if errors.Is(err, models.ErrFatalConfig) {
			h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("%s is not configured: %v", j.vendor, err))
			return
		}
		if err != nil {
			h.respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch %s telemetry: %v", j.vendor, err))
			return
		}
		results = append(results, out...)
	}
	h.respondWithJSON(w, http.StatusOK, results)
}

func parseWindow(start, end string) (models.Window, error) {
	if start == "" {
		return models.Window{}, fmt.Errorf("missing 'start'")
	}
	since, err := utils.ParseVendorTime(start)
	if err != nil {
		return models.Window{}, fmt.Errorf("invalid 'start': %w", err)
	}
	w := models.Window{Since: since}
	if end != "" {
		until, err := utils.ParseVendorTime(end)
		if err != nil {
			return models.Window{}, fmt.Errorf("invalid 'end': %w", err)
		}
		if until.Before(since) {
			return models.Window{}, fmt.Errorf("'end' is before 'start'")
		}
		w.Until = until
	}
	return w, nil
}
