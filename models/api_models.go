// models/api_models.go
package models

// FetchTelemetryRequest is one element of the body accepted by
// /api/admin/fetch-telemetry. Dates are RFC 3339 or YYYY-MM-DD.
type FetchTelemetryRequest struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Vendor string   `json:"vendor"`
	IDs    []string `json:"ids"`
}

// DeviceFetchResult reports a manual fetch for one device.
type DeviceFetchResult struct {
	DeviceID     string `json:"device_id"`
	Vendor       Vendor `json:"vendor"`
	RecordsFound int    `json:"records_found"`
	Inserted     int    `json:"inserted"`
	Error        string `json:"error,omitempty"`
}

// RunSummary is the outcome of one vendor run.
type RunSummary struct {
	RunID          string `json:"run_id"`
	Vendor         Vendor `json:"vendor"`
	Devices        int    `json:"devices"`
	DevicesFailed  int    `json:"devices_failed"`
	RecordsFetched int    `json:"records_fetched"`
	RowsInserted   int    `json:"rows_inserted"`
	AlertsInserted int    `json:"alerts_inserted"`
}
