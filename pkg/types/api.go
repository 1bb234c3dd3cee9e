package types

// NamesRequest carries an ordered list of bundle names.
type NamesRequest struct {
	// Bundle names; unknown names are ignored.
	// example: ["SceneryDesert","WeaponAK47"]
	Names []string `json:"names"`
}

// ActionResponse is returned by cache/request/unload endpoints.
type ActionResponse struct {
	// Bundle name, or empty for set operations.
	Name string `json:"name,omitempty"`
	// True when the action is already satisfied (cached for cache, ready for request).
	Satisfied bool `json:"satisfied"`
	// Derived status after the action, for single-bundle calls.
	// example: downloading
	Status string `json:"status,omitempty" example:"downloading"`
}

// BundlesResponse wraps the list of bundles returned by GET /bundles.
type BundlesResponse struct {
	Bundles []Bundle `json:"bundles"`
}

// DownloadStateResponse aggregates progress across a set of bundles.
type DownloadStateResponse struct {
	// One of cached, downloading, error_no_internet_connection,
	// error_download_failed, error_no_bundles.
	// example: downloading
	Status string `json:"status" example:"downloading"`
	// example: 140
	BytesAvailable int64 `json:"bytes_available" example:"140"`
	// example: 200
	BytesTotal int64 `json:"bytes_total" example:"200"`
	// BytesAvailable / BytesTotal.
	// example: 0.7
	Progress float64 `json:"progress" example:"0.7"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: bundle not found: Foo
	Error string `json:"error" example:"bundle not found: Foo"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a manifest has been set.
	ManifestReady bool `json:"manifest_ready"`
	// Number of bundles in the manifest.
	// example: 120
	BundleCount int `json:"bundle_count" example:"120"`
	// Count of bundles per derived state.
	States map[string]int `json:"states"`
	// Names in the download queue, FIFO order.
	Queue []string `json:"queue"`
	// Names in the loaded set, oldest first.
	Loaded []string `json:"loaded"`
	// Active network transfers.
	// example: 3
	ActiveTransfers int `json:"active_transfers" example:"3"`
	// Active local loads.
	ActiveLoads int `json:"active_loads"`
	// Concurrency cap for network transfers.
	// example: 6
	MaxTransfers int `json:"max_transfers" example:"6"`
	// Capacity of the loaded set.
	// example: 30
	MaxLoaded int `json:"max_loaded" example:"30"`
	// Successful downloads since start.
	DownloadsTotal uint64 `json:"downloads_total"`
	// Failed downloads and loads since start.
	ErrorsTotal uint64 `json:"errors_total"`
	// Materializations into memory since start.
	LoadsTotal uint64 `json:"loads_total"`
	// Loaded-set evictions since start.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
