package types

// Bundle is the API view of one catalog entry and its current lifecycle state.
type Bundle struct {
	// Unique bundle name.
	// example: WeaponAK47
	Name string `json:"name" example:"WeaponAK47"`
	// Catalog version; part of the cache key.
	// example: 3
	Version int `json:"version" example:"3"`
	// Declared size in bytes.
	// example: 1048576
	Size int64 `json:"size" example:"1048576"`
	// Shipped inside the application package.
	Included bool `json:"included"`
	// Scene bundle (owners are looked up by scene name).
	IsScene bool `json:"is_scene"`
	// Names of bundles this one depends on, in load order.
	Dependencies []string `json:"dependencies,omitempty"`
	// Derived lifecycle state: unknown, downloading, cached, loading, ready.
	// example: cached
	State string `json:"state" example:"cached"`
	// Sticky "keep loaded" marker.
	Requested bool `json:"requested"`
	// Present in the download queue.
	Queued bool `json:"queued"`
	// Bytes available locally or transferred so far.
	// example: 524288
	AvailableBytes int64 `json:"available_bytes" example:"524288"`
	// Last recorded error class (empty when none).
	// example: download_failed
	LastError string `json:"last_error,omitempty" example:"download_failed"`
	// Unix time of the last recorded error.
	LastErrorUnix int64 `json:"last_error_unix,omitempty"`
	// Unix time the bundle was last touched while loaded.
	LastUsedUnix int64 `json:"last_used_unix,omitempty"`
}
