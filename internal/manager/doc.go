// Package manager owns the lifecycle of content bundles from the remote
// content root to the local cache and on into memory. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: public enums and collaborator interfaces (Status, ErrorKind,
//     DownloadState, Fetcher, Loader, Handle, Connectivity).
//   - state.go: BundleState and the pure status derivation.
//   - errors.go: error values and helpers (IsBundleNotFound, IsNoBundles).
//   - helpers.go: small utilities (integrity check, slice helpers).
//   - queue.go: download queue membership.
//   - admission.go: the scheduling pass (Tick) and transfer slots.
//   - download.go: network transfers and their commit step.
//   - ensure.go: materializing cached bundles into memory.
//   - evict.go: the bounded loaded set and its LRU eviction.
//   - unload.go: Unload and Uncache.
//   - facade.go, resolve.go: the public Cache/Request/IsCached/IsReady/
//     DownloadState surface and caller-supplied name resolvers.
//   - manifest.go: SetManifest, LoadManifest and manifest sources.
//   - prefetch.go: idle cache warming.
//   - status_report.go: Info and Status projections.
//   - lru_persist.go: last-used/requested metadata across restarts.
//   - ops.go: Run loop and Close.
//
// All mutable state is guarded by one mutex. Network and disk work happens in
// per-transfer goroutines that commit their results back under the lock; a
// result whose transfer is no longer current is discarded.
package manager
