package manager

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"bundled/internal/fetch"
	"bundled/internal/netstate"
	"bundled/internal/store"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxTransfers     = 6
	constrainedMaxTransfers = 3
	constrainedPlatform     = "android"
	defaultMaxLoadedBundles = 30
	defaultRetryInterval    = 2 * time.Second
	defaultIdleGrace        = 5 * time.Second
	defaultIdleShortGrace   = 500 * time.Millisecond
	defaultTickInterval     = 100 * time.Millisecond
	defaultCacheRoot        = "bundles"
)

// ManagerConfig encapsulates all tunables and collaborators for Manager construction.
type ManagerConfig struct {
	// BaseURL is the platform content prefix. When empty it is derived from
	// ContentRoot and Platform.
	BaseURL     string
	ContentRoot string
	Platform    string

	// Store is the local persistent cache (default: in-memory).
	Store *store.Store
	// Package holds bundles shipped with the application, one file per name.
	Package afero.Fs

	Fetcher      Fetcher
	Loader       Loader
	Connectivity Connectivity
	Publisher    EventPublisher
	Logger       *zerolog.Logger

	MaxTransfers     int
	MaxLoadedBundles int
	RetryInterval    time.Duration
	// StallTimeout applies to the default fetcher only.
	StallTimeout   time.Duration
	IdleGrace      time.Duration
	IdleShortGrace time.Duration
	TickInterval   time.Duration

	// Prefetch lists bundle groups warmed while idle, highest priority first.
	Prefetch []PrefetchGroup

	// UsagePath persists last-used and requested markers across restarts.
	UsagePath string
	UsageFS   afero.Fs

	// Now is the manager clock (default time.Now).
	Now func() time.Time
}

// transferCap returns the platform default concurrency cap.
func transferCap(platform string) int {
	if strings.EqualFold(platform, constrainedPlatform) {
		return constrainedMaxTransfers
	}
	return defaultMaxTransfers
}

func (cfg *ManagerConfig) applyDefaults() {
	if cfg.Store == nil {
		cfg.Store = store.New(afero.NewMemMapFs(), defaultCacheRoot)
	}
	if cfg.Package == nil {
		cfg.Package = afero.NewMemMapFs()
	}
	if cfg.Fetcher == nil {
		opts := fetch.DefaultOptions()
		if cfg.StallTimeout != 0 {
			opts.StallTimeout = cfg.StallTimeout
		}
		cfg.Fetcher = fetch.NewClient(opts)
	}
	if cfg.Loader == nil {
		cfg.Loader = BlobLoader{}
	}
	if cfg.Connectivity == nil {
		cfg.Connectivity = netstate.NewStatic(netstate.ReachableViaLocalArea)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.MaxTransfers <= 0 {
		cfg.MaxTransfers = transferCap(cfg.Platform)
	}
	if cfg.MaxLoadedBundles <= 0 {
		cfg.MaxLoadedBundles = defaultMaxLoadedBundles
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = defaultIdleGrace
	}
	if cfg.IdleShortGrace <= 0 {
		cfg.IdleShortGrace = defaultIdleShortGrace
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.UsageFS == nil {
		cfg.UsageFS = afero.NewOsFs()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}
