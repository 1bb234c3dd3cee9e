package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"bundled/internal/fetch"
	"bundled/internal/manifest"
	"bundled/internal/store"
)

type Manager struct {
	mu sync.Mutex

	store     *store.Store
	pkg       afero.Fs
	fetcher   Fetcher
	loader    Loader
	conn      Connectivity
	publisher EventPublisher
	log       zerolog.Logger
	now       func() time.Time

	baseURL        string
	maxTransfers   int
	maxLoaded      int
	retryInterval  time.Duration
	idleGrace      time.Duration
	idleShortGrace time.Duration
	tickInterval   time.Duration
	prefetch       []PrefetchGroup
	usagePath      string
	usageFS        afero.Fs

	manifest *manifest.Manifest
	states   map[string]*BundleState
	// queue holds pending downloads in FIFO order.
	queue []*BundleState
	// loaded holds ready, non-included bundles, oldest first.
	loaded       []*BundleState
	activeLoads  int
	idleAt       time.Time
	prefetchDone bool
	usage        map[string]usageRecord

	// pending events and handles are released after the lock is dropped.
	pending []Event
	closers []Handle

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
	closeOnce sync.Once
	startTime time.Time

	downloadsTotal uint64
	errorsTotal    uint64
	loadsTotal     uint64
	evictionsTotal uint64
}

// New returns a Manager fetching from baseURL into st with package defaults
// for everything else.
func New(baseURL string, st *store.Store) *Manager {
	return NewWithConfig(ManagerConfig{BaseURL: baseURL, Store: st})
}

// NewWithConfig constructs a Manager from ManagerConfig. The manager is not
// ready until a manifest is set.
func NewWithConfig(cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:          cfg.Store,
		pkg:            cfg.Package,
		fetcher:        cfg.Fetcher,
		loader:         cfg.Loader,
		conn:           cfg.Connectivity,
		publisher:      cfg.Publisher,
		log:            *cfg.Logger,
		now:            cfg.Now,
		baseURL:        cfg.BaseURL,
		maxTransfers:   cfg.MaxTransfers,
		maxLoaded:      cfg.MaxLoadedBundles,
		retryInterval:  cfg.RetryInterval,
		idleGrace:      cfg.IdleGrace,
		idleShortGrace: cfg.IdleShortGrace,
		tickInterval:   cfg.TickInterval,
		prefetch:       append([]PrefetchGroup(nil), cfg.Prefetch...),
		usagePath:      cfg.UsagePath,
		usageFS:        cfg.UsageFS,
		states:         make(map[string]*BundleState),
		ctx:            ctx,
		cancel:         cancel,
	}
	if m.baseURL == "" && cfg.ContentRoot != "" {
		base, err := fetch.PlatformBaseURL(cfg.ContentRoot, cfg.Platform)
		if err != nil {
			m.log.Error().Err(err).Msg("content root")
		}
		m.baseURL = base
	}
	m.startTime = m.now()
	m.loadUsage()
	return m
}

// unlock releases m.mu, then publishes buffered events and closes released
// handles. Every critical section that may emit must end with unlock.
func (m *Manager) unlock() {
	events := m.pending
	closers := m.closers
	pub := m.publisher
	m.pending = nil
	m.closers = nil
	m.mu.Unlock()
	for _, h := range closers {
		if err := h.Close(); err != nil {
			m.log.Warn().Err(err).Msg("close bundle handle")
		}
	}
	for _, e := range events {
		pub.Publish(e)
	}
}

func (m *Manager) emit(name, bundle string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.pending = append(m.pending, Event{Name: name, Bundle: bundle, Fields: fields})
}

// stateOf maps a descriptor to its state by name. Descriptors from another
// manifest resolve as long as the name exists.
func (m *Manager) stateOf(b *manifest.Bundle) *BundleState {
	if b == nil {
		return nil
	}
	return m.states[b.Name]
}

// Ready reports whether a manifest has been set.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest != nil
}

// Manifest returns the current manifest, or nil.
func (m *Manager) Manifest() *manifest.Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest
}

// Lookup returns the descriptor named name, or nil when unknown or before a
// manifest is set.
func (m *Manager) Lookup(name string) *manifest.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return nil
	}
	return m.manifest.Lookup(name)
}

// BaseURL returns the platform content prefix bundles are fetched from.
func (m *Manager) BaseURL() string { return m.baseURL }

func (m *Manager) String() string {
	return fmt.Sprintf("manager(base=%s, transfers=%d, loaded=%d)", m.baseURL, m.maxTransfers, m.maxLoaded)
}
