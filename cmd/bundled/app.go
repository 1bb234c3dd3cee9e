package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"bundled/internal/common/fsutil"
	"bundled/internal/config"
	"bundled/internal/fetch"
	"bundled/internal/manager"
	"bundled/internal/manifest"
	"bundled/internal/netstate"
	"bundled/internal/store"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	baseURL string
	store   *store.Store
	pkg     afero.Fs
	fetcher *fetch.Client
}

func newApp(opts *options) (*app, error) {
	cfg := opts.cfg
	a := &app{cfg: cfg, log: opts.log, store: store.NewOS(cfg.CacheDir)}
	if cfg.ContentRoot != "" {
		base, err := fetch.PlatformBaseURL(cfg.ContentRoot, cfg.Platform)
		if err != nil {
			return nil, err
		}
		a.baseURL = base
	}
	fo := fetch.DefaultOptions()
	if d := cfg.StallTimeout.Std(); d > 0 {
		fo.StallTimeout = d
	}
	a.fetcher = fetch.NewClient(fo)

	switch {
	case cfg.PackageDir == "":
		a.pkg = afero.NewMemMapFs()
	case fsutil.IsDir(cfg.PackageDir):
		a.pkg = afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.PackageDir))
	default:
		a.log.Warn().Str("package_dir", cfg.PackageDir).Msg("package directory not found; no bundles are included")
		a.pkg = afero.NewMemMapFs()
	}
	return a, nil
}

// manifestSource prefers a catalog shipped in the package directory over the
// remote one.
func (a *app) manifestSource() manager.ManifestSource {
	src := manager.FirstOf{manager.PackageManifest{FS: a.pkg, Name: a.cfg.ManifestName}}
	if a.baseURL != "" {
		src = append(src, manager.RemoteManifest{Fetcher: a.fetcher, URL: a.baseURL + a.cfg.ManifestName})
	}
	return src
}

func (a *app) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	data, format, err := a.manifestSource().Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return manifest.Decode(data, format)
}

func (a *app) connectivity() (manager.Connectivity, error) {
	if strings.EqualFold(a.cfg.Reachability, "auto") {
		url := a.cfg.ProbeURL
		if url == "" && a.baseURL != "" {
			url = a.baseURL + a.cfg.ManifestName
		}
		if url == "" {
			return nil, fmt.Errorf("reachability auto needs probe_url or content_root")
		}
		return netstate.NewProbe(url), nil
	}
	r, err := netstate.Parse(a.cfg.Reachability)
	if err != nil {
		return nil, err
	}
	return netstate.NewStatic(r), nil
}

func (a *app) newManager(pub manager.EventPublisher) (*manager.Manager, error) {
	conn, err := a.connectivity()
	if err != nil {
		return nil, err
	}
	groups := make([]manager.PrefetchGroup, 0, len(a.cfg.Prefetch))
	for _, g := range a.cfg.Prefetch {
		groups = append(groups, manager.PrefetchGroup{Name: g.Name, Resolve: manager.Names(g.Bundles...)})
	}
	logger := a.log.With().Str("component", "manager").Logger()
	return manager.NewWithConfig(manager.ManagerConfig{
		BaseURL:          a.baseURL,
		Platform:         a.cfg.Platform,
		Store:            a.store,
		Package:          a.pkg,
		Fetcher:          a.fetcher,
		Connectivity:     conn,
		Publisher:        pub,
		Logger:           &logger,
		MaxTransfers:     a.cfg.MaxTransfers,
		MaxLoadedBundles: a.cfg.MaxLoaded,
		RetryInterval:    a.cfg.RetryInterval.Std(),
		IdleGrace:        a.cfg.IdleGrace.Std(),
		TickInterval:     a.cfg.TickInterval.Std(),
		Prefetch:         groups,
		UsagePath:        a.cfg.UsagePath,
	}), nil
}
