package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"bundled/internal/manager"
	"bundled/internal/manifest"
)

// fetchPoll is how often progress bars are refreshed.
var fetchPoll = 100 * time.Millisecond

func newFetchCmd(opts *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "fetch [bundle...]",
		Short:   "Download bundles and their dependencies into the cache",
		Example: "  bundled fetch SceneryDesert WeaponAK47\n  bundled fetch --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("fetch requires bundle names or --all")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFetch(ctx, opts, args, all, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every bundle in the manifest")
	return cmd
}

func runFetch(ctx context.Context, opts *options, names []string, all bool, out io.Writer) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	if a.baseURL == "" {
		return errors.New("fetch needs a content root (--content-root or content_root)")
	}
	// Only the named bundles are downloaded.
	a.cfg.Prefetch = nil
	m, err := a.newManager(nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return fetchBundles(gctx, a, m, names, all, out)
	})
	return g.Wait()
}

func fetchBundles(ctx context.Context, a *app, m *manager.Manager, names []string, all bool, out io.Writer) error {
	if err := m.LoadManifest(ctx, a.manifestSource()); err != nil {
		return err
	}
	mf := m.Manifest()
	for _, n := range names {
		if mf.Lookup(n) == nil {
			return manager.ErrBundleNotFound(n)
		}
	}
	r := manager.Names(names...)
	if all {
		r = func(mf *manifest.Manifest) []*manifest.Bundle { return mf.Bundles() }
	}
	bundles := manager.WithDependencies(r)(mf)

	p := mpb.NewWithContext(ctx, mpb.WithOutput(out), mpb.WithWidth(64))
	bars := make(map[string]*mpb.Bar)
	for _, b := range bundles {
		if m.IsCached(b) {
			continue
		}
		bars[b.Name] = p.New(b.Size,
			mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name(b.Name, decor.WC{W: len(b.Name) + 1, C: decor.DindentRight}),
				decor.OnAbort(decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done"), "failed"),
			),
			mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
		)
	}
	m.CacheAll(bundles...)

	failed, err := trackBars(ctx, m, bars)
	p.Wait()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d bundle(s) checked, %d downloaded\n", len(bundles), len(bars)-len(failed))
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("failed to fetch: %s", strings.Join(failed, ", "))
	}
	return nil
}

// trackBars mirrors manager progress onto bars until every bar is complete
// or aborted. A bundle has failed once it left the queue with an error.
func trackBars(ctx context.Context, m *manager.Manager, bars map[string]*mpb.Bar) ([]string, error) {
	var failed []string
	t := time.NewTicker(fetchPoll)
	defer t.Stop()
	for {
		pending := 0
		for name, bar := range bars {
			if bar.Completed() || bar.Aborted() {
				continue
			}
			info, err := m.Info(name)
			if err != nil {
				return failed, err
			}
			switch {
			case info.State == manager.StatusCached.String() || info.State == manager.StatusReady.String():
				bar.SetCurrent(info.Size)
				bar.SetTotal(-1, true)
			case !info.Queued && info.LastError != "":
				bar.Abort(false)
				failed = append(failed, name+" ("+info.LastError+")")
			default:
				// A full bar completes, so hold it short of total until cached.
				bar.SetCurrent(min(info.AvailableBytes, info.Size-1))
				pending++
			}
		}
		if pending == 0 {
			return failed, nil
		}
		select {
		case <-ctx.Done():
			for _, bar := range bars {
				bar.Abort(false)
			}
			return failed, ctx.Err()
		case <-t.C:
		}
	}
}
