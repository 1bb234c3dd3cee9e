package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"bundled/internal/manifest"
	"bundled/internal/store"
)

func newPurgeCmd(opts *options) *cobra.Command {
	var all, dryRun bool
	cmd := &cobra.Command{
		Use:     "purge",
		Short:   "Remove cached bundles the manifest no longer references",
		Example: "  bundled purge --dry-run\n  bundled purge --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			var mf *manifest.Manifest
			if !all {
				if mf, err = a.loadManifest(cmd.Context()); err != nil {
					return err
				}
			}
			codes, err := purge(a.store, mf, dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range codes {
				fmt.Fprintln(out, c)
			}
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			fmt.Fprintf(out, "%s %d cache entr%s\n", verb, len(codes), plural(len(codes), "y", "ies"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every cached bundle")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List entries without removing them")
	return cmd
}

// purge removes cache entries not referenced by mf, or every entry when mf
// is nil. It returns the affected codes, sorted.
func purge(st *store.Store, mf *manifest.Manifest, dryRun bool) ([]string, error) {
	if mf != nil && !dryRun {
		codes, err := st.Purge(mf)
		sort.Strings(codes)
		return codes, err
	}
	codes, err := st.Codes()
	if err != nil {
		return nil, err
	}
	if mf != nil {
		keep := make(map[string]bool, mf.Len())
		for _, b := range mf.Bundles() {
			keep[store.Code(b)] = true
		}
		stale := codes[:0]
		for _, c := range codes {
			if !keep[c] {
				stale = append(stale, c)
			}
		}
		codes = stale
	}
	sort.Strings(codes)
	if dryRun {
		return codes, nil
	}
	return codes, st.DeleteCodes(codes...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
