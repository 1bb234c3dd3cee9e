package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"bundled/internal/common/fsutil"
	"bundled/internal/manager"
	"bundled/internal/manifest"
	"bundled/internal/registry"
	"bundled/internal/store"
)

func newManifestCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Show the bundle catalog and which bundles are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			mf, err := a.loadManifest(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				b, err := manifest.Encode(mf)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			return printManifest(cmd.OutOrStdout(), mf, a.store)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	cmd.AddCommand(newManifestGenerateCmd())
	return cmd
}

func newManifestGenerateCmd() *cobra.Command {
	var (
		base     string
		outPath  string
		included bool
	)
	cmd := &cobra.Command{
		Use:     "generate DIR",
		Short:   "Build a catalog from a directory of bundle files",
		Example: "  bundled manifest generate ./build/linux --base ./build/linux/Manifest -o ./build/linux/Manifest",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.ExpandHome(args[0])
			if err != nil {
				return err
			}
			var prev *manifest.Manifest
			if base != "" && fsutil.PathExists(base) {
				if prev, err = manifest.LoadFile(base); err != nil {
					return fmt.Errorf("base manifest: %w", err)
				}
			}
			skip := []string{manager.DefaultManifestName}
			if outPath != "" {
				skip = append(skip, filepath.Base(outPath))
			}
			mf, err := registry.Build(afero.NewOsFs(), dir, prev, registry.ScanOptions{Included: included, Skip: skip})
			if err != nil {
				return err
			}
			b, err := manifest.Encode(mf)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			return os.WriteFile(outPath, append(b, '\n'), 0o644)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Existing catalog to carry dependencies and versions from")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the catalog to this file instead of stdout")
	cmd.Flags().BoolVar(&included, "included", false, "Mark bundles as shipped with the application")
	return cmd
}

func printManifest(w io.Writer, mf *manifest.Manifest, st *store.Store) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSIZE\tCACHED\tDEPENDENCIES")
	for _, b := range mf.Bundles() {
		cached := "no"
		switch {
		case b.Included:
			cached = "included"
		case st.Has(b):
			cached = "yes"
		}
		deps := strings.Join(b.Dependencies, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", b.Name, b.Version, b.Size, cached, deps)
	}
	return tw.Flush()
}
