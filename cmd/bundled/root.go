package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bundled/internal/common/fsutil"
	"bundled/internal/config"
)

// options carries the resolved configuration to subcommands.
type options struct {
	configPath string
	logLevel   string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&options{}) }

// newRootCmdWith builds the command tree around opts.
func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "bundled",
		Short:         "Download, cache and load content bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags override config file values when set.
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envStr("BUNDLED_CONFIG", ""), "Config file: .yaml, .json or .toml (defaults BUNDLED_CONFIG)")
	pf.StringVar(&opts.logLevel, "log-level", envStr("BUNDLED_LOG_LEVEL", ""), "Log level: debug|info|warn|error (defaults BUNDLED_LOG_LEVEL or info)")
	pf.String("content-root", "", "Remote content root URL")
	pf.String("platform", "", "Bundle platform: ios|android|windows|webgl|osx|linux")
	pf.String("cache-dir", "", "Local bundle cache directory")
	pf.String("package-dir", "", "Directory of bundles shipped with the application")
	pf.String("reachability", "", "Connectivity: auto|lan|carrier|offline")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.load(cmd)
	}
	root.AddCommand(newServeCmd(opts), newFetchCmd(opts), newManifestCmd(opts), newPurgeCmd(opts))
	return root
}

// load resolves file, environment and flag values, in increasing precedence.
func (o *options) load(cmd *cobra.Command) error {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if v := envStr("BUNDLED_ADDR", ""); v != "" {
		cfg.Addr = v
	}
	if v := envStr("BUNDLED_CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"content-root": &cfg.ContentRoot,
		"platform":     &cfg.Platform,
		"cache-dir":    &cfg.CacheDir,
		"package-dir":  &cfg.PackageDir,
		"reachability": &cfg.Reachability,
	} {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cfg = cfg.Merge(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := fsutil.ExpandAll(&cfg.CacheDir, &cfg.PackageDir, &cfg.UsagePath); err != nil {
		return err
	}
	o.cfg = cfg
	o.log = newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}
