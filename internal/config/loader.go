package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a string ("2s", "500ms") in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PrefetchGroup names a set of bundles warmed while the manager is idle.
type PrefetchGroup struct {
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Bundles []string `json:"bundles" yaml:"bundles" toml:"bundles"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults or by flags.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ContentRoot  string `json:"content_root" yaml:"content_root" toml:"content_root"`
	Platform     string `json:"platform" yaml:"platform" toml:"platform"`
	CacheDir     string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	PackageDir   string `json:"package_dir" yaml:"package_dir" toml:"package_dir"`
	ManifestName string `json:"manifest_name" yaml:"manifest_name" toml:"manifest_name"`
	UsagePath    string `json:"usage_path" yaml:"usage_path" toml:"usage_path"`

	MaxTransfers  int      `json:"max_transfers" yaml:"max_transfers" toml:"max_transfers"`
	MaxLoaded     int      `json:"max_loaded" yaml:"max_loaded" toml:"max_loaded"`
	RetryInterval Duration `json:"retry_interval" yaml:"retry_interval" toml:"retry_interval"`
	StallTimeout  Duration `json:"stall_timeout" yaml:"stall_timeout" toml:"stall_timeout"`
	IdleGrace     Duration `json:"idle_grace" yaml:"idle_grace" toml:"idle_grace"`
	TickInterval  Duration `json:"tick_interval" yaml:"tick_interval" toml:"tick_interval"`

	// Reachability is auto, lan, carrier or offline. auto probes ProbeURL.
	Reachability string `json:"reachability" yaml:"reachability" toml:"reachability"`
	ProbeURL     string `json:"probe_url" yaml:"probe_url" toml:"probe_url"`

	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxRequestWait Duration `json:"max_request_wait" yaml:"max_request_wait" toml:"max_request_wait"`

	Prefetch []PrefetchGroup `json:"prefetch" yaml:"prefetch" toml:"prefetch"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Addr:         ":8080",
		Platform:     "linux",
		CacheDir:     "~/.cache/bundled",
		ManifestName: "Manifest",
		Reachability: "lan",
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Merge fills unset fields of c from d.
func (c Config) Merge(d Config) Config {
	str := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	str(&c.Addr, d.Addr)
	str(&c.ContentRoot, d.ContentRoot)
	str(&c.Platform, d.Platform)
	str(&c.CacheDir, d.CacheDir)
	str(&c.PackageDir, d.PackageDir)
	str(&c.ManifestName, d.ManifestName)
	str(&c.UsagePath, d.UsagePath)
	str(&c.Reachability, d.Reachability)
	str(&c.ProbeURL, d.ProbeURL)
	str(&c.LogLevel, d.LogLevel)
	str(&c.LogFormat, d.LogFormat)
	if c.MaxTransfers == 0 {
		c.MaxTransfers = d.MaxTransfers
	}
	if c.MaxLoaded == 0 {
		c.MaxLoaded = d.MaxLoaded
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.StallTimeout == 0 {
		c.StallTimeout = d.StallTimeout
	}
	if c.IdleGrace == 0 {
		c.IdleGrace = d.IdleGrace
	}
	if c.TickInterval == 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.MaxRequestWait == 0 {
		c.MaxRequestWait = d.MaxRequestWait
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = d.CORSOrigins
	}
	if len(c.Prefetch) == 0 {
		c.Prefetch = d.Prefetch
	}
	return c
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.MaxTransfers < 0 {
		return fmt.Errorf("max_transfers must not be negative: %d", c.MaxTransfers)
	}
	if c.MaxLoaded < 0 {
		return fmt.Errorf("max_loaded must not be negative: %d", c.MaxLoaded)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log_format: %s", c.LogFormat)
	}
	for i, g := range c.Prefetch {
		if len(g.Bundles) == 0 {
			return fmt.Errorf("prefetch group #%d (%s) has no bundles", i, g.Name)
		}
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, cfg.Validate()
}
