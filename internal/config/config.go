// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the host configuration from a YAML file and command
// line flags. Flags set on the command line win over the file, and flag
// defaults fill whatever the file leaves out.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/hotswap/internal/logging"
	"github.com/holomush/hotswap/internal/plugin"
)

// Runtimes.
const (
	RuntimeLua    = "lua"
	RuntimeNative = "native"
)

// Default values for flags.
const (
	DefaultLogFormat    = "json"
	DefaultLogLevel     = "info"
	DefaultPollInterval = 500 * time.Millisecond
	DefaultRuntime      = RuntimeLua
)

// Config is the host configuration.
type Config struct {
	LogFormat    string           `koanf:"log-format" json:"log-format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel     string           `koanf:"log-level" json:"log-level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	PollInterval time.Duration    `koanf:"poll-interval" json:"poll-interval,omitempty" jsonschema:"description=Interval between staleness sweeps, e.g. 500ms or 2s"`
	MetricsAddr  string           `koanf:"metrics-addr" json:"metrics-addr,omitempty" jsonschema:"description=Address for /metrics and health checks; empty disables"`
	Runtime      string           `koanf:"runtime" json:"runtime,omitempty" jsonschema:"enum=lua,enum=native"`
	Watch        bool             `koanf:"watch" json:"watch,omitempty" jsonschema:"description=Sweep as soon as a plugin directory changes"`
	Dir          string           `koanf:"dir" json:"dir,omitempty" jsonschema:"description=Default directory for plugins without their own dir"`
	Plugins      []PluginSource   `koanf:"plugins" json:"plugins,omitempty"`
	Discover     []DiscoverSource `koanf:"discover" json:"discover,omitempty"`
	Calls        []Call           `koanf:"call" json:"call,omitempty" jsonschema:"description=Calls made into plugin interfaces after every sweep"`
}

// PluginSource names one plugin to load.
type PluginSource struct {
	Name string `koanf:"name" json:"name" jsonschema:"pattern=^[A-Za-z][A-Za-z0-9_]*$,maxLength=64"`
	Dir  string `koanf:"dir" json:"dir,omitempty"`
}

// DiscoverSource loads every module in Dir whose name matches Pattern.
type DiscoverSource struct {
	Dir     string `koanf:"dir" json:"dir"`
	Pattern string `koanf:"pattern" json:"pattern,omitempty" jsonschema:"description=Glob over plugin names; empty matches all"`
}

// DataArg is the call argument replaced by the host-owned data block of
// the called plugin.
const DataArg = "$data"

// Call is one call into a plugin interface.
type Call struct {
	Plugin string `koanf:"plugin" json:"plugin"`
	Method string `koanf:"method" json:"method"`
	Args   []any  `koanf:"args" json:"args,omitempty" jsonschema:"description=Call arguments; the string $data passes the plugin's host-owned data block"`
	Once   bool   `koanf:"once" json:"once,omitempty" jsonschema:"description=Stop calling after the first success, e.g. to seed the data block"`
}

// BindFlags defines the configuration flags and their defaults on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "minimum log level (debug, info, warn, error)")
	fs.Duration("poll-interval", DefaultPollInterval, "interval between staleness sweeps")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("runtime", DefaultRuntime, "module runtime (lua or native)")
	fs.Bool("watch", false, "sweep when a plugin directory changes")
	fs.String("dir", "", "default plugin directory (default: XDG_DATA_HOME/hotswap/plugins)")
}

// Load reads the YAML file at path, if path is non-empty, and overlays the
// flags in fs. The file is validated against the configuration schema
// before it is applied.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "failed to read config file")
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.In("config").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "failed to parse config file")
		}
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, oops.In("config").Wrapf(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.In("config").Wrapf(err, "failed to decode configuration")
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.In("config").With("log-format", c.LogFormat).
			Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return oops.In("config").Wrap(err)
	}
	if c.PollInterval <= 0 {
		return oops.In("config").With("poll-interval", c.PollInterval).
			Errorf("poll-interval must be positive, got %s", c.PollInterval)
	}
	if c.Runtime != RuntimeLua && c.Runtime != RuntimeNative {
		return oops.In("config").With("runtime", c.Runtime).
			Errorf("runtime must be 'lua' or 'native', got %q", c.Runtime)
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i, p := range c.Plugins {
		if !plugin.ValidName(p.Name) {
			return oops.In("config").With("index", i).Wrap(plugin.ErrInvalidName(p.Name))
		}
		if seen[p.Name] {
			return oops.In("config").With("plugin", p.Name).Errorf("plugin %s listed twice", p.Name)
		}
		seen[p.Name] = true
	}
	for i, d := range c.Discover {
		if d.Dir == "" {
			return oops.In("config").With("index", i).Errorf("discover[%d].dir is required", i)
		}
	}
	for i, p := range c.Calls {
		if p.Plugin == "" || p.Method == "" {
			return oops.In("config").With("index", i).Errorf("call[%d] needs plugin and method", i)
		}
	}
	return nil
}

// PluginDir returns the directory p is loaded from.
func (c *Config) PluginDir(p PluginSource) string {
	if p.Dir != "" {
		return p.Dir
	}
	return c.Dir
}
