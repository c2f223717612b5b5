// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package host drives a plugin registry from a configuration: it requests
// the configured plugins, sweeps for modified modules on a timer or on file
// system events, and exercises plugin interfaces through configured calls.
package host

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/hotswap/internal/config"
	"github.com/holomush/hotswap/internal/observability"
	"github.com/holomush/hotswap/internal/plugin"
	pluginlua "github.com/holomush/hotswap/internal/plugin/lua"
	"github.com/holomush/hotswap/internal/plugin/native"
	"github.com/holomush/hotswap/pkg/errutil"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// DefaultWatchDebounce is how long the watcher waits for a burst of file
// events to settle before sweeping.
const DefaultWatchDebounce = 100 * time.Millisecond

// Host owns a registry and the references its calls go through.
// Start, Sweep, CallAll and Run must be called from one goroutine.
type Host struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	opener   plugin.Opener
	debounce time.Duration

	registry *plugin.Registry
	refs     map[string]hotswap.Reference
	data     map[string]*hotswap.Data
	done     map[int]bool
}

// Option configures the Host.
type Option func(*Host)

// WithLogger sets the host logger, which is also handed to the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithMetrics records sweeps and call results in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// WithOpener replaces the runtime selected by the configuration.
func WithOpener(o plugin.Opener) Option {
	return func(h *Host) {
		h.opener = o
	}
}

// WithWatchDebounce sets the settle time for file system events.
func WithWatchDebounce(d time.Duration) Option {
	return func(h *Host) {
		h.debounce = d
	}
}

// New creates a host for cfg. The configuration must already be valid.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	h := &Host{
		cfg:      cfg,
		logger:   slog.Default(),
		debounce: DefaultWatchDebounce,
		refs:     make(map[string]hotswap.Reference),
		data:     make(map[string]*hotswap.Data),
		done:     make(map[int]bool),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.opener == nil {
		opener, err := newOpener(cfg.Runtime, h.logger)
		if err != nil {
			return nil, err
		}
		h.opener = opener
	}

	loader := plugin.NewLoader(h.opener, plugin.WithLoaderLogger(h.logger))
	h.registry = plugin.NewRegistry(loader, plugin.WithLogger(h.logger))
	return h, nil
}

func newOpener(runtime string, logger *slog.Logger) (plugin.Opener, error) {
	switch runtime {
	case config.RuntimeLua:
		return pluginlua.NewOpener(pluginlua.WithLogger(logger)), nil
	case config.RuntimeNative:
		if !native.Supported() {
			return nil, oops.In("host").With("runtime", runtime).
				Errorf("native modules are not supported by this build")
		}
		return native.NewOpener(native.WithLogger(logger)), nil
	default:
		return nil, oops.In("host").With("runtime", runtime).Errorf("unknown runtime %q", runtime)
	}
}

// Registry returns the registry the host drives.
func (h *Host) Registry() *plugin.Registry {
	return h.registry
}

// Ext returns the module file extension of the host's runtime.
func (h *Host) Ext() string {
	return h.opener.Ext()
}

// Start requests every configured and discovered plugin. A plugin that
// fails to load stays registered and is retried by later sweeps; the
// failures are returned joined.
func (h *Host) Start(ctx context.Context) error {
	var errs []error

	for _, p := range h.cfg.Plugins {
		if err := h.request(ctx, h.cfg.PluginDir(p), p.Name); err != nil {
			errs = append(errs, err)
		}
	}

	for _, d := range h.cfg.Discover {
		names, err := plugin.Discover(d.Dir, d.Pattern, h.opener.Ext())
		if err != nil {
			errutil.LogError(h.logger, "plugin discovery failed", err, "dir", d.Dir)
			errs = append(errs, err)
			continue
		}
		h.logger.InfoContext(ctx, "discovered plugins",
			"dir", d.Dir,
			"pattern", d.Pattern,
			"plugins", names)
		for _, name := range names {
			err := h.request(ctx, d.Dir, name)
			if plugin.HasCode(err, plugin.CodeAlreadyRegistered) {
				continue
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (h *Host) request(ctx context.Context, dir, name string) error {
	err := h.registry.RequestLoad(ctx, dir, name)
	if err != nil && !plugin.HasCode(err, plugin.CodeAlreadyRegistered) {
		errutil.LogWarn(h.logger, "plugin not loaded, will retry when its file changes", err,
			"plugin", name,
			"dir", dir)
	}
	return err
}

// Sweep reloads modified modules and, when anything was reloaded, runs the
// calls again. It returns the number of reloads attempted.
func (h *Host) Sweep(ctx context.Context, trigger string) int {
	if h.metrics != nil {
		h.metrics.Sweeps.WithLabelValues(trigger).Inc()
	}
	n := h.registry.CheckAll(ctx)
	if n > 0 {
		h.logger.InfoContext(ctx, "sweep reloaded plugins",
			"trigger", trigger,
			"reloads", n)
		h.CallAll(ctx)
	}
	return n
}

// CallResult is the outcome of one configured call.
type CallResult struct {
	Plugin  string
	Method  string
	Results []any
	Err     error
}

// CallAll runs every configured call. References are looked up once per
// plugin and reused, so results after a reload come through the same
// reference the first call used. Calls marked once are skipped after their
// first success.
func (h *Host) CallAll(ctx context.Context) []CallResult {
	results := make([]CallResult, 0, len(h.cfg.Calls))
	for i, c := range h.cfg.Calls {
		if c.Once && h.done[i] {
			continue
		}
		res := CallResult{Plugin: c.Plugin, Method: c.Method}

		ref, err := h.reference(c.Plugin)
		if err == nil {
			res.Results, err = Invoke(ref.Interface(), c.Method, h.args(c))
		}
		res.Err = err
		if err == nil && c.Once {
			h.done[i] = true
		}

		outcome := plugin.ResultSuccess
		if err != nil {
			outcome = plugin.ResultFailure
			errutil.LogWarn(h.logger, "call failed", err,
				"plugin", c.Plugin,
				"method", c.Method)
		} else {
			h.logger.InfoContext(ctx, "call result",
				"plugin", c.Plugin,
				"method", c.Method,
				"args", c.Args,
				"results", res.Results)
		}
		if h.metrics != nil {
			h.metrics.PluginCalls.WithLabelValues(c.Plugin, outcome).Inc()
		}
		results = append(results, res)
	}
	return results
}

// Data returns the block the host lends to calls into the named plugin.
// It belongs to the host, so it outlives every generation of the module.
func (h *Host) Data(name string) *hotswap.Data {
	d, ok := h.data[name]
	if !ok {
		d = &hotswap.Data{}
		h.data[name] = d
	}
	return d
}

// args resolves DataArg placeholders in c's arguments.
func (h *Host) args(c config.Call) []any {
	out := make([]any, len(c.Args))
	for i, arg := range c.Args {
		if s, ok := arg.(string); ok && s == config.DataArg {
			out[i] = h.Data(c.Plugin)
			continue
		}
		out[i] = arg
	}
	return out
}

func (h *Host) reference(name string) (hotswap.Reference, error) {
	if ref, ok := h.refs[name]; ok {
		return ref, nil
	}
	ref, err := h.registry.API().Lookup(name)
	if err != nil {
		return nil, err
	}
	h.refs[name] = ref
	return ref, nil
}

// Close releases every module. Data blocks stay readable.
func (h *Host) Close(ctx context.Context) error {
	clear(h.refs)
	return h.registry.Close(ctx) //nolint:wrapcheck // registry errors carry their own context
}
