// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package native opens Go plugins (shared objects built with
// -buildmode=plugin) as hot-swappable modules.
//
// A native module exports its entry point under hotswap.EntrySymbol:
//
//	func Load_calc(api hotswap.API) {
//	    _ = api.Add("calc", calculator{})
//	}
//
// The Go runtime never unmaps a plugin and caches plugins by path, so every
// load opens a copy under a fresh, generation-numbered name. It also
// refuses a second plugin with a plugin path it already loaded, which is
// why rebuilt modules must come from Build rather than a plain go build.
package native

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// Ext is the file extension of native modules.
const Ext = ".so"

// Compile-time interface checks.
var (
	_ plugin.Opener      = (*Opener)(nil)
	_ plugin.ShadowNamer = (*Opener)(nil)
)

// ErrPluginPathReused reports a module whose plugin path matches one the
// process already loaded. The Go runtime cannot load it again.
var ErrPluginPathReused = errors.New("plugin path already loaded by this process")

// symbolTable resolves exported symbols of an opened shared object.
type symbolTable func(symbol string) (any, error)

// Opener opens native Go plugin files.
type Opener struct {
	logger *slog.Logger
	open   func(path string) (symbolTable, error)
}

// OpenerOption configures the Opener.
type OpenerOption func(*Opener)

// WithLogger sets the logger used for module lifecycle messages.
func WithLogger(logger *slog.Logger) OpenerOption {
	return func(o *Opener) {
		o.logger = logger
	}
}

// NewOpener creates a native module opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		logger: slog.Default(),
		open:   openShared,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Supported reports whether this build can open native modules.
func Supported() bool {
	return supported
}

// Ext returns ".so".
func (o *Opener) Ext() string {
	return Ext
}

// Symbol returns the exported entry symbol, e.g. "Load_calc".
func (o *Opener) Symbol(name string) string {
	return hotswap.EntrySymbol(name)
}

// ShadowPath names the copy opened for one generation, e.g. "calc_____3.so".
func (o *Opener) ShadowPath(dir, name string, generation uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s%d%s", name, plugin.ShadowSuffix, generation, Ext))
}

// Open maps the shared object at path. The module owns path from then on:
// it is removed when the module closes, or right away if it cannot open.
func (o *Opener) Open(_ context.Context, path string) (plugin.Module, error) {
	symbols, err := o.open(path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			o.logger.Warn("failed to remove shadow copy", "path", path, "error", rmErr)
		}
		if strings.Contains(err.Error(), "plugin already loaded") {
			return nil, oops.In("native").
				With("path", path).
				Hint("rebuild the module with `hotswap build` so each build gets its own plugin path").
				Wrap(fmt.Errorf("%w: %w", ErrPluginPathReused, err))
		}
		return nil, oops.In("native").With("path", path).Hint("failed to open shared object").Wrap(err)
	}
	return &Module{path: path, symbols: symbols, logger: o.logger}, nil
}
