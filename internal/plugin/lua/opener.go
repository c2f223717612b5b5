// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/holomush/hotswap/internal/plugin"
)

// Ext is the file extension of Lua modules.
const Ext = ".lua"

// EntryPrefix prefixes the plugin name to form a Lua module's entry function.
const EntryPrefix = "load_"

// Compile-time interface check.
var _ plugin.Opener = (*Opener)(nil)

// Opener opens Lua module files, one Lua state per module.
type Opener struct {
	factory *StateFactory
	logger  *slog.Logger
}

// OpenerOption configures the Opener.
type OpenerOption func(*Opener)

// WithLogger sets the logger behind registry.log calls from modules.
func WithLogger(logger *slog.Logger) OpenerOption {
	return func(o *Opener) {
		o.logger = logger
	}
}

// NewOpener creates a Lua module opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		factory: NewStateFactory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ext returns ".lua".
func (o *Opener) Ext() string {
	return Ext
}

// Symbol returns the entry function name, e.g. "load_calc".
func (o *Opener) Symbol(name string) string {
	return EntryPrefix + name
}

// Open compiles and runs the module file in a fresh state. Top-level code
// runs once here; the entry function runs when the loader invokes it.
func (o *Opener) Open(ctx context.Context, path string) (plugin.Module, error) {
	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("lua").With("path", path).Hint("failed to read module file").Wrap(err)
	}

	L, err := o.factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("lua").With("path", path).Hint("failed to create state").Wrap(err)
	}

	if err := L.DoString(string(code)); err != nil {
		L.Close()
		return nil, oops.In("lua").With("path", path).Hint("syntax error").Wrap(err)
	}

	return &Module{
		path:   path,
		L:      L,
		logger: o.logger,
	}, nil
}
