// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package native

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// Compile-time interface check.
var _ plugin.Module = (*Module)(nil)

// Module is an opened native plugin.
type Module struct {
	path    string
	symbols symbolTable
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Lookup resolves symbol to an entry point. Exported functions and exported
// function variables are both accepted.
func (m *Module) Lookup(symbol string) (plugin.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, oops.In("native").With("path", m.path).Errorf("module is closed")
	}
	sym, err := m.symbols(symbol)
	if err != nil {
		return nil, oops.In("native").With("path", m.path).With("symbol", symbol).Wrap(err)
	}

	switch fn := sym.(type) {
	case func(hotswap.API):
		return wrapEntry(fn), nil
	case hotswap.EntryFunc:
		return wrapEntry(fn), nil
	case *func(hotswap.API):
		if fn != nil && *fn != nil {
			return wrapEntry(*fn), nil
		}
	case *hotswap.EntryFunc:
		if fn != nil && *fn != nil {
			return wrapEntry(*fn), nil
		}
	case func(hotswap.API) error:
		return fn, nil
	}
	return nil, oops.In("native").
		With("path", m.path).
		With("symbol", symbol).
		With("type", typeName(sym)).
		Errorf("symbol %s has type %s, want func(hotswap.API)", symbol, typeName(sym))
}

func wrapEntry(fn func(hotswap.API)) plugin.Entry {
	return func(api hotswap.API) error {
		fn(api)
		return nil
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

// Close retires the module. The code stays mapped for the life of the
// process; only the shadow file is removed, and interface values the module
// registered remain callable.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.In("native").With("path", m.path).Hint("failed to remove shadow copy").Wrap(err)
	}
	m.logger.Debug("native module retired", "path", m.path)
	return nil
}
