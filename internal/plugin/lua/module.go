// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"log/slog"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// Compile-time interface check.
var _ plugin.Module = (*Module)(nil)

// Module is an opened Lua module. Its state is not goroutine-safe, so every
// call into it, entry point and interface methods alike, holds mu.
type Module struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// Lookup resolves the global entry function named symbol.
func (m *Module) Lookup(symbol string) (plugin.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, oops.In("lua").With("path", m.path).Errorf("module is closed")
	}
	fn, ok := m.L.GetGlobal(symbol).(*lua.LFunction)
	if !ok {
		return nil, oops.In("lua").
			With("path", m.path).
			With("symbol", symbol).
			Errorf("global %s is not a function", symbol)
	}

	return func(api hotswap.API) error {
		return m.callEntry(fn, api)
	}, nil
}

func (m *Module) callEntry(fn *lua.LFunction, api hotswap.API) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return oops.In("lua").With("path", m.path).Errorf("module is closed")
	}
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, m.registryTable(api)); err != nil {
		return oops.In("lua").With("path", m.path).With("operation", "entry").Wrap(err)
	}
	return nil
}

// registryTable exposes the registry to the entry function:
//
//	registry.add(name, tbl) -> true | nil, err
//	registry.log(msg)
func (m *Module) registryTable(api hotswap.API) *lua.LTable {
	L := m.L
	tbl := L.NewTable()

	L.SetField(tbl, "add", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		iface := L.CheckTable(2)
		if err := api.Add(name, &Interface{name: name, module: m, table: iface}); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetField(tbl, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("lua module log",
			"module", m.path,
			"message", L.CheckString(1))
		return 0
	}))

	return tbl
}

// Close releases the Lua state. Interfaces from this module fail with
// MODULE_CLOSED afterwards.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.L.Close()
	return nil
}
