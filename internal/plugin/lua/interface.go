// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/hotswap/internal/plugin"
)

// Interface is the value a Lua module registers: a table of functions.
type Interface struct {
	name   string
	module *Module
	table  *lua.LTable
}

// Name returns the plugin name the table was registered under.
func (i *Interface) Name() string {
	return i.name
}

// Call invokes the table function method with args and returns its results.
// Numbers come back as float64.
func (i *Interface) Call(method string, args ...any) ([]any, error) {
	m := i.module
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, plugin.ErrModuleClosed(i.name)
	}

	L := m.L
	fn, ok := L.GetField(i.table, method).(*lua.LFunction)
	if !ok {
		return nil, oops.In("lua").
			With("plugin", i.name).
			With("method", method).
			Errorf("plugin %s has no method %s", i.name, method)
	}

	largs := make([]lua.LValue, len(args))
	for n, arg := range args {
		largs[n] = toLValue(L, arg)
	}

	top := L.GetTop()
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    lua.MultRet,
		Protect: true,
	}, largs...); err != nil {
		return nil, oops.In("lua").
			With("plugin", i.name).
			With("method", method).
			Wrap(err)
	}

	n := L.GetTop() - top
	results := make([]any, n)
	for k := range n {
		results[k] = fromLValue(L.Get(top + 1 + k))
	}
	L.Pop(n)
	return results, nil
}

// Methods lists the function fields of the interface table.
func (i *Interface) Methods() []string {
	m := i.module
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	var names []string
	i.table.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); ok {
			names = append(names, k.String())
		}
	})
	sort.Strings(names)
	return names
}
