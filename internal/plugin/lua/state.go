// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua runs hot-swappable plugin modules written in Lua.
//
// A module file named <name>.lua defines a global function load_<name>
// that receives a registry table and installs its interface table:
//
//	local M = {}
//	function M.add(a, b) return a + b * 18 end
//	function load_calc(registry) registry.add("calc", M) end
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// library is a Lua standard library opened into every module state.
type library struct {
	name string
	fn   lua.LGFunction
}

// defaultLibraries returns the libraries modules get: base, table, string, math.
// Not opened: os, io, debug, package.
func defaultLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// fileBaseFunctions are base library functions that read other files.
// A module is exactly one file, so they are removed.
var fileBaseFunctions = []string{"dofile", "loadfile"}

// StateFactory creates the Lua state backing one opened module.
type StateFactory struct {
	// libraries allows overriding the default libraries for testing.
	libraries []library
}

// NewStateFactory creates a new state factory.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries: defaultLibraries(),
	}
}

// NewState creates a fresh Lua state with the module libraries loaded.
//
// The ctx parameter is not attached to the state: module states outlive
// the load that created them.
func (f *StateFactory) NewState(_ context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "failed to open library %s", lib.name)
		}
	}

	for _, fn := range fileBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	return L, nil
}
