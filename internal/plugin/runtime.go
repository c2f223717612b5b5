// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin loads code modules from disk, hot-swaps them when their
// files change, and keeps every issued reference pointing at the current
// module's interface.
package plugin

import (
	"context"

	"github.com/holomush/hotswap/pkg/hotswap"
)

// Entry is a resolved module entry point. It receives the registry API
// and is expected to call Add with the module's interface value.
type Entry func(api hotswap.API) error

// Module is an opened code module owned by exactly one descriptor.
type Module interface {
	// Lookup resolves the module's entry symbol.
	Lookup(symbol string) (Entry, error)

	// Close releases the module. The interface values it registered must
	// not be used afterwards.
	Close() error
}

// Opener maps module files of one runtime type into the process.
type Opener interface {
	// Ext returns the module file extension including the dot, e.g. ".so".
	Ext() string

	// Symbol returns the entry symbol a module named name must export.
	Symbol(name string) string

	// Open maps the module file at path.
	Open(ctx context.Context, path string) (Module, error)
}

// ShadowNamer is implemented by openers that cannot reopen the same path,
// so every load generation needs its own shadow copy.
type ShadowNamer interface {
	ShadowPath(dir, name string, generation uint64) string
}
