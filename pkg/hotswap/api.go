// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hotswap

import "context"

// API is the registry surface handed to hosts and to module entry points.
type API interface {
	// Add installs iface as the current interface of the named plugin and
	// patches every Reference issued for it. Registering a name the host
	// never requested is rejected.
	Add(name string, iface any) error

	// Lookup issues a new Reference to the named plugin.
	Lookup(name string) (Reference, error)

	// CheckAll reloads every plugin whose backing file changed on disk.
	CheckAll(ctx context.Context)

	// RequestLoad registers a plugin found in dir and performs its first load.
	RequestLoad(ctx context.Context, dir, name string) error
}

// Reference is a consumer-held handle on a plugin's current interface.
// The registry refreshes it on every reload; holders never re-query.
type Reference interface {
	// Name returns the plugin name the reference was issued for.
	Name() string
	// Hash returns the plugin identity, see Hash.
	Hash() uint32
	// Interface returns the current interface value, or nil if the module
	// has not registered one yet.
	Interface() any
}

// EntryFunc is the signature of a native module's entry symbol.
type EntryFunc func(API)

// EntryPrefix prefixes the plugin name to form a native entry symbol.
const EntryPrefix = "Load_"

// EntrySymbol returns the exported symbol a native module named name must
// provide, e.g. "Load_calc".
func EntrySymbol(name string) string {
	return EntryPrefix + name
}

// As returns the reference's current interface asserted to T.
func As[T any](ref Reference) (T, bool) {
	var zero T
	if ref == nil {
		return zero, false
	}
	v, ok := ref.Interface().(T)
	if !ok {
		return zero, false
	}
	return v, true
}
