// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/hotswap/pkg/hotswap"
)

// Compile-time interface check.
var _ hotswap.Reference = (*Reference)(nil)

// Reference caches a plugin's interface value for one consumer. Only the
// registry writes it; reads are lock-free.
type Reference struct {
	id    ulid.ULID
	name  string
	hash  uint32
	iface atomic.Pointer[ifaceBox]
}

// ifaceBox lets interface values of different dynamic types share one
// atomic slot, since every reload may bring a new concrete type.
type ifaceBox struct {
	v any
}

func newReference(d *Descriptor) *Reference {
	ref := &Reference{
		id:   ulid.Make(),
		name: d.Name,
		hash: d.Hash,
	}
	ref.set(d.iface)
	return ref
}

// ID uniquely identifies this reference in logs.
func (r *Reference) ID() ulid.ULID {
	return r.id
}

// Name returns the plugin name the reference was issued for.
func (r *Reference) Name() string {
	return r.name
}

// Hash returns the plugin identity.
func (r *Reference) Hash() uint32 {
	return r.hash
}

// Interface returns the plugin's current interface value.
func (r *Reference) Interface() any {
	if b := r.iface.Load(); b != nil {
		return b.v
	}
	return nil
}

func (r *Reference) set(v any) {
	r.iface.Store(&ifaceBox{v: v})
}
