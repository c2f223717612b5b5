// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"regexp"
	"time"

	"github.com/holomush/hotswap/pkg/hotswap"
)

// State is a descriptor's position in the load lifecycle.
type State string

// Descriptor states.
const (
	StateUnloaded  State = "unloaded"
	StateLoaded    State = "loaded"
	StateReloading State = "reloading"
)

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern keeps names usable both as file names and as entry symbols.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidName reports whether name can identify a plugin.
func ValidName(name string) bool {
	return len(name) <= maxNameLength && namePattern.MatchString(name)
}

// Descriptor is the registry's record of one plugin.
type Descriptor struct {
	Name string
	Hash uint32
	Dir  string

	// ModTime is the backing file's modification time captured before
	// the most recent load attempt copied it.
	ModTime time.Time

	State      State
	Generation uint64
	Reloads    int
	LastError  error

	module Module
	iface  any
	// registered is the generation during which iface was last set.
	registered uint64
}

// NewDescriptor creates an unloaded descriptor for name in dir.
func NewDescriptor(dir, name string) *Descriptor {
	return &Descriptor{
		Name:  name,
		Hash:  hotswap.Hash(name),
		Dir:   dir,
		State: StateUnloaded,
	}
}

// Interface returns the interface value the module last registered.
func (d *Descriptor) Interface() any {
	return d.iface
}

// HasModule reports whether the descriptor currently owns an open module.
func (d *Descriptor) HasModule() bool {
	return d.module != nil
}
