// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hotswap

// FNV-1a 32-bit parameters.
const (
	fnvOffset32 uint32 = 0x811C9DC5
	fnvPrime32  uint32 = 0x01000193
)

// Hash maps a plugin name to its 32-bit identity using FNV-1a.
//
// Collisions are not detected. Two names with the same hash are treated as
// the same plugin by every registry lookup.
func Hash(name string) uint32 {
	h := fnvOffset32
	for i := 0; i < len(name); i++ {
		h = (uint32(name[i]) ^ h) * fnvPrime32
	}
	return h
}
