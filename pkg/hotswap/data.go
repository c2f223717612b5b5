// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hotswap

// Data is a block of state the host owns and lends to a plugin on each
// call. Modules read and write it but never keep it, so whatever a plugin
// stored survives every reload of that plugin.
type Data struct {
	Value int
}
