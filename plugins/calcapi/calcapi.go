// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package calcapi is the contract between hosts and the calc plugin.
package calcapi

import "github.com/holomush/hotswap/pkg/hotswap"

// Name is the plugin name the calc module registers under.
const Name = "calc"

// Data is the host-owned block the calculator stores its value in.
type Data = hotswap.Data

// Calculator is the interface the calc module installs.
type Calculator interface {
	Add(a, b int) int
	// SetValue stores v in the host's block.
	SetValue(d *Data, v int)
	// GetValue reads the value back. A reloaded module sees what an
	// earlier generation stored.
	GetValue(d *Data) int
}
