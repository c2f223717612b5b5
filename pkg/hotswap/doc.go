// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hotswap is the surface shared by hosts and hot-swappable modules.
//
// A module exports an entry function (see EntryFunc) that receives the
// registry's API and installs its interface value with API.Add. Hosts call
// API.Lookup to obtain a Reference, and keep using that same Reference
// across reloads: the registry patches it whenever the module is rebuilt.
//
//	ref, err := api.Lookup("calc")
//	if err != nil {
//	    return err
//	}
//	calc, ok := hotswap.As[calcapi.Calculator](ref)
package hotswap
