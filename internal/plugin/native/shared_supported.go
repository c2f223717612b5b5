// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build cgo && (linux || darwin || freebsd)

package native

import (
	stdplugin "plugin"
)

const supported = true

func openShared(path string) (symbolTable, error) {
	p, err := stdplugin.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Opener.Open
	}
	return func(symbol string) (any, error) {
		return p.Lookup(symbol) //nolint:wrapcheck // wrapped by Module.Lookup
	}, nil
}
