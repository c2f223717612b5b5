// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build !cgo || !(linux || darwin || freebsd)

package native

import (
	"runtime"

	"github.com/samber/oops"
)

const supported = false

func openShared(string) (symbolTable, error) {
	return nil, oops.In("native").
		With("goos", runtime.GOOS).
		Errorf("native modules require cgo on linux, darwin, or freebsd")
}
