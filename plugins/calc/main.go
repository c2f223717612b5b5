// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is the calc plugin built as a native module.
//
// Build with:
//
//	hotswap build -o calc.so ./plugins/calc
//
// The Go runtime refuses to open two plugins with the same plugin path,
// and a plain "go build -buildmode=plugin ./plugins/calc" always produces
// the same one, so such a rebuild can never be swapped in. hotswap build
// gives every build its own path.
//
// The formula is chosen at build time, which makes it easy to rebuild the
// module with different behavior while a host is running:
//
//	hotswap build -o calc.so --ldflags "-X main.formula=sum -X main.factor=6" ./plugins/calc
package main

import (
	"strconv"

	"github.com/holomush/hotswap/pkg/hotswap"
	"github.com/holomush/hotswap/plugins/calcapi"
)

// Build-time settings.
var (
	formula = "tail"
	factor  = "18"
)

// calculator computes a+b*factor ("tail") or (a+b)*factor ("sum").
type calculator struct {
	sum    bool
	factor int
}

var _ calcapi.Calculator = calculator{}

func (c calculator) Add(a, b int) int {
	if c.sum {
		return (a + b) * c.factor
	}
	return a + b*c.factor
}

func (c calculator) SetValue(d *calcapi.Data, v int) {
	d.Value = v
}

func (c calculator) GetValue(d *calcapi.Data) int {
	return d.Value
}

func newCalculator(formula, factor string) calculator {
	n, err := strconv.Atoi(factor)
	if err != nil {
		n = 1
	}
	return calculator{sum: formula == "sum", factor: n}
}

// Load_calc is the entry point the host resolves after opening the module.
//
//nolint:revive // the exported name is fixed by the entry symbol convention
func Load_calc(api hotswap.API) {
	_ = api.Add(calcapi.Name, newCalculator(formula, factor))
}

func main() {}
