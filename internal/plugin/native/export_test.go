// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package native

// WithSymbols replaces shared object loading with a fixed symbol set.
func WithSymbols(symbols map[string]any) OpenerOption {
	return func(o *Opener) {
		o.open = func(string) (symbolTable, error) {
			return func(symbol string) (any, error) {
				sym, ok := symbols[symbol]
				if !ok {
					return nil, errSymbolNotFound(symbol)
				}
				return sym, nil
			}, nil
		}
	}
}

// WithOpenFailure makes every open fail with err.
func WithOpenFailure(err error) OpenerOption {
	return func(o *Opener) {
		o.open = func(string) (symbolTable, error) {
			return nil, err
		}
	}
}

// Stage exposes stage for tests.
var Stage = stage

// StampFile is the generated stamp file name.
const StampFile = stampFile

type errSymbolNotFound string

func (e errSymbolNotFound) Error() string {
	return "symbol " + string(e) + " not found"
}
