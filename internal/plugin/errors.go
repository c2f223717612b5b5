// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for registry and loader failures.
const (
	CodeModuleOpen         = "MODULE_OPEN_FAILURE"
	CodeEntrySymbolMissing = "ENTRY_SYMBOL_MISSING"
	CodeEntryFailed        = "ENTRY_FAILED"
	CodeUnknownPlugin      = "UNKNOWN_PLUGIN"
	CodePluginNotFound     = "PLUGIN_NOT_FOUND"
	CodeAlreadyRegistered  = "ALREADY_REGISTERED"
	CodeInvalidName        = "INVALID_NAME"
	CodeRegistryClosed     = "REGISTRY_CLOSED"
	CodeModuleClosed       = "MODULE_CLOSED"
)

// ErrModuleOpen creates an error for a module file that could not be
// copied or mapped.
func ErrModuleOpen(name, path string, cause error) error {
	return oops.In("plugin").
		Code(CodeModuleOpen).
		With("plugin", name).
		With("path", path).
		Wrapf(cause, "open module %s", name)
}

// ErrEntrySymbolMissing creates an error for a module without its entry export.
func ErrEntrySymbolMissing(name, symbol string, cause error) error {
	b := oops.In("plugin").
		Code(CodeEntrySymbolMissing).
		With("plugin", name).
		With("symbol", symbol)
	if cause != nil {
		return b.Wrapf(cause, "module %s has no entry symbol %s", name, symbol)
	}
	return b.Errorf("module %s has no entry symbol %s", name, symbol)
}

// ErrEntryFailed creates an error for an entry point that reported a failure.
func ErrEntryFailed(name string, cause error) error {
	return oops.In("plugin").
		Code(CodeEntryFailed).
		With("plugin", name).
		Wrapf(cause, "entry point of %s failed", name)
}

// ErrUnknownPlugin creates an error for an interface registered under a
// name the registry never agreed to load.
func ErrUnknownPlugin(name string) error {
	return oops.In("plugin").
		Code(CodeUnknownPlugin).
		With("plugin", name).
		Errorf("plugin %s is not registered", name)
}

// ErrPluginNotFound creates an error for a lookup of an unknown name.
func ErrPluginNotFound(name string) error {
	return oops.In("plugin").
		Code(CodePluginNotFound).
		With("plugin", name).
		Errorf("plugin %s not found", name)
}

// ErrAlreadyRegistered creates an error for a second load request of a name.
func ErrAlreadyRegistered(name string) error {
	return oops.In("plugin").
		Code(CodeAlreadyRegistered).
		With("plugin", name).
		Errorf("plugin %s already registered", name)
}

// ErrInvalidName creates an error for a name that cannot form a module
// file name and entry symbol.
func ErrInvalidName(name string) error {
	return oops.In("plugin").
		Code(CodeInvalidName).
		With("plugin", name).
		Errorf("plugin name %q must start with a letter and contain only letters, digits, and underscores", name)
}

// ErrRegistryClosed creates an error for an operation on a closed registry.
func ErrRegistryClosed() error {
	return oops.In("plugin").
		Code(CodeRegistryClosed).
		Errorf("registry is closed")
}

// ErrModuleClosed creates an error for a call into a released module.
func ErrModuleClosed(name string) error {
	return oops.In("plugin").
		Code(CodeModuleClosed).
		With("plugin", name).
		Errorf("module %s has been released", name)
}

// ErrorCode returns the oops code attached to err, or "" for plain errors.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}
