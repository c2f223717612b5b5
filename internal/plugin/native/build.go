// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// stampFile is the generated source that makes a build's plugin path unique.
const stampFile = "zz_hotswap_stamp.go"

// BuildOptions configures Build.
type BuildOptions struct {
	// Package is the directory of the plugin's main package. It must lie
	// inside the Go module the host is built from.
	Package string
	// Output is the shared object to write, e.g. plugins/calc.so.
	Output string
	// LDFlags is handed to the linker, e.g. "-X main.factor=6".
	LDFlags string
	// GoCmd is the go executable. Defaults to "go".
	GoCmd  string
	Logger *slog.Logger
}

// Build compiles a native module that can replace an earlier build of the
// same package in a running host.
//
// The Go runtime refuses to open a plugin whose plugin path it has already
// loaded, and a package built by import path always gets the same path.
// Build copies the package sources into a scratch directory beside them,
// adds a file carrying a fresh ULID, and builds the copy as named files, so
// the toolchain derives the plugin path from the file contents.
func Build(ctx context.Context, opts BuildOptions) error {
	if opts.Package == "" || opts.Output == "" {
		return oops.In("native").Errorf("build needs a package directory and an output file")
	}
	goCmd := opts.GoCmd
	if goCmd == "" {
		goCmd = "go"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out, err := filepath.Abs(opts.Output)
	if err != nil {
		return oops.In("native").With("output", opts.Output).Wrap(err)
	}

	stamp := ulid.Make().String()
	staging, files, err := stage(opts.Package, stamp)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("failed to remove build directory", "dir", staging, "error", err)
		}
	}()

	//nolint:gosec // the go command and its arguments come from the operator
	cmd := exec.CommandContext(ctx, goCmd, buildArgs(out, opts.LDFlags, files)...)
	cmd.Dir = staging
	if output, err := cmd.CombinedOutput(); err != nil {
		return oops.In("native").
			With("package", opts.Package).
			With("output", out).
			Hint(strings.TrimSpace(string(output))).
			Wrapf(err, "go build of %s failed", opts.Package)
	}

	logger.InfoContext(ctx, "native module built",
		"package", opts.Package,
		"output", out,
		"stamp", stamp)
	return nil
}

func buildArgs(out, ldflags string, files []string) []string {
	args := []string{"build", "-buildmode=plugin", "-o", out}
	if ldflags != "" {
		args = append(args, "-ldflags", ldflags)
	}
	return append(args, files...)
}

// stage copies the non-test Go files of pkgDir into a new directory inside
// it and writes the stamp file next to them. It returns the directory and
// the file names to build, relative to it.
func stage(pkgDir, stamp string) (string, []string, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return "", nil, oops.In("native").With("package", pkgDir).Wrapf(err, "read plugin package")
	}

	var sources []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || name == stampFile {
			continue
		}
		sources = append(sources, name)
	}
	if len(sources) == 0 {
		return "", nil, oops.In("native").With("package", pkgDir).Errorf("no Go files in %s", pkgDir)
	}

	staging, err := os.MkdirTemp(pkgDir, "hotswap-build-")
	if err != nil {
		return "", nil, oops.In("native").With("package", pkgDir).Wrapf(err, "create build directory")
	}

	for _, name := range sources {
		data, err := os.ReadFile(filepath.Join(pkgDir, name)) //nolint:gosec // name comes from ReadDir
		if err == nil {
			err = os.WriteFile(filepath.Join(staging, name), data, 0o600)
		}
		if err != nil {
			_ = os.RemoveAll(staging)
			return "", nil, oops.In("native").With("package", pkgDir).With("file", name).Wrapf(err, "copy plugin source")
		}
	}

	stampSrc := fmt.Sprintf(`// Code generated by hotswap build. DO NOT EDIT.

package main

// hotswapBuild gives this build its own plugin path.
var hotswapBuild = %q
`, stamp)
	if err := os.WriteFile(filepath.Join(staging, stampFile), []byte(stampSrc), 0o600); err != nil {
		_ = os.RemoveAll(staging)
		return "", nil, oops.In("native").With("package", pkgDir).Wrapf(err, "write build stamp")
	}

	return staging, append(sources, stampFile), nil
}
