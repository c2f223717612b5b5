// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holomush/hotswap/internal/plugin/native"
)

// NewBuildCmd creates the build subcommand.
func NewBuildCmd() *cobra.Command {
	var output, ldflags string

	cmd := &cobra.Command{
		Use:   "build <package-dir>",
		Short: "Build a native plugin that can replace a loaded build",
		Long: `Build the main package in package-dir as a native plugin.

A running host cannot load two builds of a plugin that share a plugin path,
and "go build -buildmode=plugin" gives every build of a package the same
one. This command builds a stamped copy of the sources instead, so each
build can be swapped in over the last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := output
			if out == "" {
				out = filepath.Base(filepath.Clean(args[0])) + native.Ext
			}
			if err := native.Build(ctx, native.BuildOptions{
				Package: args[0],
				Output:  out,
				LDFlags: ldflags,
			}); err != nil {
				return err //nolint:wrapcheck // build errors carry their own context
			}
			cmd.Printf("built %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "shared object to write (default: <package-dir name>.so)")
	cmd.Flags().StringVar(&ldflags, "ldflags", "", "flags passed to the linker, e.g. \"-X main.factor=6\"")

	return cmd
}
