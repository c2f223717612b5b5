// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/hotswap/internal/config"
	"github.com/holomush/hotswap/internal/host"
	"github.com/holomush/hotswap/pkg/errutil"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [plugin...]",
		Short: "Load plugins once, run the calls, and print their status",
		Long: `Load the configured plugins once, run every configured call, print a
status line per plugin, and exit non-zero if any plugin failed to load.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runCheck(ctx, cmd, args)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	h, err := host.New(cfg, host.WithLogger(logger))
	if err != nil {
		return oops.In("cli").Wrapf(err, "failed to create host")
	}
	defer func() {
		if closeErr := h.Close(context.Background()); closeErr != nil {
			errutil.LogWarn(logger, "failed to close registry", closeErr)
		}
	}()

	_ = h.Start(ctx) //nolint:errcheck // failures are reported per plugin below
	results := h.CallAll(ctx)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLUGIN\tSTATE\tGENERATION\tMODIFIED\tERROR")
	failed := 0
	for _, s := range h.Registry().Status() {
		modified := "-"
		if !s.ModTime.IsZero() {
			modified = s.ModTime.Format(time.RFC3339)
		}
		if !s.HasModule {
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.State, s.Generation, modified, s.LastError)
	}
	if err := w.Flush(); err != nil {
		return oops.In("cli").Wrap(err)
	}

	for _, p := range results {
		if p.Err != nil {
			_, _ = fmt.Fprintf(out, "call %s.%s: error: %v\n", p.Plugin, p.Method, p.Err)
			continue
		}
		_, _ = fmt.Fprintf(out, "call %s.%s: %v\n", p.Plugin, p.Method, p.Results)
	}

	if failed > 0 {
		return oops.In("cli").With("failed", failed).Errorf("%d plugin(s) not loaded", failed)
	}
	return nil
}
