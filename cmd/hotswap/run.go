// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/hotswap/internal/config"
	"github.com/holomush/hotswap/internal/host"
	"github.com/holomush/hotswap/internal/logging"
	"github.com/holomush/hotswap/internal/observability"
	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [plugin...]",
		Short: "Load plugins and hot-swap them as their files change",
		Long: `Load the configured plugins, plus any named on the command line from
--dir, then sweep for modified module files every --poll-interval until
interrupted. With --watch, file system events trigger a sweep as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd.Context(), cmd, args, nil)
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

// newLogger configures the default logger from cfg and returns it.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries context
	}
	logger := logging.Setup("hotswap", version, logging.Options{
		Format: cfg.LogFormat,
		Level:  level,
	}, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger, nil
}

// runWithDeps runs the host loop with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, cmd *cobra.Command, args []string, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		h         *host.Host
		obsServer ObservabilityServer
		hostOpts  = []host.Option{host.WithLogger(logger)}
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr,
			func() bool { return h.Registry().Ready() },
			plugin.RegisterMetrics)
		hostOpts = append(hostOpts, host.WithMetrics(obsServer.Metrics()))
	}

	h, err = host.New(cfg, hostOpts...)
	if err != nil {
		return oops.In("cli").Wrapf(err, "failed to create host")
	}
	defer func() {
		if closeErr := h.Close(context.Background()); closeErr != nil {
			errutil.LogWarn(logger, "failed to close registry", closeErr)
		}
	}()

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("cli").Wrapf(err, "failed to start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
				errutil.LogWarn(logger, "error stopping observability server", stopErr)
			}
		}()
	}

	logger.InfoContext(ctx, "starting host",
		"runtime", cfg.Runtime,
		"poll_interval", cfg.PollInterval,
		"watch", cfg.Watch)

	if err := h.Start(ctx); err != nil {
		errutil.LogWarn(logger, "some plugins failed to load", err)
	}

	cmd.Println("hotswap host started")
	if err := h.Run(ctx); err != nil {
		return oops.In("cli").Wrapf(err, "host loop failed")
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
