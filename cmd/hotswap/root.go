// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/hotswap/internal/config"
	"github.com/holomush/hotswap/internal/xdg"
)

// NewRootCmd creates the root command for the hotswap CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotswap",
		Short: "hotswap - a hot-reloading plugin host",
		Long: `hotswap loads plugin modules, watches their files, and swaps in
rebuilt modules while the host keeps running. References held by the host
follow every reload without being looked up again.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/hotswap/config.yaml)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewBuildCmd())

	return cmd
}

// loadConfig resolves the config file, loads it under the command's flags,
// adds positional plugin names, and validates the result.
func loadConfig(cmd *cobra.Command, names []string) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // config errors carry their own context
	}

	if cfg.Dir == "" {
		dir, err := xdg.PluginsDir()
		if err != nil {
			return nil, err //nolint:wrapcheck // xdg errors carry their own context
		}
		cfg.Dir = dir
	}
	for _, name := range names {
		cfg.Plugins = append(cfg.Plugins, config.PluginSource{Name: name})
	}

	if err := cfg.Validate(); err != nil {
		return nil, oops.In("cli").Wrapf(err, "invalid configuration")
	}
	return cfg, nil
}

// configPath returns the --config value, or the default file when it
// exists, or "" for flags only.
func configPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", oops.In("cli").Wrap(err)
	}
	if path != "" {
		return path, nil
	}

	path, err = xdg.ConfigFile()
	if err != nil {
		return "", nil //nolint:nilerr // no home directory means no default file
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return path, nil
}
