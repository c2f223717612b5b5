// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"

	"github.com/holomush/hotswap/internal/observability"
	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/errutil"
)

// Run sweeps every poll interval until ctx is done. With watching enabled,
// module file events in the plugin directories trigger an extra sweep once
// they settle. Every sweep runs on the calling goroutine.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		settled <-chan time.Time
		timer   *time.Timer
	)
	if h.cfg.Watch {
		watcher, err := h.watch()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := watcher.Close(); closeErr != nil {
				errutil.LogWarn(h.logger, "failed to close watcher", closeErr)
			}
		}()
		events, errs = watcher.Events, watcher.Errors

		timer = time.NewTimer(h.debounce)
		timer.Stop()
		defer timer.Stop()
	}

	h.CallAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Sweep(ctx, observability.TriggerTick)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !h.relevant(ev) {
				continue
			}
			h.logger.DebugContext(ctx, "module file event",
				"path", ev.Name,
				"op", ev.Op.String())
			timer.Reset(h.debounce)
			settled = timer.C
		case <-settled:
			settled = nil
			h.Sweep(ctx, observability.TriggerWatch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			errutil.LogWarn(h.logger, "watcher error", err)
		}
	}
}

// watch starts a watcher over every directory a plugin is loaded from.
func (h *Host) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, oops.In("host").Wrapf(err, "failed to create watcher")
	}
	for _, dir := range h.watchDirs() {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, oops.In("host").With("dir", dir).Wrapf(err, "failed to watch plugin directory")
		}
		h.logger.Info("watching plugin directory", "dir", dir)
	}
	return watcher, nil
}

func (h *Host) watchDirs() []string {
	seen := make(map[string]bool)
	for _, s := range h.registry.Status() {
		seen[filepath.Clean(s.Dir)] = true
	}
	for _, d := range h.cfg.Discover {
		seen[filepath.Clean(d.Dir)] = true
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// relevant reports whether ev touches a module file rather than a shadow
// copy or temporary file.
func (h *Host) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	ext := h.opener.Ext()
	if !strings.HasSuffix(base, ext) {
		return false
	}
	return !plugin.IsShadowName(strings.TrimSuffix(base, ext))
}
