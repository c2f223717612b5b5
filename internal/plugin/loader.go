// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/hotswap/pkg/errutil"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// ShadowSuffix is appended to the plugin name to form the default shadow copy name.
const ShadowSuffix = "_____"

// Default retry policy for copying a module that is still being written.
const (
	DefaultCopyRetries = 3
	DefaultCopyDelay   = 50 * time.Millisecond
)

const tracerName = "github.com/holomush/hotswap/internal/plugin"

// Loader copies, opens, and initializes the module backing a descriptor.
type Loader struct {
	opener      Opener
	logger      *slog.Logger
	tracer      trace.Tracer
	copyRetries uint64
	copyDelay   time.Duration
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger used for load diagnostics.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithTracer sets the tracer used for load spans.
func WithTracer(tracer trace.Tracer) LoaderOption {
	return func(l *Loader) {
		l.tracer = tracer
	}
}

// WithCopyRetry sets how often and how far apart a failed shadow copy is retried.
func WithCopyRetry(retries uint64, delay time.Duration) LoaderOption {
	return func(l *Loader) {
		l.copyRetries = retries
		l.copyDelay = delay
	}
}

// NewLoader creates a loader for modules of the opener's runtime.
// Panics if opener is nil.
func NewLoader(opener Opener, opts ...LoaderOption) *Loader {
	if opener == nil {
		panic("plugin: opener cannot be nil")
	}
	l := &Loader{
		opener:      opener,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		copyRetries: DefaultCopyRetries,
		copyDelay:   DefaultCopyDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ext returns the module file extension of the loader's runtime.
func (l *Loader) Ext() string {
	return l.opener.Ext()
}

// ModulePath returns the original module file for d.
func (l *Loader) ModulePath(d *Descriptor) string {
	return filepath.Join(d.Dir, d.Name+l.opener.Ext())
}

// ShadowPath returns the copy that is actually opened for d's current generation.
func (l *Loader) ShadowPath(d *Descriptor) string {
	if sn, ok := l.opener.(ShadowNamer); ok {
		return sn.ShadowPath(d.Dir, d.Name, d.Generation)
	}
	return filepath.Join(d.Dir, d.Name+ShadowSuffix+l.opener.Ext())
}

// IsStale reports whether d's module file was modified after the time
// recorded at its last load. A missing file is never stale.
func (l *Loader) IsStale(d *Descriptor) bool {
	path := l.ModulePath(d)
	info, err := os.Stat(path)
	if err != nil {
		l.logger.Debug("module file unavailable, skipping staleness check",
			"plugin", d.Name,
			"path", path,
			"error", err)
		return false
	}
	return info.ModTime().After(d.ModTime)
}

// Load (re)loads d's module and calls its entry point with api.
//
// Any module d already owns is released first. On failure d is left
// without a module and its interface value is untouched.
func (l *Loader) Load(ctx context.Context, d *Descriptor, api hotswap.API) (err error) {
	d.Generation++
	ctx, span := l.tracer.Start(ctx, "plugin.load", trace.WithAttributes(
		attribute.String("plugin.name", d.Name),
		attribute.Int64("plugin.generation", int64(d.Generation)), //nolint:gosec // generation never exceeds int64
	))
	start := time.Now()
	defer func() {
		recordLoad(d.Name, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
		}
		span.End()
	}()

	if d.module != nil {
		l.Release(ctx, d)
	}

	src := l.ModulePath(d)
	info, err := os.Stat(src)
	if err != nil {
		return ErrModuleOpen(d.Name, src, err)
	}
	// Captured before the copy so a rewrite racing the copy is still seen as stale.
	d.ModTime = info.ModTime()

	shadow := l.ShadowPath(d)
	if err := l.copyModule(ctx, src, shadow); err != nil {
		return ErrModuleOpen(d.Name, src, err)
	}

	l.logger.DebugContext(ctx, "opening module copy",
		"plugin", d.Name,
		"source", src,
		"shadow", shadow)

	mod, err := l.opener.Open(ctx, shadow)
	if err != nil {
		return ErrModuleOpen(d.Name, shadow, err)
	}

	symbol := l.opener.Symbol(d.Name)
	entry, err := mod.Lookup(symbol)
	if err != nil || entry == nil {
		if closeErr := mod.Close(); closeErr != nil {
			errutil.Log(ctx, l.logger, slog.LevelWarn, "failed to close module without entry symbol", closeErr,
				"plugin", d.Name)
		}
		return ErrEntrySymbolMissing(d.Name, symbol, err)
	}

	d.module = mod
	if err := entry(api); err != nil {
		l.Release(ctx, d)
		return ErrEntryFailed(d.Name, err)
	}

	l.logger.InfoContext(ctx, "module loaded",
		"plugin", d.Name,
		"generation", d.Generation,
		"mod_time", d.ModTime)
	return nil
}

// Release closes d's module, if any. Release failures are logged, not returned.
func (l *Loader) Release(ctx context.Context, d *Descriptor) {
	if d.module == nil {
		return
	}
	if err := d.module.Close(); err != nil {
		errutil.Log(ctx, l.logger, slog.LevelWarn, "failed to release module", err,
			"plugin", d.Name)
	}
	d.module = nil
}

// copyModule copies src over dst, retrying transient failures such as a
// source still locked by a build. A missing source fails immediately.
func (l *Loader) copyModule(ctx context.Context, src, dst string) error {
	backoff := retry.WithMaxRetries(l.copyRetries, retry.NewConstant(l.copyDelay))
	//nolint:wrapcheck // callers wrap with plugin context
	return retry.Do(ctx, backoff, func(_ context.Context) error {
		err := copyFile(src, dst)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so a reader never observes a half-written module.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	defer func() {
		_ = in.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err //nolint:wrapcheck // wrapped by caller
	}
	if err = tmp.Close(); err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	return os.Rename(tmp.Name(), dst) //nolint:wrapcheck // wrapped by caller
}
