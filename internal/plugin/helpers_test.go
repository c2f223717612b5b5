// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/hotswap/internal/plugin"
	"github.com/holomush/hotswap/pkg/hotswap"
)

const fakeExt = ".mod"

// calculator is the contract the fake calc modules satisfy.
type calculator interface {
	Add(a, b int) int
}

// calcImpl computes a+b*factor ("tail") or (a+b)*factor ("sum").
type calcImpl struct {
	mode   string
	factor int
}

func (c calcImpl) Add(a, b int) int {
	if c.mode == "sum" {
		return (a + b) * c.factor
	}
	return a + b*c.factor
}

// fakeOpener opens text files whose first word selects the module behavior:
//
//	tail N | sum N   registers a calculator
//	broken           fails to open
//	nosymbol         has no entry symbol
//	noadd            entry returns without registering
//	error            entry reports a failure
//	addfail N        registers, then reports a failure
//	foreign          registers under another plugin's name
//	selfcheck N      registers, then looks itself up through the API
type fakeOpener struct {
	mu       sync.Mutex
	opened   []string
	closed   int
	closeErr error
}

func (o *fakeOpener) Ext() string { return fakeExt }

func (o *fakeOpener) Symbol(name string) string { return "load_" + name }

func (o *fakeOpener) Open(_ context.Context, path string) (plugin.Module, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || fields[0] == "broken" {
		return nil, errors.New("not a module")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, path)
	return &fakeModule{opener: o, fields: fields}, nil
}

func (o *fakeOpener) openedPaths() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

func (o *fakeOpener) closeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fakeModule struct {
	opener *fakeOpener
	fields []string
}

func (m *fakeModule) factor() int {
	if len(m.fields) < 2 {
		return 1
	}
	n, err := strconv.Atoi(m.fields[1])
	if err != nil {
		return 1
	}
	return n
}

func (m *fakeModule) Lookup(symbol string) (plugin.Entry, error) {
	name := strings.TrimPrefix(symbol, "load_")
	switch m.fields[0] {
	case "tail", "sum":
		impl := calcImpl{mode: m.fields[0], factor: m.factor()}
		return func(api hotswap.API) error {
			return api.Add(name, impl)
		}, nil
	case "noadd":
		return func(hotswap.API) error { return nil }, nil
	case "error":
		return func(hotswap.API) error { return errors.New("init failed") }, nil
	case "addfail":
		impl := calcImpl{mode: "sum", factor: m.factor()}
		return func(api hotswap.API) error {
			if err := api.Add(name, impl); err != nil {
				return err
			}
			return errors.New("init failed after registering")
		}, nil
	case "foreign":
		return func(api hotswap.API) error {
			_ = api.Add("someone_else", calcImpl{factor: 1})
			return nil
		}, nil
	case "selfcheck":
		impl := calcImpl{mode: "tail", factor: m.factor()}
		return func(api hotswap.API) error {
			if err := api.Add(name, impl); err != nil {
				return err
			}
			ref, err := api.Lookup(name)
			if err != nil {
				return err
			}
			if ref.Interface() != any(impl) {
				return errors.New("lookup during entry returned a stale interface")
			}
			return nil
		}, nil
	default:
		return nil, errors.New("symbol not found: " + symbol)
	}
}

func (m *fakeModule) Close() error {
	m.opener.mu.Lock()
	defer m.opener.mu.Unlock()
	m.opener.closed++
	return m.opener.closeErr
}

// baseTime is an mtime safely in the past with whole-second precision, so
// filesystems with coarse timestamps still order the writes below.
var baseTime = time.Now().Add(-time.Hour).Truncate(time.Second)

// writeModule writes a fake module file and pins its modification time.
func writeModule(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name+fakeExt)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestRegistry builds a registry over opener and closes it with the test.
func newTestRegistry(t *testing.T, opener plugin.Opener) *plugin.Registry {
	t.Helper()
	loader := plugin.NewLoader(opener,
		plugin.WithLoaderLogger(discardLogger()),
		plugin.WithCopyRetry(0, 0))
	reg := plugin.NewRegistry(loader, plugin.WithLogger(discardLogger()))
	t.Cleanup(func() {
		require.NoError(t, reg.Close(context.Background()))
	})
	return reg
}

// add calls the calculator behind ref.
func add(t *testing.T, ref hotswap.Reference, a, b int) int {
	t.Helper()
	calc, ok := hotswap.As[calculator](ref)
	require.True(t, ok, "reference holds %T, want calculator", ref.Interface())
	return calc.Add(a, b)
}

func statusOf(t *testing.T, reg *plugin.Registry, name string) plugin.Status {
	t.Helper()
	for _, s := range reg.Status() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no status for plugin %q", name)
	return plugin.Status{}
}
