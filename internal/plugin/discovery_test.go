// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/hotswap/internal/plugin"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"calc", "calc_v2", "echo", "calc" + plugin.ShadowSuffix, "bad-name"} {
		writeModule(t, dir, name, "tail 1", baseTime)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"+fakeExt), 0o750))

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"empty pattern matches everything", "", []string{"calc", "calc_v2", "echo"}},
		{"prefix glob", "calc*", []string{"calc", "calc_v2"}},
		{"exact name", "echo", []string{"echo"}},
		{"alternatives", "{echo,calc}", []string{"calc", "echo"}},
		{"no match", "zzz*", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := plugin.Discover(dir, tt.pattern, fakeExt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDiscover_NonExistentDirectory(t *testing.T) {
	names, err := plugin.Discover(filepath.Join(t.TempDir(), "missing"), "*", fakeExt)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDiscover_InvalidPattern(t *testing.T) {
	_, err := plugin.Discover(t.TempDir(), "[unclosed", fakeExt)
	require.Error(t, err)
}

func TestIsShadowName(t *testing.T) {
	assert.True(t, plugin.IsShadowName("calc_____"))
	assert.True(t, plugin.IsShadowName("calc_____12"))
	assert.False(t, plugin.IsShadowName("calc"))
}
