// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/hotswap/internal/plugin"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { plugin.RegisterMetrics(reg) })

	// Vectors only appear once a label set has been used.
	plugin.ModuleLoads.WithLabelValues("metrics_registered", plugin.ResultSuccess)
	families, err := reg.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}
	assert.True(t, registered["hotswap_module_loads_total"])
}

func TestMetrics_LoadAndReloadCounters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Plugin names are metric labels; use names unique to this test.
	writeModule(t, dir, "metrics_calc", "tail 18", baseTime)

	successes := testutil.ToFloat64(plugin.ModuleLoads.WithLabelValues("metrics_calc", plugin.ResultSuccess))
	failures := testutil.ToFloat64(plugin.ModuleLoads.WithLabelValues("metrics_calc", plugin.ResultFailure))

	reg := newTestRegistry(t, &fakeOpener{})
	require.NoError(t, reg.RequestLoad(ctx, dir, "metrics_calc"))
	_, err := reg.Lookup("metrics_calc")
	require.NoError(t, err)
	ref, err := reg.Lookup("metrics_calc")
	require.NoError(t, err)

	patched := testutil.ToFloat64(plugin.ReferencesPatched.WithLabelValues("metrics_calc"))
	stale := testutil.ToFloat64(plugin.StaleReloads.WithLabelValues("metrics_calc"))

	writeModule(t, dir, "metrics_calc", "nosymbol", baseTime.Add(time.Second))
	reg.CheckAll(ctx)
	writeModule(t, dir, "metrics_calc", "sum 6", baseTime.Add(2*time.Second))
	reg.CheckAll(ctx)

	assert.Equal(t, successes+2, testutil.ToFloat64(plugin.ModuleLoads.WithLabelValues("metrics_calc", plugin.ResultSuccess)))
	assert.Equal(t, failures+1, testutil.ToFloat64(plugin.ModuleLoads.WithLabelValues("metrics_calc", plugin.ResultFailure)))
	assert.Equal(t, stale+2, testutil.ToFloat64(plugin.StaleReloads.WithLabelValues("metrics_calc")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(plugin.ReferencesPatched.WithLabelValues("metrics_calc")), patched+1)
	assert.Equal(t, 1800, add(t, ref, 100, 200))
}
