// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/hotswap/internal/plugin"
)

func startServer(t *testing.T, ready ReadinessChecker, registrars ...Registrar) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, registrars...)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
}

func TestServer_HostMetrics(t *testing.T) {
	server := startServer(t, nil)

	metrics := server.Metrics()
	metrics.Sweeps.WithLabelValues(TriggerTick).Inc()
	metrics.Sweeps.WithLabelValues(TriggerTick).Inc()
	metrics.Sweeps.WithLabelValues(TriggerWatch).Inc()
	metrics.PluginCalls.WithLabelValues("calc", "success").Inc()

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, `hotswap_sweeps_total{trigger="tick"} 2`)
	assert.Contains(t, body, `hotswap_sweeps_total{trigger="watch"} 1`)
	assert.Contains(t, body, `hotswap_plugin_calls_total{plugin="calc",result="success"} 1`)
}

func TestServer_RegistrarsExposePluginMetrics(t *testing.T) {
	server := startServer(t, nil, plugin.RegisterMetrics)

	plugin.ModuleLoads.WithLabelValues("observability_check", plugin.ResultSuccess).Inc()

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, `hotswap_module_loads_total{plugin="observability_check",result="success"}`)
}

func TestServer_HealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"liveness", "/healthz/liveness", func() bool { return false }, http.StatusOK, "ok"},
		{"ready", "/healthz/readiness", func() bool { return true }, http.StatusOK, "ok"},
		{"not ready", "/healthz/readiness", func() bool { return false }, http.StatusServiceUnavailable, "not ready"},
		{"nil checker", "/healthz/readiness", nil, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, body := get(t, server, tt.path)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Sweeps.WithLabelValues(TriggerTick).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "hotswap_sweeps_total")
}
