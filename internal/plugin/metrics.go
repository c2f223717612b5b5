// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for load metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ModuleLoads counts load attempts by plugin and result.
// Use RegisterMetrics to register this with a Prometheus registry.
var ModuleLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hotswap_module_loads_total",
		Help: "Total number of module load attempts",
	},
	[]string{"plugin", "result"},
)

// ModuleLoadDuration observes how long a load took, copy and entry call included.
var ModuleLoadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hotswap_module_load_duration_seconds",
		Help:    "Module load duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"plugin"},
)

// StaleReloads counts reloads triggered by a staleness sweep.
var StaleReloads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hotswap_stale_reloads_total",
		Help: "Total number of reloads triggered by modified module files",
	},
	[]string{"plugin"},
)

// ReferencesPatched counts references refreshed after an interface change.
var ReferencesPatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hotswap_references_patched_total",
		Help: "Total number of issued references updated to a new interface",
	},
	[]string{"plugin"},
)

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ModuleLoads)
	reg.MustRegister(ModuleLoadDuration)
	reg.MustRegister(StaleReloads)
	reg.MustRegister(ReferencesPatched)
}

func recordLoad(plugin string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	ModuleLoads.WithLabelValues(plugin, result).Inc()
	ModuleLoadDuration.WithLabelValues(plugin).Observe(duration.Seconds())
}
