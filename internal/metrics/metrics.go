// Package metrics holds Prometheus instruments for the configuration
// resolver.  All collectors are registered with the global registry, so
// importing this package anywhere is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CachedEnvironments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "odc_config_cached_environments",
			Help: "Number of resolved environments currently cached.",
		})

	ResolveTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odc_config_resolve_total",
			Help: "Cumulative number of first-time environment resolutions.",
		})

	ResolveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odc_config_resolve_errors_total",
			Help: "Cumulative number of environment resolutions that failed.",
		})

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odc_config_cache_hits_total",
			Help: "Cumulative number of environment lookups served from cache.",
		})

	DynamicEnvironmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odc_config_dynamic_environments_total",
			Help: "Cumulative number of environments synthesized without a config section.",
		})

	DeprecationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odc_config_deprecations_total",
			Help: "Cumulative number of deprecated configuration mechanisms seen.",
		})
)

func init() {
	prometheus.MustRegister(
		CachedEnvironments,
		ResolveTotal,
		ResolveErrorsTotal,
		CacheHitsTotal,
		DynamicEnvironmentsTotal,
		DeprecationsTotal,
	)
}
