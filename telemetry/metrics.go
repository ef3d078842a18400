// Package telemetry exposes Prometheus instrumentation for kernel function
// invocations, model calls and process execution. Collectors are registered
// on a package-level registry so embedding applications can mount them on an
// existing /metrics endpoint via Registry().
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

// Registry returns the SDK's metric registry for mounting in an HTTP handler.
func Registry() *prometheus.Registry { return registry }

var (
	functionInvocations = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernelmesh_function_invocations_total",
		Help: "Kernel function invocations by plugin, function and outcome.",
	}, []string{"plugin", "function", "status"})

	functionDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernelmesh_function_duration_seconds",
		Help:    "Kernel function execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin", "function"})

	modelCalls = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernelmesh_model_calls_total",
		Help: "Chat model generations by provider, model and outcome.",
	}, []string{"provider", "model", "status"})

	processSupersteps = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernelmesh_process_supersteps_total",
		Help: "Supersteps executed per process definition.",
	}, []string{"process"})

	processEvents = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "kernelmesh_process_events_total",
		Help: "Events routed per process definition.",
	}, []string{"process"})
)

// ObserveFunctionInvocation records one kernel function invocation.
func ObserveFunctionInvocation(pluginName, functionName string, dur time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	functionInvocations.WithLabelValues(pluginName, functionName, status).Inc()
	functionDuration.WithLabelValues(pluginName, functionName).Observe(dur.Seconds())
}

// ObserveModelCall records one chat model generation.
func ObserveModelCall(provider, model string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelCalls.WithLabelValues(provider, model, status).Inc()
}

// ObserveSuperstep records one executed process superstep.
func ObserveSuperstep(process string) {
	processSupersteps.WithLabelValues(process).Inc()
}

// ObserveProcessEvents records routed process events.
func ObserveProcessEvents(process string, n int) {
	processEvents.WithLabelValues(process).Add(float64(n))
}
