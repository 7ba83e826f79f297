package telemetry

import "github.com/prometheus/client_golang/prometheus"

// NewMetricsRegistry builds a fresh Prometheus registry carrying the Go
// runtime/process collectors plus every collector passed in, so the
// /metrics endpoint exposes exactly this process's series and nothing
// accumulated on the package-level default registry.
func NewMetricsRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}
