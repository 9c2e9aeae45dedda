package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-stage outcome counters and latency histograms,
// registered once at pipeline construction.
type Metrics struct {
	TasksAdmitted   prometheus.Counter
	TasksDropped    *prometheus.CounterVec
	DecodeErrors    prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ResolverErrors  prometheus.Counter
	ServfailSynth   prometheus.Counter
	ResponsesSent   prometheus.Counter
	TruncatedUDP    prometheus.Counter
	EncodeErrors    prometheus.Counter
	StageLatency    *prometheus.HistogramVec
}

// NewMetrics builds and registers the pipeline's Prometheus
// collectors against reg. Passing a fresh registry in tests avoids
// the "duplicate metrics collector registration" panic that comes
// from reusing the global default registerer across test cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "tasks_admitted_total",
			Help:      "Total tasks that acquired an admission permit.",
		}),
		TasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "tasks_dropped_total",
			Help:      "Total tasks dropped, labeled by stage and reason.",
		}, []string{"stage", "reason"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "decode_errors_total",
			Help:      "Total malformed queries rejected by the decoder stage.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache lookups that were hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache lookups that were misses.",
		}),
		ResolverErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "resolver",
			Name:      "errors_total",
			Help:      "Total forwarder resolution failures.",
		}),
		ServfailSynth: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "resolver",
			Name:      "servfail_synthesized_total",
			Help:      "Total SERVFAIL responses synthesized after retry exhaustion.",
		}),
		ResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "responses_sent_total",
			Help:      "Total responses written back to a client.",
		}),
		TruncatedUDP: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "udp_truncated_total",
			Help:      "Total UDP responses truncated with TC=1.",
		}),
		EncodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "encode_errors_total",
			Help:      "Total responses dropped for failing to encode (e.g. a name rejected on write).",
		}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scloud_dns",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage processing latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.TasksAdmitted, m.TasksDropped, m.DecodeErrors,
		m.CacheHits, m.CacheMisses, m.ResolverErrors,
		m.ServfailSynth, m.ResponsesSent, m.TruncatedUDP,
		m.EncodeErrors, m.StageLatency,
	)
	return m
}
