package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors live on a private registry and are dumped to a textfile at the
// end of a run (see WriteMetrics); there is no HTTP endpoint.
//   - labpivot_op_total{comp,stage,result}
//   - labpivot_error_total{comp,code}
//   - labpivot_op_duration_ms{comp,stage}
//   - labpivot_documents_total{result}
var (
	registry = prometheus.NewRegistry()

	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labpivot",
		Name:      "op_total",
		Help:      "Component operations by stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labpivot",
		Name:      "error_total",
		Help:      "Errors by component and classified code.",
	}, []string{"comp", "code"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "labpivot",
		Name:      "op_duration_ms",
		Help:      "Stage duration in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
	}, []string{"comp", "stage"})

	documentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labpivot",
		Name:      "documents_total",
		Help:      "Documents processed, by result (ok|skipped).",
	}, []string{"result"})
)

func init() {
	registry.MustRegister(opTotal, errorTotal, opDuration, documentsTotal)
}

// IncOp counts one operation (result=success|error).
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError counts one classified error.
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration records a stage duration in milliseconds.
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// IncDocument counts one document outcome.
func IncDocument(ok bool) {
	result := "ok"
	if !ok {
		result = "skipped"
	}
	documentsTotal.WithLabelValues(result).Inc()
}

// Gatherer exposes the metrics registry (tests, custom exporters).
func Gatherer() prometheus.Gatherer { return registry }

// WriteMetrics writes every collector to path in the Prometheus text format
// (node_exporter textfile collector compatible). The write is atomic.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
