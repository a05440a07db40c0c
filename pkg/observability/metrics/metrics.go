package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	rowsNormalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_rows_normalized_total",
		Help: "Source rows normalized into canonical documents.",
	}, []string{"institution", "kind"})

	rowsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_rows_rejected_total",
		Help: "Source rows rejected by schema validation or processing.",
	}, []string{"institution", "kind"})

	documentsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_documents_written_total",
		Help: "Patient upserts and treatment appends committed to the document store.",
	}, []string{"institution", "operation"})

	stubsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_stub_patients_created_total",
		Help: "Placeholder patient documents created for treatments that arrived first.",
	}, []string{"institution"})

	persistenceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_persistence_failures_total",
		Help: "Document store operations that failed.",
	}, []string{"institution", "operation"})

	runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_import_runs_total",
		Help: "Import runs by final status.",
	}, []string{"institution", "status"})
)

func init() {
	registry.MustRegister(rowsNormalized, rowsRejected, documentsWritten, stubsCreated, persistenceFailures, runs)
}

func ObserveNormalized(institution, kind string) {
	rowsNormalized.WithLabelValues(institution, kind).Inc()
}

func ObserveRejected(institution, kind string) {
	rowsRejected.WithLabelValues(institution, kind).Inc()
}

func ObserveWrite(institution, operation string) {
	documentsWritten.WithLabelValues(institution, operation).Inc()
}

func ObserveStub(institution string) {
	stubsCreated.WithLabelValues(institution).Inc()
}

func ObservePersistenceFailure(institution, operation string) {
	persistenceFailures.WithLabelValues(institution, operation).Inc()
}

func ObserveRun(institution, status string) {
	runs.WithLabelValues(institution, status).Inc()
}

// Registry exposes the collectors, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
