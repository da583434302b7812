package metrics

import "github.com/prometheus/client_golang/prometheus"

var storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "student_store_operations_total",
	Help: "record store operations by result",
}, []string{"operation", "result"})

var recordsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "student_records",
	Help: "number of student records in the store",
})

var importedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "student_import_rows_total",
	Help: "rows seen by the CSV importer",
}, []string{"outcome"})

// Init registers the collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(storeOps)
	prometheus.MustRegister(recordsGauge)
	prometheus.MustRegister(importedCounter)
}

// ObserveOp counts one store operation.
func ObserveOp(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOps.WithLabelValues(operation, result).Inc()
}

// SetRecords tracks the current store size.
func SetRecords(n int) {
	recordsGauge.Set(float64(n))
}

// ObserveImport counts importer row outcomes ("inserted", "skipped", "invalid").
func ObserveImport(outcome string, n int) {
	importedCounter.WithLabelValues(outcome).Add(float64(n))
}
