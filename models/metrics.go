package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	indexIDLabel   = "index_id"
	operationLabel = "operation"
	resultLabel    = "result"

	resultOK          = "ok"
	resultMiss        = "miss"
	resultOutOfDomain = "out_of_domain"
)

var (
	indexCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "index_count",
		Help: "The number of indexes.",
	})

	indexCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_count_total",
		Help: "The total number of indexes.",
	})

	indexElements = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "index_elements",
		Help: "The number of elements stored in an index.",
	}, []string{indexIDLabel})

	indexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "index_operations",
		Help: "The number of operations performed on indexes.",
	}, []string{
		operationLabel,
		resultLabel,
	})

	indexOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "index_operation_latency",
		Help: "The time to perform an operation on an index.",
	}, []string{operationLabel})
)

func instrumentAddIndex() {
	indexCount.Inc()
	indexCountTotal.Inc()
}

func instrumentRemoveIndex(indexID string) {
	indexCount.Dec()
	indexElements.DeleteLabelValues(indexID)
}

func instrumentElementCount(indexID string, count int) {
	indexElements.
		With(prometheus.Labels{indexIDLabel: indexID}).
		Set(float64(count))
}

func instrumentOperation(operation, result string, start time.Time) {
	indexOperations.
		With(prometheus.Labels{
			operationLabel: operation,
			resultLabel:    result,
		}).
		Inc()

	indexOperationLatency.
		With(prometheus.Labels{operationLabel: operation}).
		Observe(time.Since(start).Seconds())
}
