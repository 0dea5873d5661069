package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opInsert   = "insert"
	opUpdate   = "update"
	opDelete   = "delete"
	opFetch    = "fetch"
	opParallel = "parallel"
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coachledger",
		Subsystem: "batch",
		Name:      "items_total",
		Help:      "Items handled by batch operations, by outcome.",
	}, []string{"operation", "outcome"})

	chunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coachledger",
		Subsystem: "batch",
		Name:      "chunk_duration_seconds",
		Help:      "Time spent in one chunk call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func recordItems(operation string, succeeded, failed int) {
	if succeeded > 0 {
		itemsTotal.WithLabelValues(operation, "success").Add(float64(succeeded))
	}
	if failed > 0 {
		itemsTotal.WithLabelValues(operation, "error").Add(float64(failed))
	}
}

func observeChunk(operation string, started time.Time) {
	chunkDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
