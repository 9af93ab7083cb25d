package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/metrics"
)

var factory = promauto.With(metrics.Registry)

// Prometheus metrics for parallel scan operations.
var (
	scanRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddbscan_requests_total",
		Help: "Total Scan requests by table and outcome",
	}, []string{"table", "outcome"})

	scanRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ddbscan_request_duration_seconds",
		Help:    "Scan request duration in seconds by table",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"table"})

	scanPagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddbscan_pages_total",
		Help: "Total pages handed to the consumer by table",
	}, []string{"table"})

	scanItemsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddbscan_items_total",
		Help: "Total items handed to the consumer by table",
	}, []string{"table"})

	scanInflightRequests = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ddbscan_inflight_requests",
		Help: "Scan requests currently in flight",
	})

	scanResubmissionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ddbscan_resubmissions_total",
		Help: "Total continuation requests submitted by table",
	}, []string{"table"})
)
