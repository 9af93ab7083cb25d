package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/metrics"
)

var factory = promauto.With(metrics.Registry)

var (
	// CheckpointWrites tracks segment positions written to Redis
	CheckpointWrites = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ddbscan_checkpoint_writes_total",
			Help: "Total number of segment positions written to Redis",
		},
	)

	// CheckpointErrors tracks checkpoint operation errors
	CheckpointErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddbscan_checkpoint_errors_total",
			Help: "Total number of checkpoint operation errors",
		},
		[]string{"operation"}, // "save", "load", "clear"
	)
)
