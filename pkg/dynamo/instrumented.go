package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/metrics"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/scan"
)

var clientErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "ddbscan_client_errors_total",
	Help: "Total failed Scan calls by error class",
}, []string{"class"})

// InstrumentedClient logs every Scan call and counts failures by class.
// Outputs and errors are passed through unchanged.
type InstrumentedClient struct {
	client scan.ScanAPIClient
	logger zerolog.Logger
}

var _ scan.ScanAPIClient = (*InstrumentedClient)(nil)

// NewInstrumentedClient wraps client.
func NewInstrumentedClient(client scan.ScanAPIClient, logger zerolog.Logger) *InstrumentedClient {
	if client == nil {
		panic("scan client cannot be nil")
	}
	return &InstrumentedClient{
		client: client,
		logger: logger.With().Str("component", "dynamo-client").Logger(),
	}
}

// Scan implements scan.ScanAPIClient.
func (c *InstrumentedClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	startTime := time.Now()
	output, err := c.client.Scan(ctx, params, optFns...)
	duration := time.Since(startTime)

	if err != nil {
		class := Classify(err)
		clientErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Err(err).
			Str("error_class", string(class)).
			Bool("transient", class.Transient()).
			Str("table", aws.ToString(params.TableName)).
			Int32("segment", aws.ToInt32(params.Segment)).
			Dur("duration", duration).
			Msg("Scan request failed")
		return output, err
	}

	c.logger.Debug().
		Str("table", aws.ToString(params.TableName)).
		Int32("segment", aws.ToInt32(params.Segment)).
		Int32("count", output.Count).
		Int32("scanned_count", output.ScannedCount).
		Bool("last_page", len(output.LastEvaluatedKey) == 0).
		Dur("duration", duration).
		Msg("Scan request completed")
	return output, nil
}
