// Package scan provides a parallel paginator for DynamoDB Scan operations
package scan

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Sternrassler/dynamodb-parallel-scan/pkg/scan"

var (
	// ErrPaginatorConsumed is yielded when the page sequence of a paginator is ranged over a second time.
	ErrPaginatorConsumed = errors.New("parallel scan paginator already consumed")

	// ErrNilParams is yielded when the paginator was built without scan input.
	ErrNilParams = errors.New("scan input cannot be nil")
)

// ScanAPIClient is the client the paginator issues Scan requests with.
// *dynamodb.Client satisfies it.
type ScanAPIClient interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Page is one Scan response together with the segment that produced it.
type Page struct {
	Segment int32
	*dynamodb.ScanOutput
}

// SegmentState is the position a segment resumes from.
type SegmentState struct {
	// StartKey is passed as ExclusiveStartKey on the segment's first request
	StartKey map[string]types.AttributeValue
	// Done segments are not scanned at all
	Done bool
}

// ParallelScanPaginatorOptions configures a ParallelScanPaginator.
type ParallelScanPaginatorOptions struct {
	// Logger receives debug level lifecycle events (default: global logger, component "parallel-scan")
	Logger *zerolog.Logger

	// CancelOnStop cancels requests still in flight when the consumer stops early.
	// The default waits for them to finish and discards their pages.
	CancelOnStop bool

	// Resume holds per segment start positions, keyed by segment index
	Resume map[int32]SegmentState

	// Tracer used for request spans (default: global otel tracer provider)
	Tracer trace.Tracer
}

// ParallelScanPaginator scans all segments of a table concurrently and
// produces their pages in completion order.
type ParallelScanPaginator struct {
	client   ScanAPIClient
	params   *dynamodb.ScanInput
	options  ParallelScanPaginatorOptions
	logger   zerolog.Logger
	consumed atomic.Bool
}

// NewParallelScanPaginator creates a paginator for params. TotalSegments sets
// the parallelism; a nil or non-positive value scans a single segment.
func NewParallelScanPaginator(client ScanAPIClient, params *dynamodb.ScanInput, optFns ...func(*ParallelScanPaginatorOptions)) *ParallelScanPaginator {
	if client == nil {
		panic("scan client cannot be nil")
	}

	var options ParallelScanPaginatorOptions
	for _, fn := range optFns {
		fn(&options)
	}

	logger := log.With().Str("component", "parallel-scan").Logger()
	if options.Logger != nil {
		logger = *options.Logger
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer(tracerName)
	}

	var template *dynamodb.ScanInput
	if params != nil {
		copied := *params
		template = &copied
	}

	return &ParallelScanPaginator{
		client:  client,
		params:  template,
		options: options,
		logger:  logger,
	}
}

// TotalSegments returns the effective segment count.
func (p *ParallelScanPaginator) TotalSegments() int32 {
	if p.params == nil {
		return 1
	}
	return effectiveSegments(p.params.TotalSegments)
}

func effectiveSegments(total *int32) int32 {
	if total == nil || *total <= 0 {
		return 1
	}
	return *total
}

// Pages returns the page sequence of the scan. Pages are produced lazily in
// completion order; a segment's next page is only requested once its previous
// page has been received. Breaking out of the loop stops all resubmission and
// returns once requests already dispatched have finished. A failed request is
// yielded as the final element with its original error.
//
// The sequence can only be ranged over once.
func (p *ParallelScanPaginator) Pages(ctx context.Context, optFns ...func(*dynamodb.Options)) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		if !p.consumed.CompareAndSwap(false, true) {
			yield(nil, ErrPaginatorConsumed)
			return
		}
		if p.params == nil {
			yield(nil, ErrNilParams)
			return
		}
		p.run(ctx, yield, optFns)
	}
}

// Items flattens Pages into a sequence of items.
func (p *ParallelScanPaginator) Items(ctx context.Context, optFns ...func(*dynamodb.Options)) iter.Seq2[map[string]types.AttributeValue, error] {
	return func(yield func(map[string]types.AttributeValue, error) bool) {
		for page, err := range p.Pages(ctx, optFns...) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// initialTasks builds the first task of every segment that still has data.
func (p *ParallelScanPaginator) initialTasks() []task {
	total := p.TotalSegments()

	if p.params.Segment != nil {
		return p.seed(total, []int32{*p.params.Segment})
	}

	segments := make([]int32, 0, total)
	for i := int32(0); i < total; i++ {
		segments = append(segments, i)
	}
	return p.seed(total, segments)
}

func (p *ParallelScanPaginator) seed(total int32, segments []int32) []task {
	tasks := make([]task, 0, len(segments))
	for _, segment := range segments {
		startKey := p.params.ExclusiveStartKey
		if state, ok := p.options.Resume[segment]; ok {
			if state.Done {
				continue
			}
			startKey = state.StartKey
		}
		tasks = append(tasks, newTask(p.params, total, segment, startKey))
	}
	return tasks
}

// run is the completion loop. It owns the outstanding count; nothing else
// submits work, so no resubmission can happen after yield returns false.
func (p *ParallelScanPaginator) run(ctx context.Context, yield func(*Page, error) bool, optFns []func(*dynamodb.Options)) {
	start := time.Now()
	table := aws.ToString(p.params.TableName)

	logger := p.logger.With().
		Str("scan_id", uuid.NewString()).
		Str("table", table).
		Int32("total_segments", p.TotalSegments()).
		Logger()

	tasks := p.initialTasks()
	if len(tasks) == 0 {
		logger.Debug().Msg("No segments left to scan")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := newWorkerPool(p.client, len(tasks), p.options.Tracer, optFns)
	pool.start(runCtx)

	pages := 0
	outstanding := 0
	stopped := false
	defer func() {
		if stopped && p.options.CancelOnStop {
			cancel()
		}
		pool.shutdown()

		logger.Debug().
			Int("pages", pages).
			Bool("stopped_early", stopped).
			Dur("duration", time.Since(start)).
			Msg("Parallel scan finished")
	}()

	logger.Debug().
		Int("segments", len(tasks)).
		Msg("Starting parallel scan")

	for _, t := range tasks {
		pool.submit(t)
		outstanding++
	}

	for outstanding > 0 {
		res := <-pool.results
		outstanding--

		if res.err != nil {
			yield(nil, res.err)
			return
		}

		pages++
		scanPagesTotal.WithLabelValues(table).Inc()
		scanItemsTotal.WithLabelValues(table).Add(float64(len(res.output.Items)))

		if !yield(&Page{Segment: res.task.segment, ScanOutput: res.output}, nil) {
			stopped = true
			return
		}

		if len(res.output.LastEvaluatedKey) == 0 {
			logger.Debug().
				Int32("segment", res.task.segment).
				Msg("Segment exhausted")
			continue
		}

		pool.submit(res.task.next(res.output.LastEvaluatedKey))
		outstanding++
		scanResubmissionsTotal.WithLabelValues(table).Inc()
	}
}
