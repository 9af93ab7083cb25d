package scan

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// task is one Scan request for one segment.
type task struct {
	segment int32
	input   *dynamodb.ScanInput
}

func newTask(template *dynamodb.ScanInput, total, segment int32, startKey map[string]types.AttributeValue) task {
	input := *template
	input.TotalSegments = aws.Int32(total)
	input.Segment = aws.Int32(segment)
	input.ExclusiveStartKey = startKey
	return task{segment: segment, input: &input}
}

// next returns the task continuing this segment after lastKey.
func (t task) next(lastKey map[string]types.AttributeValue) task {
	input := *t.input
	input.ExclusiveStartKey = lastKey
	return task{segment: t.segment, input: &input}
}

// result of a finished task
type result struct {
	task   task
	output *dynamodb.ScanOutput
	err    error
}

// workerPool runs at most size Scan requests at a time. The queue and results
// channels hold size elements, so neither submit nor a worker's send blocks
// as long as no more than size tasks are outstanding.
type workerPool struct {
	client  ScanAPIClient
	tracer  trace.Tracer
	optFns  []func(*dynamodb.Options)
	size    int
	queue   chan task
	results chan result
	wg      sync.WaitGroup
}

func newWorkerPool(client ScanAPIClient, size int, tracer trace.Tracer, optFns []func(*dynamodb.Options)) *workerPool {
	return &workerPool{
		client:  client,
		tracer:  tracer,
		optFns:  optFns,
		size:    size,
		queue:   make(chan task, size),
		results: make(chan result, size),
	}
}

func (wp *workerPool) start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *workerPool) submit(t task) {
	wp.queue <- t
}

// shutdown stops accepting tasks and waits for every submitted task to finish.
func (wp *workerPool) shutdown() {
	close(wp.queue)
	wp.wg.Wait()
}

func (wp *workerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for t := range wp.queue {
		output, err := wp.execute(ctx, t)
		wp.results <- result{task: t, output: output, err: err}
	}
}

func (wp *workerPool) execute(ctx context.Context, t task) (*dynamodb.ScanOutput, error) {
	table := aws.ToString(t.input.TableName)

	ctx, span := wp.tracer.Start(ctx, "scan.segment", trace.WithAttributes(
		attribute.String("db.table", table),
		attribute.Int("scan.segment", int(t.segment)),
		attribute.Int("scan.total_segments", int(aws.ToInt32(t.input.TotalSegments))),
		attribute.Bool("scan.continuation", len(t.input.ExclusiveStartKey) > 0),
	))
	defer span.End()

	scanInflightRequests.Inc()
	startTime := time.Now()
	output, err := wp.client.Scan(ctx, t.input, wp.optFns...)
	scanRequestDuration.WithLabelValues(table).Observe(time.Since(startTime).Seconds())
	scanInflightRequests.Dec()

	if err != nil {
		scanRequestsTotal.WithLabelValues(table, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	scanRequestsTotal.WithLabelValues(table, "ok").Inc()
	span.SetAttributes(
		attribute.Int("scan.count", int(output.Count)),
		attribute.Int("scan.scanned_count", int(output.ScannedCount)),
	)
	return output, nil
}
