// Package testutil provides testing utilities for the parallel scan paginator.
package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// KeyAttribute is the partition key of generated items.
const KeyAttribute = "pk"

// DefaultLimit is the page size used when a request sets no Limit.
const DefaultLimit = 100

// TestItem is the shape of generated items.
type TestItem struct {
	PK    string `dynamodbav:"pk"`
	Attr1 string `dynamodbav:"attr1"`
	Attr2 int    `dynamodbav:"attr2"`
}

// GenerateItem returns item i: {"pk": "<i>", "attr1": "test", "attr2": i}.
func GenerateItem(i int) map[string]types.AttributeValue {
	item, err := attributevalue.MarshalMap(TestItem{PK: strconv.Itoa(i), Attr1: "test", Attr2: i})
	if err != nil {
		panic(fmt.Sprintf("marshal test item %d: %v", i, err))
	}
	return item
}

// GenerateItems returns items 0..n-1.
func GenerateItems(n int) []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, GenerateItem(i))
	}
	return items
}

// FakeTable is an in-memory table answering segmented Scan requests.
// Segments are contiguous slices of the item list, sized like an even
// division with the remainder spread over the first segments.
type FakeTable struct {
	items []map[string]types.AttributeValue

	// Delay is applied to every request
	Delay time.Duration

	// SegmentDelay overrides Delay for individual segments
	SegmentDelay map[int32]time.Duration

	// Fail, when set, is consulted before a request is answered; a non-nil
	// return value is returned as the request's error
	Fail func(input *dynamodb.ScanInput) error

	mu              sync.Mutex
	calls           int
	completed       int
	inflight        int
	maxInflight     int
	segmentInflight map[int32]int
	overlap         bool
	inputs          []*dynamodb.ScanInput
}

// NewFakeTable creates a fake table holding items.
func NewFakeTable(items []map[string]types.AttributeValue) *FakeTable {
	return &FakeTable{
		items:           items,
		segmentInflight: make(map[int32]int),
	}
}

// Scan implements the Scan call of the DynamoDB client.
func (f *FakeTable) Scan(ctx context.Context, input *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	segment := aws.ToInt32(input.Segment)
	f.begin(segment, input)
	defer f.end(segment)

	if delay := f.delayFor(segment); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.Fail != nil {
		if err := f.Fail(input); err != nil {
			return nil, err
		}
	}

	return f.answer(input)
}

func (f *FakeTable) answer(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
	total := aws.ToInt32(input.TotalSegments)
	if total <= 0 {
		total = 1
	}
	segmentIndex := aws.ToInt32(input.Segment)
	if segmentIndex < 0 || segmentIndex >= total {
		return nil, validationError("Segment %d out of range for TotalSegments %d", segmentIndex, total)
	}

	limit := DefaultLimit
	if input.Limit != nil {
		if *input.Limit <= 0 {
			return nil, validationError("Limit must be positive")
		}
		limit = int(*input.Limit)
	}

	segment := divide(f.items, int(total))[segmentIndex]

	start := 0
	if len(input.ExclusiveStartKey) > 0 {
		idx := indexOf(segment, input.ExclusiveStartKey)
		if idx < 0 {
			return nil, validationError("The provided starting key is invalid")
		}
		start = idx + 1
	}

	end := start + limit
	if end > len(segment) {
		end = len(segment)
	}
	scanned := segment[start:end]

	matches, err := compileFilter(input)
	if err != nil {
		return nil, err
	}
	project, err := compileProjection(input)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]types.AttributeValue, 0, len(scanned))
	for _, item := range scanned {
		if matches(item) {
			items = append(items, project(item))
		}
	}

	output := &dynamodb.ScanOutput{
		Items:        items,
		Count:        int32(len(items)),
		ScannedCount: int32(len(scanned)),
	}
	if end < len(segment) {
		output.LastEvaluatedKey = keyOf(segment[end-1])
	}
	return output, nil
}

func (f *FakeTable) delayFor(segment int32) time.Duration {
	if d, ok := f.SegmentDelay[segment]; ok {
		return d
	}
	return f.Delay
}

func (f *FakeTable) begin(segment int32, input *dynamodb.ScanInput) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.inputs = append(f.inputs, input)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.segmentInflight[segment]++
	if f.segmentInflight[segment] > 1 {
		f.overlap = true
	}
}

func (f *FakeTable) end(segment int32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	f.segmentInflight[segment]--
	f.completed++
}

// Calls returns the number of Scan requests received.
func (f *FakeTable) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Completed returns the number of Scan requests that returned.
func (f *FakeTable) Completed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// MaxInflight returns the highest number of concurrent requests observed.
func (f *FakeTable) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// SegmentOverlap reports whether two requests for one segment ever ran at the same time.
func (f *FakeTable) SegmentOverlap() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

// Inputs returns the received requests in arrival order.
func (f *FakeTable) Inputs() []*dynamodb.ScanInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*dynamodb.ScanInput(nil), f.inputs...)
}

// Reset clears all tracking counters. It must not be called while requests are in flight.
func (f *FakeTable) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = 0
	f.completed = 0
	f.inflight = 0
	f.maxInflight = 0
	f.segmentInflight = make(map[int32]int)
	f.overlap = false
	f.inputs = nil
}

// SegmentSize returns how many items segment holds when the table is split into total segments.
func (f *FakeTable) SegmentSize(total, segment int) int {
	return len(divide(f.items, total)[segment])
}

// divide splits items into n contiguous parts whose sizes differ by at most one.
func divide(items []map[string]types.AttributeValue, n int) [][]map[string]types.AttributeValue {
	q, r := len(items)/n, len(items)%n
	parts := make([][]map[string]types.AttributeValue, n)
	start := 0
	for i := 0; i < n; i++ {
		size := q
		if i < r {
			size++
		}
		parts[i] = items[start : start+size]
		start += size
	}
	return parts
}

func keyOf(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{KeyAttribute: item[KeyAttribute]}
}

func indexOf(items []map[string]types.AttributeValue, key map[string]types.AttributeValue) int {
	want, ok := key[KeyAttribute].(*types.AttributeValueMemberS)
	if !ok {
		return -1
	}
	for i, item := range items {
		if pk, ok := item[KeyAttribute].(*types.AttributeValueMemberS); ok && pk.Value == want.Value {
			return i
		}
	}
	return -1
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

var filterPattern = regexp.MustCompile(`^\s*(#?\w+)\s*(<=|>=|<>|=|<|>)\s*(:\w+)\s*$`)

// compileFilter supports single comparisons of the form `name op :value`.
func compileFilter(input *dynamodb.ScanInput) (func(map[string]types.AttributeValue) bool, error) {
	expr := aws.ToString(input.FilterExpression)
	if expr == "" {
		return func(map[string]types.AttributeValue) bool { return true }, nil
	}

	m := filterPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, validationError("unsupported FilterExpression %q", expr)
	}
	name := resolveName(m[1], input.ExpressionAttributeNames)
	op := m[2]
	operand, ok := input.ExpressionAttributeValues[m[3]]
	if !ok {
		return nil, validationError("value %s not defined in ExpressionAttributeValues", m[3])
	}

	return func(item map[string]types.AttributeValue) bool {
		cmp, ok := compare(item[name], operand)
		if !ok {
			return false
		}
		switch op {
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		case ">=":
			return cmp >= 0
		case "=":
			return cmp == 0
		default:
			return cmp != 0
		}
	}, nil
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	}
	return 0, false
}

func compileProjection(input *dynamodb.ScanInput) (func(map[string]types.AttributeValue) map[string]types.AttributeValue, error) {
	expr := aws.ToString(input.ProjectionExpression)
	if expr == "" {
		return func(item map[string]types.AttributeValue) map[string]types.AttributeValue { return item }, nil
	}

	var names []string
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, validationError("invalid ProjectionExpression %q", expr)
		}
		names = append(names, resolveName(part, input.ExpressionAttributeNames))
	}

	return func(item map[string]types.AttributeValue) map[string]types.AttributeValue {
		projected := make(map[string]types.AttributeValue, len(names))
		for _, name := range names {
			if v, ok := item[name]; ok {
				projected[name] = v
			}
		}
		return projected
	}, nil
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}
