package testutil

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivide(t *testing.T) {
	items := GenerateItems(10)

	parts := divide(items, 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 4)
	assert.Len(t, parts[1], 3)
	assert.Len(t, parts[2], 3)

	parts = divide(items[:2], 4)
	assert.Len(t, parts[0], 1)
	assert.Len(t, parts[1], 1)
	assert.Empty(t, parts[2])
	assert.Empty(t, parts[3])
}

func TestFakeTable_Continuation(t *testing.T) {
	table := NewFakeTable(GenerateItems(25))
	ctx := context.Background()

	input := &dynamodb.ScanInput{TableName: aws.String("t"), Limit: aws.Int32(10)}
	total := 0
	for {
		out, err := table.Scan(ctx, input)
		require.NoError(t, err)
		total += len(out.Items)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input = &dynamodb.ScanInput{TableName: aws.String("t"), Limit: aws.Int32(10), ExclusiveStartKey: out.LastEvaluatedKey}
	}

	assert.Equal(t, 25, total)
	assert.Equal(t, 3, table.Calls())
	assert.Equal(t, 3, table.Completed())
}

func TestFakeTable_DefaultLimit(t *testing.T) {
	table := NewFakeTable(GenerateItems(DefaultLimit + 5))

	out, err := table.Scan(context.Background(), &dynamodb.ScanInput{TableName: aws.String("t")})
	require.NoError(t, err)
	assert.Len(t, out.Items, DefaultLimit)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "99"}, out.LastEvaluatedKey[KeyAttribute])
}

func TestFakeTable_FilterAndProjection(t *testing.T) {
	table := NewFakeTable(GenerateItems(50))

	out, err := table.Scan(context.Background(), &dynamodb.ScanInput{
		TableName:                 aws.String("t"),
		FilterExpression:          aws.String("#a >= :min"),
		ProjectionExpression:      aws.String("pk"),
		ExpressionAttributeNames:  map[string]string{"#a": "attr2"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":min": &types.AttributeValueMemberN{Value: "45"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(5), out.Count)
	assert.Equal(t, int32(50), out.ScannedCount)
	for _, item := range out.Items {
		assert.Len(t, item, 1)
		assert.Contains(t, item, KeyAttribute)
	}
}

func TestFakeTable_Validation(t *testing.T) {
	table := NewFakeTable(GenerateItems(5))

	tests := []struct {
		name  string
		input *dynamodb.ScanInput
	}{
		{name: "segment out of range", input: &dynamodb.ScanInput{TotalSegments: aws.Int32(2), Segment: aws.Int32(2)}},
		{name: "zero limit", input: &dynamodb.ScanInput{Limit: aws.Int32(0)}},
		{name: "unknown start key", input: &dynamodb.ScanInput{ExclusiveStartKey: map[string]types.AttributeValue{
			KeyAttribute: &types.AttributeValueMemberS{Value: "missing"},
		}}},
		{name: "unsupported filter", input: &dynamodb.ScanInput{FilterExpression: aws.String("begins_with(pk, :p)")}},
		{name: "undefined value", input: &dynamodb.ScanInput{FilterExpression: aws.String("attr2 < :v")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Scan(context.Background(), tt.input)

			var apiErr smithy.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "ValidationException", apiErr.ErrorCode())
		})
	}
}

func TestFakeTable_Reset(t *testing.T) {
	table := NewFakeTable(GenerateItems(30))
	ctx := context.Background()

	for segment := int32(0); segment < 3; segment++ {
		_, err := table.Scan(ctx, &dynamodb.ScanInput{TotalSegments: aws.Int32(3), Segment: aws.Int32(segment)})
		require.NoError(t, err)
	}
	require.Equal(t, 3, table.Calls())

	table.Reset()

	assert.Zero(t, table.Calls())
	assert.Zero(t, table.Completed())
	assert.Zero(t, table.MaxInflight())
	assert.False(t, table.SegmentOverlap())
	assert.Empty(t, table.Inputs())
	assert.Empty(t, table.segmentInflight)
	assert.Zero(t, table.inflight)

	_, err := table.Scan(ctx, &dynamodb.ScanInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Calls())
	assert.Equal(t, 1, table.MaxInflight())
}
