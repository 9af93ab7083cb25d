package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "nil error has no class",
			err:      nil,
			expected: "",
		},
		{
			name:     "canceled context",
			err:      context.Canceled,
			expected: ErrorClassCanceled,
		},
		{
			name:     "wrapped deadline",
			err:      fmt.Errorf("operation error DynamoDB: Scan: %w", context.DeadlineExceeded),
			expected: ErrorClassCanceled,
		},
		{
			name:     "provisioned throughput exceeded",
			err:      &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			expected: ErrorClassThrottling,
		},
		{
			name:     "request limit exceeded",
			err:      &types.RequestLimitExceeded{Message: aws.String("account limit")},
			expected: ErrorClassThrottling,
		},
		{
			name:     "generic throttling",
			err:      &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"},
			expected: ErrorClassThrottling,
		},
		{
			name:     "validation",
			err:      &smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient},
			expected: ErrorClassClient,
		},
		{
			name:     "missing table",
			err:      &types.ResourceNotFoundException{Message: aws.String("table not found")},
			expected: ErrorClassClient,
		},
		{
			name:     "internal server error",
			err:      &types.InternalServerError{Message: aws.String("boom")},
			expected: ErrorClassServer,
		},
		{
			name:     "generic server fault",
			err:      &smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer},
			expected: ErrorClassServer,
		},
		{
			name:     "transport error",
			err:      errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"),
			expected: ErrorClassNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestErrorClass_Transient(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected bool
	}{
		{ErrorClassThrottling, true},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassClient, false},
		{ErrorClassCanceled, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.class.Transient())
		})
	}
}
