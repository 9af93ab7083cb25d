package dynamo

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

// ErrorClass represents a classification of failed Scan calls.
type ErrorClass string

const (
	// ErrorClassThrottling represents provisioned throughput and request rate errors.
	ErrorClassThrottling ErrorClass = "throttling"

	// ErrorClassClient represents rejected requests (validation, missing table, access).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents service side faults.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassCanceled represents calls abandoned through their context.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassNetwork represents transport errors that never produced an API response.
	ErrorClassNetwork ErrorClass = "network"
)

var throttlingCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
}

// Classify returns the class of err. A nil error has no class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] {
			return ErrorClassThrottling
		}
		if apiErr.ErrorFault() == smithy.FaultServer || apiErr.ErrorCode() == "InternalServerError" {
			return ErrorClassServer
		}
		return ErrorClassClient
	}

	return ErrorClassNetwork
}

// Transient reports whether a request failing with this class may succeed when sent again.
// The paginator never resends; callers decide.
func (c ErrorClass) Transient() bool {
	switch c {
	case ErrorClassThrottling, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
