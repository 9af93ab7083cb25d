// Package dynamo builds the DynamoDB client used by the parallel scan and
// wraps it with logging and error metrics.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Config holds the client configuration.
type Config struct {
	// Region overrides the region from the environment and shared config
	Region string

	// Endpoint overrides the service endpoint (e.g. http://localhost:8000 for DynamoDB Local)
	Endpoint string

	// Profile selects a shared config profile
	Profile string
}

// DefaultConfig returns a configuration that resolves everything from the environment.
func DefaultConfig() Config {
	return Config{}
}

// NewClient creates a DynamoDB client from the default AWS configuration chain.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}
