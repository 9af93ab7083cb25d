// Command ddb-parallel-scan scans a DynamoDB table with parallel segments and
// prints the results as newline delimited JSON.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/checkpoint"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/codec"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/dynamo"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/logging"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/metrics"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/scan"
)

// clientFactory creates the client Scan requests are sent with.
type clientFactory func(ctx context.Context, cfg dynamo.Config) (scan.ScanAPIClient, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, newDynamoClient)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb-parallel-scan: %v\n", err)
		os.Exit(1)
	}
}

func newDynamoClient(ctx context.Context, cfg dynamo.Config) (scan.ScanAPIClient, error) {
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newClient clientFactory) error {
	cfg, err := parseConfig(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.logging).With().Str("component", "ddb-parallel-scan").Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.metricsAddr, logger); err != nil {
				logger.Warn().Err(err).Str("addr", cfg.metricsAddr).Msg("Metrics server stopped")
			}
		}()
	}

	client, err := newClient(ctx, cfg.dynamo)
	if err != nil {
		return fmt.Errorf("create dynamodb client: %w", err)
	}
	logger.Info().
		Str("region", cfg.dynamo.Region).
		Str("endpoint", cfg.dynamo.Endpoint).
		Msg("DynamoDB client configured")

	var cp *scanCheckpoint
	if cfg.checkpointRedis != "" {
		cp, err = openCheckpoint(ctx, cfg)
		if err != nil {
			return err
		}
		defer cp.close()
	}

	var resume map[int32]scan.SegmentState
	if cp != nil {
		if cfg.resume {
			resume, err = cp.store.Load(ctx, cp.key)
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			logger.Info().Str("checkpoint", cp.key.String()).Int("segments", len(resume)).Msg("Resuming scan from checkpoint")
		} else if err := cp.store.Clear(ctx, cp.key); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
	}

	paginator := scan.NewParallelScanPaginator(dynamo.NewInstrumentedClient(client, logger), cfg.input,
		func(o *scan.ParallelScanPaginatorOptions) {
			o.Resume = resume
		})

	out := bufio.NewWriter(stdout)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	startTime := time.Now()
	pages, items := 0, 0
	for page, err := range paginator.Pages(ctx) {
		if err != nil {
			logger.Error().Err(err).Str("error_class", string(dynamo.Classify(err))).Msg("Scan failed")
			return fmt.Errorf("scan %s: %w", aws.ToString(cfg.input.TableName), err)
		}

		if err := writePage(enc, page, cfg); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		if cp != nil {
			cp.save(ctx, page, logger)
		}

		pages++
		items += len(page.Items)
	}

	if cp != nil {
		if err := cp.store.Clear(ctx, cp.key); err != nil {
			logger.Warn().Err(err).Msg("Failed to clear checkpoint")
		}
	}

	logger.Info().
		Str("table", aws.ToString(cfg.input.TableName)).
		Int32("total_segments", paginator.TotalSegments()).
		Int("pages", pages).
		Int("items", items).
		Dur("duration", time.Since(startTime)).
		Msg("Scan finished")
	return nil
}

func writePage(enc *json.Encoder, page *scan.Page, cfg *config) error {
	if !cfg.outputItems {
		record, err := codec.PageRecord(page, cfg.mode)
		if err != nil {
			return fmt.Errorf("encode page: %w", err)
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}

	for _, item := range page.Items {
		record, err := codec.ItemRecord(item, cfg.mode)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

// scanCheckpoint records segment positions after every emitted page.
type scanCheckpoint struct {
	redis *redis.Client
	store *checkpoint.Store
	key   checkpoint.Key
}

func openCheckpoint(ctx context.Context, cfg *config) (*scanCheckpoint, error) {
	opts, err := redisOptions(cfg.checkpointRedis)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &scanCheckpoint{
		redis: rdb,
		store: checkpoint.NewStore(rdb, 0),
		key:   checkpointKey(cfg.input),
	}, nil
}

// checkpointKey returns the key of the scan described by input. A fixed segment gets its own key.
func checkpointKey(input *dynamodb.ScanInput) checkpoint.Key {
	key := checkpoint.Key{
		Table:         aws.ToString(input.TableName),
		Index:         aws.ToString(input.IndexName),
		TotalSegments: aws.ToInt32(input.TotalSegments),
	}
	if input.Segment != nil {
		segment := *input.Segment
		key.Segment = &segment
	}
	return key
}

// redisOptions accepts a plain host:port or a redis:// URL.
func redisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse --checkpoint-redis: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// save writes the page's position. A failed write is logged and the scan continues.
func (c *scanCheckpoint) save(ctx context.Context, page *scan.Page, logger zerolog.Logger) {
	if err := c.store.Save(ctx, c.key, page.Segment, page.LastEvaluatedKey); err != nil {
		logger.Warn().Err(err).Int32("segment", page.Segment).Msg("Checkpoint write failed")
	}
}

func (c *scanCheckpoint) close() {
	c.redis.Close()
}
