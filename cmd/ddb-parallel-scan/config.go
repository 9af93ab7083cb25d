package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/codec"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/dynamo"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/logging"
)

const envPrefix = "DDBSCAN"

var (
	// ErrMissingTable is returned when neither --table-name nor DDBSCAN_TABLE_NAME is given.
	ErrMissingTable = errors.New("--table-name is required")

	// ErrResumeWithoutCheckpoint is returned when --resume is set without a checkpoint store.
	ErrResumeWithoutCheckpoint = errors.New("--resume requires --checkpoint-redis")
)

// config is the parsed command line.
type config struct {
	input       *dynamodb.ScanInput
	outputItems bool
	mode        codec.Mode

	dynamo  dynamo.Config
	logging logging.Config

	metricsAddr     string
	checkpointRedis string
	resume          bool
}

func newFlagSet(output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ddb-parallel-scan", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	// Scan request
	fs.String("table-name", "", "table to scan (required)")
	fs.String("index-name", "", "secondary index to scan")
	fs.Int32("limit", 0, "maximum items evaluated per request")
	fs.String("return-consumed-capacity", "", "INDEXES, TOTAL or NONE")
	fs.Int32("total-segments", 0, "number of segments scanned in parallel")
	fs.Int32("segment", 0, "scan only this segment of --total-segments")
	fs.String("projection-expression", "", "attributes to retrieve")
	fs.String("filter-expression", "", "condition applied after each page is read")
	fs.Bool("consistent-read", false, "use strongly consistent reads")
	fs.String("expression-attribute-names", "", `ExpressionAttributeNames as JSON (e.g. {"#P":"Percentile"})`)
	fs.String("expression-attribute-values", "", `ExpressionAttributeValues as JSON (e.g. {":variable": {"S": "sample"}})`)

	// Output
	fs.Bool("output-items", false, "print one item per line instead of one page per line")
	fs.Bool("use-document-client", false, "plain JSON values for --expression-attribute-values and output")

	// Environment
	fs.String("region", "", "AWS region")
	fs.String("endpoint-url", "", "DynamoDB endpoint override (e.g. http://localhost:8000)")
	fs.String("profile", "", "shared config profile")
	fs.String("log-level", string(logging.LevelInfo), "debug, info, warn, error or disabled")
	fs.Bool("log-pretty", false, "human readable logs")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	fs.String("checkpoint-redis", "", "Redis address or URL for segment checkpoints")
	fs.Bool("resume", false, "continue the checkpointed scan instead of starting over")

	return fs
}

// parseConfig parses args; every flag can also be set as DDBSCAN_<FLAG> with dashes as underscores.
func parseConfig(args []string, stderr io.Writer) (*config, error) {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg := &config{
		outputItems: v.GetBool("output-items"),
		mode:        codec.ModeRaw,
		dynamo: dynamo.Config{
			Region:   v.GetString("region"),
			Endpoint: v.GetString("endpoint-url"),
			Profile:  v.GetString("profile"),
		},
		metricsAddr:     v.GetString("metrics-addr"),
		checkpointRedis: v.GetString("checkpoint-redis"),
		resume:          v.GetBool("resume"),
	}
	if v.GetBool("use-document-client") {
		cfg.mode = codec.ModeDocument
	}

	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	cfg.logging = logging.Config{
		Level:  level,
		Pretty: v.GetBool("log-pretty"),
		Output: stderr,
	}

	if cfg.resume && cfg.checkpointRedis == "" {
		return nil, ErrResumeWithoutCheckpoint
	}

	cfg.input, err = buildInput(v, cfg.mode)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildInput maps the scan flags onto a ScanInput. Flags that were not set are left nil.
func buildInput(v *viper.Viper, mode codec.Mode) (*dynamodb.ScanInput, error) {
	table := v.GetString("table-name")
	if table == "" {
		return nil, ErrMissingTable
	}

	input := &dynamodb.ScanInput{TableName: aws.String(table)}

	if s := v.GetString("index-name"); s != "" {
		input.IndexName = aws.String(s)
	}
	if v.IsSet("limit") {
		input.Limit = aws.Int32(v.GetInt32("limit"))
	}
	if s := v.GetString("return-consumed-capacity"); s != "" {
		rcc := types.ReturnConsumedCapacity(strings.ToUpper(s))
		if !slices.Contains(rcc.Values(), rcc) {
			return nil, fmt.Errorf("invalid --return-consumed-capacity %q", s)
		}
		input.ReturnConsumedCapacity = rcc
	}
	if v.IsSet("total-segments") {
		input.TotalSegments = aws.Int32(v.GetInt32("total-segments"))
	}
	if v.IsSet("segment") {
		input.Segment = aws.Int32(v.GetInt32("segment"))
	}
	if s := v.GetString("projection-expression"); s != "" {
		input.ProjectionExpression = aws.String(s)
	}
	if s := v.GetString("filter-expression"); s != "" {
		input.FilterExpression = aws.String(s)
	}
	if v.IsSet("consistent-read") {
		input.ConsistentRead = aws.Bool(v.GetBool("consistent-read"))
	}

	if s := v.GetString("expression-attribute-names"); s != "" {
		if err := json.Unmarshal([]byte(s), &input.ExpressionAttributeNames); err != nil {
			return nil, fmt.Errorf("parse --expression-attribute-names: %w", err)
		}
	}

	if s := v.GetString("expression-attribute-values"); s != "" {
		values, err := parseValues([]byte(s), mode)
		if err != nil {
			return nil, fmt.Errorf("parse --expression-attribute-values: %w", err)
		}
		input.ExpressionAttributeValues = values
	}

	return input, nil
}

func parseValues(data []byte, mode codec.Mode) (map[string]types.AttributeValue, error) {
	if mode == codec.ModeDocument {
		return codec.MarshalDocument(data)
	}
	return codec.DecodeItem(data)
}
