// Package checkpoint persists per segment scan positions in Redis so an
// interrupted parallel scan can resume where its consumer left off.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/codec"
	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/scan"
)

// DefaultTTL is how long an untouched checkpoint is kept.
const DefaultTTL = 24 * time.Hour

// ErrInvalidCheckpoint indicates a stored segment position could not be decoded.
var ErrInvalidCheckpoint = errors.New("invalid checkpoint")

// record is the JSON value stored per segment.
type record struct {
	Done      bool            `json:"done"`
	StartKey  json.RawMessage `json:"start_key,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store keeps one Redis hash per scan with one field per segment.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a checkpoint store. A non-positive ttl uses DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Save records the position of segment after a page was handled. An empty
// lastEvaluatedKey marks the segment as done. The checkpoint TTL is refreshed.
func (s *Store) Save(ctx context.Context, key Key, segment int32, lastEvaluatedKey map[string]types.AttributeValue) error {
	data, err := encodeRecord(lastEvaluatedKey, time.Now().UTC())
	if err != nil {
		CheckpointErrors.WithLabelValues("save").Inc()
		return err
	}

	redisKey := key.String()
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, redisKey, strconv.Itoa(int(segment)), data)
	pipe.Expire(ctx, redisKey, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		CheckpointErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("store checkpoint in redis: %w", err)
	}

	CheckpointWrites.Inc()
	return nil
}

// Load returns the stored segment positions. A missing checkpoint yields an empty map.
func (s *Store) Load(ctx context.Context, key Key) (map[int32]scan.SegmentState, error) {
	fields, err := s.redis.HGetAll(ctx, key.String()).Result()
	if err != nil {
		CheckpointErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	states := make(map[int32]scan.SegmentState, len(fields))
	for field, value := range fields {
		segment, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			CheckpointErrors.WithLabelValues("load").Inc()
			return nil, fmt.Errorf("%w: segment field %q", ErrInvalidCheckpoint, field)
		}

		state, err := decodeRecord([]byte(value))
		if err != nil {
			CheckpointErrors.WithLabelValues("load").Inc()
			return nil, fmt.Errorf("segment %d: %w", segment, err)
		}
		states[int32(segment)] = state
	}

	return states, nil
}

// Clear removes the checkpoint.
func (s *Store) Clear(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CheckpointErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func encodeRecord(lastEvaluatedKey map[string]types.AttributeValue, now time.Time) ([]byte, error) {
	rec := record{
		Done:      len(lastEvaluatedKey) == 0,
		UpdatedAt: now,
	}

	if !rec.Done {
		encoded, err := codec.EncodeItem(lastEvaluatedKey)
		if err != nil {
			return nil, fmt.Errorf("encode start key: %w", err)
		}
		rec.StartKey, err = json.Marshal(encoded)
		if err != nil {
			return nil, fmt.Errorf("marshal start key: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (scan.SegmentState, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return scan.SegmentState{}, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}

	if rec.Done {
		return scan.SegmentState{Done: true}, nil
	}
	if len(rec.StartKey) == 0 {
		return scan.SegmentState{}, fmt.Errorf("%w: open segment without start key", ErrInvalidCheckpoint)
	}

	startKey, err := codec.DecodeItem(rec.StartKey)
	if err != nil {
		return scan.SegmentState{}, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	return scan.SegmentState{StartKey: startKey}, nil
}
