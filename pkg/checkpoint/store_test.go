package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to a local Redis and skips the test when none is running.
// The integration suite runs the same store against a testcontainers Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func startKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}}
}

func TestNewStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewStore(client, 0)
	require.NotNil(t, store)
	assert.Same(t, client, store.redis)
	assert.Equal(t, DefaultTTL, store.ttl)

	store = NewStore(client, time.Minute)
	assert.Equal(t, time.Minute, store.ttl)
}

func TestNewStore_Panic(t *testing.T) {
	assert.Panics(t, func() {
		NewStore(nil, 0)
	})
}

func TestRecord_OpenSegment(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	data, err := encodeRecord(startKey("41"), now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":false,"start_key":{"pk":{"S":"41"}},"updated_at":"2024-05-01T12:00:00Z"}`, string(data))

	state, err := decodeRecord(data)
	require.NoError(t, err)
	assert.False(t, state.Done)
	assert.Equal(t, startKey("41"), state.StartKey)
}

func TestRecord_DoneSegment(t *testing.T) {
	data, err := encodeRecord(nil, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "start_key")

	state, err := decodeRecord(data)
	require.NoError(t, err)
	assert.True(t, state.Done)
	assert.Nil(t, state.StartKey)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "nope"},
		{name: "open without key", data: `{"done":false}`},
		{name: "untyped key", data: `{"done":false,"start_key":{"pk":"41"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRecord([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidCheckpoint)
		})
	}
}

func TestStore_SaveLoad(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()
	key := Key{Table: "orders", TotalSegments: 3}

	writesBefore := promtestutil.ToFloat64(CheckpointWrites)

	require.NoError(t, store.Save(ctx, key, 0, startKey("10")))
	require.NoError(t, store.Save(ctx, key, 0, startKey("20")))
	require.NoError(t, store.Save(ctx, key, 2, nil))

	assert.Equal(t, writesBefore+3, promtestutil.ToFloat64(CheckpointWrites))

	states, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, startKey("20"), states[0].StartKey)
	assert.False(t, states[0].Done)
	assert.True(t, states[2].Done)

	ttl, err := client.TTL(ctx, key.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestStore_LoadMissing(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)

	states, err := store.Load(context.Background(), Key{Table: "missing", TotalSegments: 2})
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStore_LoadInvalidField(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)
	ctx := context.Background()
	key := Key{Table: "orders", TotalSegments: 2}

	require.NoError(t, client.HSet(ctx, key.String(), "not-a-segment", `{"done":true}`).Err())

	_, err := store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrInvalidCheckpoint)
}

func TestStore_Clear(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)
	ctx := context.Background()
	key := Key{Table: "orders", TotalSegments: 2}

	require.NoError(t, store.Save(ctx, key, 1, startKey("5")))
	require.NoError(t, store.Clear(ctx, key))

	exists, err := client.Exists(ctx, key.String()).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
