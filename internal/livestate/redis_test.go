package livestate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronic-risk-monitor/internal/domain"
)

// testRedis returns a client for TEST_REDIS_URL, skipping when unset or
// unreachable.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisMirror_RoundTrip(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	opts := RedisOptions{Key: "risk-monitor:test:" + t.Name(), Channel: "risk-monitor:test:ticks"}
	t.Cleanup(func() { client.Del(context.Background(), opts.Key) })

	reader := NewRedisReader(client, opts, logger)
	_, err := reader.Current(ctx)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))

	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ticks := reader.Ticks(tickCtx)
	// give the subscription time to register
	time.Sleep(100 * time.Millisecond)

	_, producer := New()
	readings, vectors := tickReadings(4, 1, 2)
	snap := producer.Publish(readings, vectors, nil)

	mirror := NewRedisMirror(client, opts, logger)
	require.NoError(t, mirror.Mirror(ctx, snap))

	got, err := reader.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Tick(), got.Tick())
	assert.Equal(t, snap.ID(), got.ID())
	assert.Equal(t, snap.Readings(), got.Readings())

	select {
	case tick := <-ticks:
		assert.Equal(t, snap.Tick(), tick)
	case <-tickCtx.Done():
		t.Fatal("no tick announced")
	}
}
