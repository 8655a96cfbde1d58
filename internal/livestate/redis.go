package livestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/chronic-risk-monitor/internal/domain"
)

// RedisOptions locates the mirrored snapshot.
type RedisOptions struct {
	Key     string
	Channel string
}

func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// RedisMirror copies every published snapshot to Redis so processes other
// than the tick authority can read it.
type RedisMirror struct {
	client  redis.UniversalClient
	opts    RedisOptions
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewRedisMirror creates the producer-side mirror.
func NewRedisMirror(client redis.UniversalClient, opts RedisOptions, logger *logrus.Logger) *RedisMirror {
	return &RedisMirror{
		client:  client,
		opts:    opts,
		breaker: newBreaker("redis-mirror", logger),
		log:     logger,
	}
}

// Mirror writes snap to the key and announces its tick on the channel. The
// key is written before the announcement so a notified reader always finds
// the announced tick or a newer one.
func (m *RedisMirror) Mirror(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = m.breaker.Execute(func() (interface{}, error) {
		if err := m.client.Set(ctx, m.opts.Key, payload, 0).Err(); err != nil {
			return nil, err
		}
		if m.opts.Channel != "" {
			if err := m.client.Publish(ctx, m.opts.Channel, strconv.FormatUint(snap.Tick(), 10)).Err(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mirroring tick %d: %w", snap.Tick(), err)
	}

	m.log.WithFields(logrus.Fields{
		"tick": snap.Tick(),
		"key":  m.opts.Key,
	}).Debug("Snapshot mirrored to Redis")
	return nil
}

// RedisReader reads the mirrored snapshot. It satisfies Reader.
type RedisReader struct {
	client  redis.UniversalClient
	opts    RedisOptions
	breaker *gobreaker.CircuitBreaker
}

// NewRedisReader creates a reader-side view of the mirror.
func NewRedisReader(client redis.UniversalClient, opts RedisOptions, logger *logrus.Logger) *RedisReader {
	return &RedisReader{
		client:  client,
		opts:    opts,
		breaker: newBreaker("redis-reader", logger),
	}
}

// Current fetches and decodes the mirrored snapshot.
func (r *RedisReader) Current(ctx context.Context) (*Snapshot, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		data, err := r.client.Get(ctx, r.opts.Key).Bytes()
		if errors.Is(err, redis.Nil) {
			// an empty mirror is not a Redis failure
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading live state from redis: %w", err)
	}
	data, _ := res.([]byte)
	if data == nil {
		return nil, domain.ErrNoSnapshot
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decoding mirrored snapshot: %w", err)
	}
	return snap, nil
}

// Ticks delivers the tick numbers announced on the channel until ctx is
// done.
func (r *RedisReader) Ticks(ctx context.Context) <-chan uint64 {
	out := make(chan uint64, 1)
	sub := r.client.Subscribe(ctx, r.opts.Channel)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				tick, err := strconv.ParseUint(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
