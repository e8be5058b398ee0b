// Package queue pushes serialized jobs onto a Redis list.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultName is the list consumers read from when none is configured.
const DefaultName = "queue:main"

// pusher is the subset of redis.Cmdable the queue needs.
type pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisQueue is a list-backed work queue. Producers LPUSH, consumers pop
// from the other end.
type RedisQueue struct {
	client pusher
	closer func() error
	name   string
	tracer trace.Tracer
}

// Options configures a RedisQueue.
type Options struct {
	URL          string
	Name         string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// New connects to the Redis server at opts.URL.
func New(ctx context.Context, opts Options) (*RedisQueue, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	q := NewWithClient(client, opts.Name)
	q.closer = client.Close
	return q, nil
}

// NewWithClient wraps an existing client. An empty name selects DefaultName.
func NewWithClient(client pusher, name string) *RedisQueue {
	if name == "" {
		name = DefaultName
	}
	return &RedisQueue{
		client: client,
		name:   name,
		tracer: otel.Tracer("neco/queue"),
	}
}

// Name returns the list key.
func (q *RedisQueue) Name() string { return q.name }

// Push prepends msg to the list.
func (q *RedisQueue) Push(ctx context.Context, msg []byte) error {
	ctx, span := q.tracer.Start(ctx, "queue.push", trace.WithAttributes(
		attribute.String("queue.name", q.name),
		attribute.Int("message.size", len(msg)),
	))
	defer span.End()

	if err := q.client.LPush(ctx, q.name, msg).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("lpush %s: %w", q.name, err)
	}
	return nil
}

// Len returns the number of messages waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	if q.closer != nil {
		return q.closer()
	}
	return nil
}
