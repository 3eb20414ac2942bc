package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrOutboxFull = errors.New("webhook outbox full")
	ErrNoTrigger  = errors.New("no webhook trigger available")
)

// Outbox decouples the event pipeline from webhook delivery.
type Outbox interface {
	Publish(ctx context.Context, t Trigger) error
	// Receive blocks until a trigger is available, the poll window elapses
	// (ErrNoTrigger) or ctx is done.
	Receive(ctx context.Context) (Trigger, error)
	DeadLetter(ctx context.Context, t Trigger) error
}

// RedisOutbox is a durable list-backed outbox shared by processes.
type RedisOutbox struct {
	Client *redis.Client
	Key    string
	// PollTimeout bounds each blocking pop.
	PollTimeout time.Duration
}

func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	return &RedisOutbox{Client: client, Key: key, PollTimeout: 5 * time.Second}
}

func (o *RedisOutbox) deadKey() string { return o.Key + ":dead" }

func (o *RedisOutbox) Publish(ctx context.Context, t Trigger) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return o.Client.LPush(ctx, o.Key, b).Err()
}

func (o *RedisOutbox) Receive(ctx context.Context) (Trigger, error) {
	res, err := o.Client.BRPop(ctx, o.PollTimeout, o.Key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Trigger{}, ErrNoTrigger
		}
		return Trigger{}, err
	}
	if len(res) != 2 {
		return Trigger{}, fmt.Errorf("unexpected brpop reply: %v", res)
	}
	var t Trigger
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return Trigger{}, fmt.Errorf("decode trigger: %w", err)
	}
	return t, nil
}

func (o *RedisOutbox) DeadLetter(ctx context.Context, t Trigger) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return o.Client.LPush(ctx, o.deadKey(), b).Err()
}

// ChanOutbox is an in-process outbox used when Redis is not configured.
// Publish never blocks; a full buffer drops the trigger.
type ChanOutbox struct {
	ch chan Trigger
}

func NewChanOutbox(size int) *ChanOutbox {
	if size <= 0 {
		size = 1024
	}
	return &ChanOutbox{ch: make(chan Trigger, size)}
}

func (o *ChanOutbox) Publish(ctx context.Context, t Trigger) error {
	select {
	case o.ch <- t:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (o *ChanOutbox) Receive(ctx context.Context) (Trigger, error) {
	select {
	case t := <-o.ch:
		return t, nil
	case <-ctx.Done():
		return Trigger{}, ctx.Err()
	}
}

func (o *ChanOutbox) DeadLetter(ctx context.Context, t Trigger) error { return nil }

func (o *ChanOutbox) Len() int { return len(o.ch) }

// DialRedis connects to a redis:// or rediss:// URL and verifies it responds.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
