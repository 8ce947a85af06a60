package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const changeChannelPrefix = "kv:changed:"

// RedisConfig mirrors the connection knobs exposed through the environment.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis stores values as plain string keys and announces every write on a
// per-key pub/sub channel so other processes can observe it.
type Redis struct {
	client *redis.Client
	origin string
}

type redisChange struct {
	Origin string `json:"origin"`
	Value  []byte `json:"value"`
}

// NewRedisClient parses cfg.URL and checks connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, origin: uuid.NewString()}
}

func (r *Redis) Origin() string { return r.origin }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return r.announce(ctx, key, value)
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if ok {
		if err := r.announce(ctx, key, value); err != nil {
			return true, err
		}
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the key's change channel. The channel closes when ctx
// ends.
func (r *Redis) Watch(ctx context.Context, key string) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, changeChannelPrefix+key)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", key, err)
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c redisChange
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				if c.Origin == r.origin {
					continue
				}
				select {
				case out <- Change{Key: key, Value: c.Value, Origin: c.Origin}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) announce(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(redisChange{Origin: r.origin, Value: value})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, changeChannelPrefix+key, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}
