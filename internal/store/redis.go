package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr string
	DB   int
	Key  string
	// Client, when set, is used instead of dialing Addr. The store does not
	// close a client it did not create.
	Client *redis.Client
}

// Redis keeps the slot under a single string key.
type Redis struct {
	client *redis.Client
	key    string
	owned  bool
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	key := cfg.Key
	if key == "" {
		key = "polyconsole:" + Slot
	}
	client, owned := cfg.Client, false
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		owned = true
	}
	if err := client.Ping(ctx).Err(); err != nil {
		if owned {
			client.Close()
		}
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return &Redis{client: client, key: key, owned: owned}, nil
}

func (r *Redis) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", r.wrap("load", err)
	}
	return token, nil
}

func (r *Redis) Save(ctx context.Context, token string) error {
	return r.wrap("save", r.client.Set(ctx, r.key, token, 0).Err())
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.wrap("clear", r.client.Del(ctx, r.key).Err())
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis store: %s: %w", op, ErrClosed)
	}
	return fmt.Errorf("redis store: %s: %w", op, err)
}
