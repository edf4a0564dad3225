package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis so several consoles can share one
// admin login. Each key of the record is stored as its own string key under
// a common prefix.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

// RedisConfig holds configuration for the Redis session store.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// Prefix is prepended to every key (default "chatwatch:").
	Prefix string

	// TTL expires the keys server-side; zero keeps them until Delete.
	TTL time.Duration

	// OpTimeout bounds each round trip (default 5s).
	OpTimeout time.Duration
}

// NewRedisStore parses cfg.URL and returns a store using a new client.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), cfg), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "chatwatch:"
	}
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &RedisStore{
		client:    client,
		prefix:    cfg.Prefix,
		ttl:       cfg.TTL,
		opTimeout: cfg.OpTimeout,
	}
}

func (r *RedisStore) keys() []string {
	return []string{r.prefix + KeyAuth, r.prefix + KeyAuthTimestamp, r.prefix + KeySessionID}
}

// Save replaces all session keys in a single MULTI/EXEC transaction.
func (r *RedisStore) Save(s *Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	rec := encode(s)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.keys()...)
		for k, v := range rec {
			pipe.Set(ctx, r.prefix+k, v, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load reads all session keys with one MGET.
func (r *RedisStore) Load() (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	names := []string{KeyAuth, KeyAuthTimestamp, KeySessionID}
	vals, err := r.client.MGet(ctx, r.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	rec := record{}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, ErrCorruptSession
		}
		rec[names[i]] = str
	}
	if len(rec) == 0 {
		return nil, ErrNoSession
	}
	return decode(rec)
}

// Delete removes all session keys.
func (r *RedisStore) Delete() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.keys()...).Err(); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
