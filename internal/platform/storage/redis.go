// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package storage

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Opinionated default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
	opTimeout    = 2 * time.Second
)

// Redis is a [Store] backed by a single Redis hash, keyed per installation.
//
// # Usage
//
// Intended for server-side hosts of the SDK (bots, background workers, test
// rigs) where sessions should survive process restarts and be shareable
// across replicas.
//
// # Consistency Model
//
// The hash is loaded once at construction and mirrored in memory; reads are
// served from the mirror so the synchronous [Store] contract holds even
// when Redis is briefly unreachable. Writes go through to Redis and to the
// mirror; a failed remote write is logged and the mirror keeps the value
// so the local session stays coherent.
type Redis struct {
	mu     sync.Mutex
	client *redis.Client
	key    string
	mirror map[string]string
	log    *slog.Logger
}

// NewRedis parses a Redis URL, validates connectivity, and loads the hash
// stored under "volstory:storage:<installationID>".
//
// # Parameters
//   - context: Context for the initial ping and load.
//   - redisURL: Redis connection URL.
//   - installationID: Distinguishes multiple SDK instances on one server.
//   - logger: Structured logger for connection events.
func NewRedis(context stdctx.Context, redisURL, installationID string, logger *slog.Logger) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid redis URL: %w", err)
	}

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}

	store := &Redis{
		client: client,
		key:    "volstory:storage:" + installationID,
		mirror: make(map[string]string),
		log:    logger,
	}

	loadCtx, cancelLoad := stdctx.WithTimeout(context, opTimeout)
	defer cancelLoad()
	values, err := client.HGetAll(loadCtx, store.key).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis load failed: %w", err)
	}
	for k, v := range values {
		store.mirror[k] = v
	}

	logger.Info("redis storage connected",
		slog.String("addr", options.Addr),
		slog.Int("keys", len(values)),
	)

	return store, nil
}

// Get returns the mirrored value for key and whether it was present.
func (r *Redis) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.mirror[key]
	return value, ok
}

// Set writes value to the mirror and through to Redis.
func (r *Redis) Set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirror[key] = value

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), opTimeout)
	defer cancel()
	if err := r.client.HSet(ctx, r.key, key, value).Err(); err != nil {
		r.log.Error("redis storage set failed",
			slog.String("field", key),
			slog.Any("error", err),
		)
	}
}

// Remove deletes key from the mirror and from Redis.
func (r *Redis) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mirror, key)

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), opTimeout)
	defer cancel()
	if err := r.client.HDel(ctx, r.key, key).Err(); err != nil {
		r.log.Error("redis storage remove failed",
			slog.String("field", key),
			slog.Any("error", err),
		)
	}
}

// ClearAll wipes the mirror and deletes the hash.
func (r *Redis) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirror = make(map[string]string)

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), opTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		r.log.Error("redis storage clear failed", slog.Any("error", err))
	}
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
