// Package rediswriter is a reference cachecore.CacheWriter/CacheLoader
// implementation backed by Redis, demonstrating write-through/read-through
// against the generic cache engine. Grounded on the teacher's
// pkg/history/cache/l2_cache.go (gzip-compressed JSON blobs, ErrNotFound
// mapping, ping-on-construct).
package rediswriter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Writer is a string-keyed, JSON-valued CacheWriter/CacheLoader backed by
// a Redis client. V must be JSON-marshalable.
type Writer[V any] struct {
	client      *redis.Client
	ttl         time.Duration
	compression bool
	keyPrefix   string
	logger      *slog.Logger
}

// Options configures a Writer.
type Options struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	MinIdle     int
	TTL         time.Duration
	Compression bool
	KeyPrefix   string
	Logger      *slog.Logger
}

// New constructs a Writer, pinging Redis once to fail fast on a bad
// configuration (mirrors the teacher's NewL2Cache connectivity check).
func New[V any](ctx context.Context, opts Options) (*Writer[V], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdle,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("rediswriter: connect: %w", err)
	}

	logger.Info("rediswriter initialized", "addr", opts.Addr, "db", opts.DB, "ttl", opts.TTL, "compression", opts.Compression)

	return &Writer[V]{client: client, ttl: opts.TTL, compression: opts.Compression, keyPrefix: opts.KeyPrefix, logger: logger}, nil
}

func (w *Writer[V]) redisKey(key string) string {
	if w.keyPrefix == "" {
		return key
	}
	return w.keyPrefix + ":" + key
}

// Write serializes value (optionally gzip-compressed) and stores it with
// the configured TTL.
func (w *Writer[V]) Write(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("rediswriter: marshal: %w", err)
	}
	if w.compression {
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("rediswriter: compress: %w", err)
		}
	}
	if err := w.client.Set(ctx, w.redisKey(key), data, w.ttl).Err(); err != nil {
		w.logger.Error("rediswriter: set failed", "key", key, "error", err)
		return fmt.Errorf("rediswriter: set: %w", err)
	}
	return nil
}

// WriteAll writes every entry independently via a pipeline.
func (w *Writer[V]) WriteAll(ctx context.Context, entries map[string]V) error {
	pipe := w.client.Pipeline()
	type pending struct {
		key string
	}
	var pendings []pending
	for key, value := range entries {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("rediswriter: marshal %q: %w", key, err)
		}
		if w.compression {
			data, err = compress(data)
			if err != nil {
				return fmt.Errorf("rediswriter: compress %q: %w", key, err)
			}
		}
		pipe.Set(ctx, w.redisKey(key), data, w.ttl)
		pendings = append(pendings, pending{key: key})
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("rediswriter: pipeline exec: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (w *Writer[V]) Delete(ctx context.Context, key string) error {
	if err := w.client.Del(ctx, w.redisKey(key)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("rediswriter: del: %w", err)
	}
	return nil
}

// DeleteAll removes every key given.
func (w *Writer[V]) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = w.redisKey(k)
	}
	if err := w.client.Del(ctx, redisKeys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("rediswriter: del all: %w", err)
	}
	return nil
}

// Load reads back a key previously written by Write. A Redis miss is
// reported as (zero, false, nil), not an error (CacheLoader contract).
func (w *Writer[V]) Load(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := w.client.Get(ctx, w.redisKey(key)).Bytes()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("rediswriter: get: %w", err)
	}
	if w.compression {
		data, err = decompress(data)
		if err != nil {
			return zero, false, fmt.Errorf("rediswriter: decompress: %w", err)
		}
	}
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("rediswriter: unmarshal: %w", err)
	}
	return value, true, nil
}

// LoadAll loads a batch of keys, skipping misses.
func (w *Writer[V]) LoadAll(ctx context.Context, keys []string) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, found, err := w.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			out[k] = v
		}
	}
	return out, nil
}

// Close releases the underlying Redis client.
func (w *Writer[V]) Close() error { return w.client.Close() }

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
