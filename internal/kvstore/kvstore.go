// Package kvstore implements the kernel's configuration key/value store: an
// in-process map that is the source of truth, optionally mirrored to Redis
// so multiple kernel processes can share configuration.
package kvstore

import (
	"context"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/opentcs-go/kernel/internal/kernellog"
)

// Store holds kernel configuration as string key/value pairs, per spec
// §4.6's configuration KV store requirement.
type Store struct {
	mu     sync.RWMutex
	values map[string]string

	redis  *redis.Client
	prefix string
	log    *kernellog.Logger
}

// New returns a Store with no Redis mirror; all operations stay in-process.
func New(log *kernellog.Logger) *Store {
	return &Store{values: make(map[string]string), log: log}
}

// NewWithRedis returns a Store that mirrors writes to addr under keyPrefix
// and preloads from it on construction. Redis unavailability at startup or
// during a write degrades to in-process-only operation; it is never fatal.
func NewWithRedis(ctx context.Context, addr, keyPrefix string, log *kernellog.Logger) *Store {
	s := &Store{
		values: make(map[string]string),
		prefix: keyPrefix,
		log:    log,
	}
	if addr == "" {
		return s
	}
	s.redis = redis.NewClient(&redis.Options{Addr: addr})
	s.preload(ctx)
	return s
}

func (s *Store) preload(ctx context.Context) {
	keys, err := s.redis.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		s.log.WithError(err).Warn("kvstore: redis preload failed, starting empty")
		return
	}
	for _, k := range keys {
		v, err := s.redis.Get(ctx, k).Result()
		if err != nil {
			continue
		}
		s.values[strings.TrimPrefix(k, s.prefix)] = v
	}
}

// Get returns the value stored at key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetOrDefault returns the value at key, or def if it is unset.
func (s *Store) GetOrDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set stores value at key, mirroring to Redis if configured.
func (s *Store) Set(ctx context.Context, key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
			s.log.WithError(err).Warn("kvstore: redis mirror write failed")
		}
	}
}

// Delete removes key, mirroring to Redis if configured.
func (s *Store) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, s.prefix+key).Err(); err != nil {
			s.log.WithError(err).Warn("kvstore: redis mirror delete failed")
		}
	}
}

// All returns a snapshot copy of every stored key/value pair.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
