package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is the last successfully fetched body of a resource.
type Record struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps records by resource key. Get returns nil without error when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, r Record) error
	Delete(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, nil
	}

	r.Data = append([]byte(nil), r.Data...)
	return &r, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Data = append([]byte(nil), r.Data...)
	s.records[key] = r
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// RedisStore shares records between dashboard replicas.
// A zero ttl keeps records until they are overwritten.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(r redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  r,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	b, err := s.redis.Get(ctx, s.getKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}

	return &r, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}

	return s.redis.Set(ctx, s.getKey(key), b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, s.getKey(key)).Err()
}

func (s *RedisStore) getKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", s.prefix, key)
}
