package caching

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type CachingService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisCachingService struct {
	client *redis.Client
}

func NewRedisCachingService(client *redis.Client) *RedisCachingService {
	return &RedisCachingService{client: client}
}

func (s *RedisCachingService) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

func (s *RedisCachingService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisCachingService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// NullCachingService is the fallback when redis is not configured: every
// read misses and writes are dropped.
type NullCachingService struct{}

func NewNullCachingService() *NullCachingService { return &NullCachingService{} }

func (s *NullCachingService) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (s *NullCachingService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (s *NullCachingService) Delete(ctx context.Context, key string) error {
	return nil
}
