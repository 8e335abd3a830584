package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

const (
	captchaPrefix = "captcha:"
	speechPrefix  = "speech:"
)

func (s *Store) SetCaptcha(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, captchaPrefix+email, code, ttl).Err()
}

// GetCaptcha returns redis.Nil when the code expired or was never set.
func (s *Store) GetCaptcha(ctx context.Context, email string) (string, error) {
	return s.client.Get(ctx, captchaPrefix+email).Result()
}

func (s *Store) DeleteCaptcha(ctx context.Context, email string) error {
	return s.client.Del(ctx, captchaPrefix+email).Err()
}

// SetSpeech caches synthesized audio keyed by a digest of the input text.
func (s *Store) SetSpeech(ctx context.Context, key string, audio []byte, ttl time.Duration) error {
	return s.client.Set(ctx, speechPrefix+key, audio, ttl).Err()
}

// GetSpeech returns redis.Nil on cache miss.
func (s *Store) GetSpeech(ctx context.Context, key string) ([]byte, error) {
	return s.client.Get(ctx, speechPrefix+key).Bytes()
}
