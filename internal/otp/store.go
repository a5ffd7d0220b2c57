package otp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoChallenge indicates no stored challenge for the phone (never issued,
// expired out of the store, or already consumed).
var ErrNoChallenge = errors.New("no challenge")

const keyPrefix = "otp:v1:"

// Challenge is the stored state of one OTP exchange. One active challenge
// per phone; re-requesting overwrites it (last write wins).
type Challenge struct {
	Phone     string    `json:"phone"`
	ChannelID string    `json:"channel_id"`
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Store persists challenges with automatic expiry.
type Store interface {
	Put(ctx context.Context, ch Challenge) error
	Get(ctx context.Context, phone string) (Challenge, error)
	Delete(ctx context.Context, phone string) error
}

// RedisStore keeps challenges as JSON values under a per-phone key with a
// TTL matching the challenge expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed challenge store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put stores the challenge, replacing any previous entry for the phone.
func (s *RedisStore) Put(ctx context.Context, ch Challenge) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, ch.Phone)
	}
	return s.client.Set(ctx, keyPrefix+ch.Phone, payload, ttl).Err()
}

// Get loads the challenge for a phone.
func (s *RedisStore) Get(ctx context.Context, phone string) (Challenge, error) {
	raw, err := s.client.Get(ctx, keyPrefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, ErrNoChallenge
		}
		return Challenge{}, err
	}
	var ch Challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return Challenge{}, err
	}
	return ch, nil
}

// Delete removes the challenge.
func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, keyPrefix+phone).Err()
}
