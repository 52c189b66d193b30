package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fairdraw/pkg/platform/sentinel"
)

// RedisStore keeps live challenges in Redis so they survive process restarts
// and stay inspectable. Keys carry a TTL of twice the challenge validity
// window as a growth bound; the authoritative expiry decision is still the
// service's wall-clock check against IssuedAt.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, challengeTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: 2 * challengeTTL}
}

func challengeKey(identityID string) string {
	return "fairdraw:challenge:" + identityID
}

func (s *RedisStore) Put(ctx context.Context, challenge Challenge) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(challenge.IdentityID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identityID string) (Challenge, error) {
	payload, err := s.client.Get(ctx, challengeKey(identityID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, sentinel.ErrNotFound
		}
		return Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	var ch Challenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return ch, nil
}

func (s *RedisStore) Delete(ctx context.Context, identityID string) error {
	if err := s.client.Del(ctx, challengeKey(identityID)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
