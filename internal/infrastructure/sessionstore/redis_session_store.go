package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shopify-collector-app/internal/domain"

	"github.com/redis/go-redis/v9"
)

// stateTTL bounds how long an OAuth round trip may take before the state
// nonce expires.
const stateTTL = 10 * time.Minute

// RedisSessionStore holds in-flight OAuth sessions keyed by state nonce.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a session store backed by the given Redis
// client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func stateKey(state string) string {
	return "oauth_state:" + state
}

// Save stores the session under its state nonce with a bounded TTL.
func (s *RedisSessionStore) Save(ctx context.Context, session *domain.OAuthSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth session: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(session.State), payload, stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save oauth session: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes the session for a state nonce, so a
// replayed callback cannot reuse it. An unknown or expired state returns nil.
func (s *RedisSessionStore) Consume(ctx context.Context, state string) (*domain.OAuthSession, error) {
	payload, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth session: %w", err)
	}

	var session domain.OAuthSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth session: %w", err)
	}
	return &session, nil
}
