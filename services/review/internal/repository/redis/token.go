package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

const keyPrefix = "review:token:"

// TokenStore implements repository.TokenStore using Redis. Each pair lives
// under its own key and expires after the configured TTL unless refreshed.
type TokenStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client redis.UniversalClient, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(userID string) string {
	return keyPrefix + userID
}

// Get loads the token pair for userID.
func (s *TokenStore) Get(ctx context.Context, userID string) (*domain.TokenState, error) {
	data, err := s.client.Get(ctx, tokenKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("token", userID)
		}
		return nil, fmt.Errorf("redis get token: %w", err)
	}

	var tok domain.TokenState
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &tok, nil
}

// Save writes the token pair and resets its TTL.
func (s *TokenStore) Save(ctx context.Context, userID string, token *domain.TokenState) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := s.client.Set(ctx, tokenKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Delete drops the token pair for userID.
func (s *TokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, tokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
