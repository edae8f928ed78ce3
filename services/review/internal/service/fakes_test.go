package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memTokenStore is an in-memory repository.TokenStore.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.TokenState
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]domain.TokenState)}
}

func (s *memTokenStore) put(userID string, tok domain.TokenState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = tok
}

func (s *memTokenStore) Get(_ context.Context, userID string) (*domain.TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[userID]
	if !ok {
		return nil, apperrors.NotFound("token", userID)
	}
	return &tok, nil
}

func (s *memTokenStore) Save(_ context.Context, userID string, tok *domain.TokenState) error {
	s.put(userID, *tok)
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// fakeRefresher counts refresh grants and answers with a fixed result.
type fakeRefresher struct {
	token *domain.TokenState
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (r *fakeRefresher) Refresh(ctx context.Context, _ string) (*domain.TokenState, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delay):
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	tok := *r.token
	return &tok, nil
}

// recordingEvents captures every published review event.
type recordingEvents struct {
	mu        sync.Mutex
	expired   []string
	updated   []string
	revoked   []string
	degraded  []domain.Review
	analytics []domain.AnalyticsSnapshot
}

func (e *recordingEvents) PublishConnectionExpired(_ context.Context, userID, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expired = append(e.expired, userID)
	return nil
}

func (e *recordingEvents) PublishConnectionUpdated(_ context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updated = append(e.updated, userID)
	return nil
}

func (e *recordingEvents) PublishConnectionRevoked(_ context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked = append(e.revoked, userID)
	return nil
}

func (e *recordingEvents) PublishFetchDegraded(_ context.Context, _ string, msg domain.Review) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.degraded = append(e.degraded, msg)
	return nil
}

func (e *recordingEvents) PublishAnalyticsComputed(_ context.Context, _, _ string, snap domain.AnalyticsSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analytics = append(e.analytics, snap)
	return nil
}

func (e *recordingEvents) degradedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.degraded)
}

// staticStores is an in-memory repository.StoreDirectory.
type staticStores struct {
	stores []domain.Store
	err    error
}

func (s staticStores) ListByOwner(_ context.Context, ownerID string) ([]domain.Store, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Store{}
	for _, st := range s.stores {
		if st.OwnerID == ownerID {
			out = append(out, st)
		}
	}
	return out, nil
}

func newTestTokenManager(store *memTokenStore, refresher *fakeRefresher, events *recordingEvents) *TokenManager {
	return NewTokenManager(store, refresher, events, discardLogger(), TokenManagerConfig{
		RefreshTimeout: time.Second,
		ExpirySkew:     30 * time.Second,
		Now:            fixedClock,
	})
}

func validToken(access string) domain.TokenState {
	return domain.TokenState{
		AccessToken:  access,
		RefreshToken: "refresh-1",
		ExpiresAt:    testNow.Add(time.Hour),
	}
}

func freshToken() *domain.TokenState {
	return &domain.TokenState{
		AccessToken: "fresh",
		ExpiresAt:   testNow.Add(time.Hour),
	}
}
