package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/pkg/logger"
	"github.com/utafrali/ReviewPulse/pkg/tracing"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
	"github.com/utafrali/ReviewPulse/services/review/internal/repository"
)

const tracerName = "github.com/utafrali/ReviewPulse/services/review/internal/service"

const expiredMessage = "business account authorization expired, reconnect required"

// cleanupTimeout bounds token invalidation after a failed refresh.
const cleanupTimeout = 5 * time.Second

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenState, error)
}

// ConnectionEvents is notified about the lifecycle of a user's token pair.
type ConnectionEvents interface {
	PublishConnectionExpired(ctx context.Context, userID, reason string) error
	PublishConnectionUpdated(ctx context.Context, userID string) error
	PublishConnectionRevoked(ctx context.Context, userID string) error
}

// TokenManagerConfig tunes the TokenManager.
type TokenManagerConfig struct {
	// RefreshTimeout bounds one refresh grant, independent of the caller's deadline.
	RefreshTimeout time.Duration
	// ExpirySkew treats tokens expiring within this margin as expired.
	ExpirySkew time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenManager owns every user's OAuth token pair. It is the only writer of
// the TokenStore. Refreshes are single-flight per user: concurrent callers
// share one refresh grant and its outcome.
type TokenManager struct {
	store     repository.TokenStore
	refresher TokenRefresher
	events    ConnectionEvents
	logger    *slog.Logger
	cfg       TokenManagerConfig
	flights   singleflight.Group
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(store repository.TokenStore, refresher TokenRefresher, events ConnectionEvents, logger *slog.Logger, cfg TokenManagerConfig) *TokenManager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	return &TokenManager{
		store:     store,
		refresher: refresher,
		events:    events,
		logger:    logger,
		cfg:       cfg,
	}
}

// GetValidToken returns the user's access token, refreshing it first when it
// has expired. A user without a stored token gets AuthRequired.
func (m *TokenManager) GetValidToken(ctx context.Context, userID string) (*domain.TokenState, error) {
	tok, err := m.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.AuthRequired("connect a business account first")
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if !tok.ExpiredAt(m.cfg.Now(), m.cfg.ExpirySkew) {
		return tok, nil
	}
	return m.Refresh(ctx, userID, tok.AccessToken)
}

// Refresh replaces staleAccessToken with a fresh one. If the stored token has
// already moved on from staleAccessToken and is still valid it is returned
// without calling the token endpoint. On failure the stored pair is deleted
// and AuthExpired is returned.
//
// The grant itself is detached from ctx so one caller giving up does not fail
// the others waiting on it; ctx only bounds how long this caller waits.
func (m *TokenManager) Refresh(ctx context.Context, userID, staleAccessToken string) (*domain.TokenState, error) {
	ch := m.flights.DoChan(userID, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), userID, staleAccessToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.TokenState), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *TokenManager) refresh(ctx context.Context, userID, staleAccessToken string) (_ *domain.TokenState, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.RefreshTimeout)
	defer cancel()

	ctx, span := tracing.Tracer(tracerName).Start(ctx, "review.TokenRefresh")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	current, err := m.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.AuthExpired(expiredMessage, nil)
		}
		return nil, fmt.Errorf("reload token: %w", err)
	}

	if current.AccessToken != staleAccessToken && !current.ExpiredAt(m.cfg.Now(), m.cfg.ExpirySkew) {
		tokenRefreshTotal.WithLabelValues(refreshReused).Inc()
		span.SetAttributes(attribute.Bool("review.token.reused", true))
		return current, nil
	}

	next, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		tokenRefreshTotal.WithLabelValues(refreshFailure).Inc()
		m.invalidate(ctx, userID, err)
		return nil, apperrors.AuthExpired(expiredMessage, err)
	}
	tokenRefreshTotal.WithLabelValues(refreshSuccess).Inc()

	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := m.store.Save(ctx, userID, next); err != nil {
		// The new access token is still good for this request.
		logger.WithContext(ctx, m.logger).ErrorContext(ctx, "failed to persist refreshed token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return next, nil
	}

	logger.WithContext(ctx, m.logger).InfoContext(ctx, "access token refreshed",
		slog.String("user_id", userID),
		slog.Time("expires_at", next.ExpiresAt),
	)
	return next, nil
}

// invalidate drops a token pair whose refresh failed and tells the notifier.
func (m *TokenManager) invalidate(ctx context.Context, userID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	log := logger.WithContext(ctx, m.logger)
	log.WarnContext(ctx, "token refresh failed, connection invalidated",
		slog.String("user_id", userID),
		slog.String("error", cause.Error()),
	)

	if err := m.store.Delete(ctx, userID); err != nil {
		log.ErrorContext(ctx, "failed to delete invalid token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if m.events != nil {
		if err := m.events.PublishConnectionExpired(ctx, userID, cause.Error()); err != nil {
			log.WarnContext(ctx, "failed to publish connection expired event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Connect stores the token pair handed over when the user completes OAuth.
func (m *TokenManager) Connect(ctx context.Context, userID string, tok *domain.TokenState) error {
	if userID == "" {
		return apperrors.AuthRequired("missing user identity")
	}
	if tok == nil || tok.AccessToken == "" {
		return apperrors.InvalidInput("access_token is required")
	}
	if err := m.store.Save(ctx, userID, tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	if m.events != nil {
		if err := m.events.PublishConnectionUpdated(ctx, userID); err != nil {
			m.logger.WarnContext(ctx, "failed to publish connection updated event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Disconnect forgets the user's token pair.
func (m *TokenManager) Disconnect(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.AuthRequired("missing user identity")
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	if m.events != nil {
		if err := m.events.PublishConnectionRevoked(ctx, userID); err != nil {
			m.logger.WarnContext(ctx, "failed to publish connection revoked event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
