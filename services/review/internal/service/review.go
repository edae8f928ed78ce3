package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/pkg/logger"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
	"github.com/utafrali/ReviewPulse/services/review/internal/repository"
)

const (
	// DefaultPeriodDays is the analytics window when the caller gives none.
	DefaultPeriodDays = 30
	// MaxPeriodDays is the widest analytics window accepted.
	MaxPeriodDays = 365
)

// AnalyticsEvents is notified after an analytics snapshot was computed.
type AnalyticsEvents interface {
	PublishAnalyticsComputed(ctx context.Context, userID, storeID string, snap domain.AnalyticsSnapshot) error
}

// ConnectInput is the token pair handed over after the user completed OAuth.
type ConnectInput struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds; 0 means unknown.
	ExpiresIn int
}

// ReviewService serves the aggregated review feed and its analytics.
type ReviewService struct {
	stores     repository.StoreDirectory
	tokens     *TokenManager
	aggregator *ReviewAggregator
	events     AnalyticsEvents
	logger     *slog.Logger
	now        func() time.Time
}

// NewReviewService creates a ReviewService.
func NewReviewService(
	stores repository.StoreDirectory,
	tokens *TokenManager,
	aggregator *ReviewAggregator,
	events AnalyticsEvents,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		stores:     stores,
		tokens:     tokens,
		aggregator: aggregator,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// ListReviews returns the merged feed across the user's stores, or only
// storeID's reviews when it is set.
func (s *ReviewService) ListReviews(ctx context.Context, userID, storeID string, filters Filters) (*FeedResult, error) {
	if filters.Limit < 0 {
		return nil, apperrors.InvalidInput("limit must not be negative")
	}

	stores, err := s.prepare(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	feed, err := s.aggregator.Aggregate(ctx, userID, stores, filters)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "review feed built",
		slog.Int("stores_checked", feed.StoresChecked),
		slog.Int("total_count", feed.TotalCount),
		slog.Bool("has_system_messages", feed.HasSystemMessages),
	)
	return feed, nil
}

// GetAnalytics computes the analytics snapshot over the last periodDays days.
func (s *ReviewService) GetAnalytics(ctx context.Context, userID, storeID string, periodDays int) (*domain.AnalyticsSnapshot, error) {
	if periodDays < 1 || periodDays > MaxPeriodDays {
		return nil, apperrors.InvalidInput(fmt.Sprintf("period_days must be between 1 and %d", MaxPeriodDays))
	}

	stores, err := s.prepare(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	feed, err := s.aggregator.Aggregate(ctx, userID, stores, Filters{})
	if err != nil {
		return nil, err
	}

	snap := domain.ComputeAnalytics(feed.Reviews, stores, periodDays, s.now())

	if s.events != nil {
		if err := s.events.PublishAnalyticsComputed(ctx, userID, storeID, snap); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "failed to publish analytics computed event",
				slog.String("error", err.Error()),
			)
		}
	}
	return &snap, nil
}

// Connect stores the user's business account token pair.
func (s *ReviewService) Connect(ctx context.Context, userID string, input ConnectInput) error {
	tok := &domain.TokenState{
		AccessToken:  input.AccessToken,
		RefreshToken: input.RefreshToken,
	}
	if input.ExpiresIn > 0 {
		tok.ExpiresAt = s.now().UTC().Add(time.Duration(input.ExpiresIn) * time.Second)
	}
	return s.tokens.Connect(ctx, userID, tok)
}

// Disconnect removes the user's business account token pair.
func (s *ReviewService) Disconnect(ctx context.Context, userID string) error {
	return s.tokens.Disconnect(ctx, userID)
}

// prepare checks that the user is connected and resolves the stores to read.
func (s *ReviewService) prepare(ctx context.Context, userID, storeID string) ([]domain.Store, error) {
	if userID == "" {
		return nil, apperrors.AuthRequired("missing user identity")
	}
	if _, err := s.tokens.GetValidToken(ctx, userID); err != nil {
		return nil, err
	}

	stores, err := s.stores.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	if storeID == "" {
		return stores, nil
	}

	for _, st := range stores {
		if st.ID == storeID {
			return []domain.Store{st}, nil
		}
	}
	return nil, apperrors.NotFound("store", storeID)
}
