package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/pkg/httpclient"
	"github.com/utafrali/ReviewPulse/pkg/logger"
	"github.com/utafrali/ReviewPulse/pkg/tracing"
	"github.com/utafrali/ReviewPulse/services/review/internal/directory"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// ReviewSource reads accounts and reviews from the business directory.
type ReviewSource interface {
	ListAccounts(ctx context.Context, accessToken string) ([]directory.Account, error)
	ListReviews(ctx context.Context, accessToken, account, location string) ([]directory.Review, error)
}

// TokenProvider hands out access tokens and refreshes rejected ones.
type TokenProvider interface {
	GetValidToken(ctx context.Context, userID string) (*domain.TokenState, error)
	Refresh(ctx context.Context, userID, staleAccessToken string) (*domain.TokenState, error)
}

// DegradationEvents is told about every store that came back as a system message.
type DegradationEvents interface {
	PublishFetchDegraded(ctx context.Context, userID string, msg domain.Review) error
}

// RetryPolicy governs how a directory call rejected with 401 is retried.
type RetryPolicy struct {
	// MaxRetries is the number of refresh-and-retry rounds after a 401.
	MaxRetries int
	// Backoff is waited between the refresh and the repeated call.
	Backoff time.Duration
}

// DefaultRetryPolicy refreshes once and retries once, without delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1}
}

// FetcherConfig tunes the ReviewFetcher.
type FetcherConfig struct {
	Retry RetryPolicy
	// StoreTimeout bounds all directory calls for one store, refresh waits
	// included. It must stay below the request deadline so a hung store
	// degrades to fetch_error instead of expiring the whole request. Zero
	// disables it.
	StoreTimeout time.Duration
	// Now overrides the clock used to stamp system messages; nil means time.Now.
	Now func() time.Time
}

// ReviewFetcher reads one store's reviews and turns every recoverable
// failure into a single system message. Only AuthExpired and cancellation of
// the caller's context escape as errors.
type ReviewFetcher struct {
	source       ReviewSource
	tokens       TokenProvider
	events       DegradationEvents
	logger       *slog.Logger
	retry        RetryPolicy
	storeTimeout time.Duration
	now          func() time.Time
}

// NewReviewFetcher creates a ReviewFetcher.
func NewReviewFetcher(source ReviewSource, tokens TokenProvider, events DegradationEvents, logger *slog.Logger, cfg FetcherConfig) *ReviewFetcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReviewFetcher{
		source:       source,
		tokens:       tokens,
		events:       events,
		logger:       logger,
		retry:        cfg.Retry,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
	}
}

// Fetch returns the normalized reviews of store, or a one-element slice
// holding a system message when the store could not be read. A store with no
// linked external location yields no entries.
func (f *ReviewFetcher) Fetch(ctx context.Context, userID string, store domain.Store) ([]domain.Review, error) {
	if !store.IsLinked() {
		storeFetchTotal.WithLabelValues(outcomeSkipped).Inc()
		return []domain.Review{}, nil
	}

	ctx = logger.WithStoreID(ctx, store.ID)
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "review.FetchStore")
	span.SetAttributes(
		attribute.String("review.store.id", store.ID),
		attribute.String("review.store.location", store.ExternalLocationID),
	)
	defer span.End()

	start := time.Now()
	reviews, err := f.fetch(ctx, userID, store)
	fetchDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		storeFetchTotal.WithLabelValues(outcomeOK).Inc()
		span.SetAttributes(attribute.Int("review.count", len(reviews)))
		return reviews, nil
	}

	var failure *domain.FetchFailure
	if errors.As(err, &failure) {
		msg := failure.SystemMessage(store, f.now())
		storeFetchTotal.WithLabelValues(string(msg.MessageType)).Inc()
		span.SetAttributes(attribute.String("review.message_type", string(msg.MessageType)))

		log := logger.WithContext(ctx, f.logger)
		log.WarnContext(ctx, "store fetch degraded",
			slog.String("message_type", string(msg.MessageType)),
			slog.String("error", err.Error()),
		)
		if f.events != nil {
			if perr := f.events.PublishFetchDegraded(ctx, userID, msg); perr != nil {
				log.WarnContext(ctx, "failed to publish fetch degraded event",
					slog.String("error", perr.Error()),
				)
			}
		}
		return []domain.Review{msg}, nil
	}

	if apperrors.IsAuthExpired(err) {
		storeFetchTotal.WithLabelValues(outcomeAuthExpired).Inc()
	} else {
		storeFetchTotal.WithLabelValues(outcomeCanceled).Inc()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// fetch runs the directory calls for store under its own deadline. ctx is the
// caller's context and decides what is fatal; callCtx only bounds this store.
func (f *ReviewFetcher) fetch(ctx context.Context, userID string, store domain.Store) ([]domain.Review, error) {
	callCtx := ctx
	if f.storeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.storeTimeout)
		defer cancel()
	}

	tok, err := f.tokens.GetValidToken(callCtx, userID)
	if err != nil {
		// The pair vanished mid-request: a concurrent refresh failed and dropped it.
		if errors.Is(err, apperrors.ErrAuthRequired) {
			return nil, apperrors.AuthExpired(expiredMessage, err)
		}
		return nil, degrade(ctx, callCtx, domain.FailureTransient, err)
	}

	accounts, tok, err := withAuthRetry(callCtx, f.retry, f.tokens, userID, tok,
		func(ctx context.Context, accessToken string) ([]directory.Account, error) {
			return f.source.ListAccounts(ctx, accessToken)
		})
	if err != nil {
		return nil, degrade(ctx, callCtx, domain.FailureAccountUnavailable, err)
	}
	if len(accounts) == 0 {
		return nil, &domain.FetchFailure{Kind: domain.FailureNoAccount}
	}

	raw, _, err := withAuthRetry(callCtx, f.retry, f.tokens, userID, tok,
		func(ctx context.Context, accessToken string) ([]directory.Review, error) {
			return f.source.ListReviews(ctx, accessToken, accounts[0].Name, store.ExternalLocationID)
		})
	if err != nil {
		return nil, degrade(ctx, callCtx, classifyReviewsError(err), err)
	}
	if len(raw) == 0 {
		return nil, &domain.FetchFailure{Kind: domain.FailureNoReviews}
	}

	reviews := make([]domain.Review, 0, len(raw))
	for _, r := range raw {
		reviews = append(reviews, normalizeReview(store, r))
	}
	return reviews, nil
}

// withAuthRetry runs call with tok. When the directory rejects the token with
// 401 the token is refreshed and the call repeated, up to p.MaxRetries times.
// It returns the token the last attempt used so later calls can reuse it.
func withAuthRetry[T any](
	ctx context.Context,
	p RetryPolicy,
	tokens TokenProvider,
	userID string,
	tok *domain.TokenState,
	call func(ctx context.Context, accessToken string) (T, error),
) (T, *domain.TokenState, error) {
	result, err := call(ctx, tok.AccessToken)
	for attempt := 0; attempt < p.MaxRetries && isUnauthorized(err); attempt++ {
		fresh, rerr := tokens.Refresh(ctx, userID, tok.AccessToken)
		if rerr != nil {
			var zero T
			return zero, tok, rerr
		}
		tok = fresh

		if p.Backoff > 0 {
			select {
			case <-ctx.Done():
				var zero T
				return zero, tok, ctx.Err()
			case <-time.After(p.Backoff):
			}
		}
		result, err = call(ctx, tok.AccessToken)
	}
	return result, tok, err
}

func isUnauthorized(err error) bool {
	return err != nil && httpclient.StatusCode(err) == http.StatusUnauthorized
}

// fatal reports whether err must abort the whole aggregation rather than
// degrade a single store. ctx is the caller's context, never the per-store one.
func fatal(ctx context.Context, err error) bool {
	return apperrors.IsAuthExpired(err) || ctx.Err() != nil
}

// degrade turns err into a store-level failure of kind, or returns it as is
// when it is fatal. A store that ran out of its own time budget is a
// transient failure whatever call it was in.
func degrade(ctx, callCtx context.Context, kind domain.FailureKind, err error) error {
	if fatal(ctx, err) {
		return err
	}
	if callCtx.Err() != nil {
		kind = domain.FailureTransient
	}
	return &domain.FetchFailure{Kind: kind, Err: err}
}

func classifyReviewsError(err error) domain.FailureKind {
	switch httpclient.StatusCode(err) {
	case http.StatusForbidden:
		return domain.FailureAccessRestricted
	case http.StatusNotFound:
		return domain.FailureNotFound
	default:
		return domain.FailureTransient
	}
}

func normalizeReview(store domain.Store, r directory.Review) domain.Review {
	created := parseTimestamp(r.CreateTime)
	updated := parseTimestamp(r.UpdateTime)
	if created.IsZero() {
		created = updated
	}
	if updated.IsZero() {
		updated = created
	}

	reviewer := strings.TrimSpace(r.Reviewer.DisplayName)
	if reviewer == "" {
		reviewer = domain.AnonymousReviewer
	}

	var replyText string
	if r.ReviewReply != nil {
		replyText = strings.TrimSpace(r.ReviewReply.Comment)
	}

	rating := domain.NormalizeRating(r.StarRating)
	return domain.Review{
		ID:           domain.ReviewID(store.ID, r.ReviewID, created, reviewer),
		StoreID:      store.ID,
		StoreName:    store.DisplayName,
		Rating:       rating,
		Text:         r.Comment,
		ReviewerName: reviewer,
		CreatedAt:    created,
		UpdatedAt:    updated,
		Replied:      replyText != "",
		ReplyText:    replyText,
		IsRealData:   rating != 0,
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
