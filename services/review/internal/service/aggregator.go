package service

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// DefaultFetchConcurrency bounds concurrent store fetches when none is configured.
const DefaultFetchConcurrency = 5

// StoreFetcher reads a single store's reviews.
type StoreFetcher interface {
	Fetch(ctx context.Context, userID string, store domain.Store) ([]domain.Review, error)
}

// Filters narrow an aggregated feed.
type Filters struct {
	UnrepliedOnly bool
	// Limit caps the number of returned entries; 0 means no cap.
	Limit int
}

// FeedResult is the merged, filtered review feed across a user's stores.
type FeedResult struct {
	Reviews []domain.Review `json:"reviews"`
	Count   int             `json:"count"`
	// TotalCount is the number of entries after filtering and before the limit.
	TotalCount        int    `json:"total_count"`
	StoresChecked     int    `json:"stores_checked"`
	HasSystemMessages bool   `json:"has_system_messages"`
	Message           string `json:"message"`
}

// ReviewAggregator fans store fetches out with bounded concurrency and merges
// the results into one feed ordered newest first.
type ReviewAggregator struct {
	fetcher     StoreFetcher
	concurrency int
}

// NewReviewAggregator creates a ReviewAggregator running at most concurrency fetches at once.
func NewReviewAggregator(fetcher StoreFetcher, concurrency int) *ReviewAggregator {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &ReviewAggregator{fetcher: fetcher, concurrency: concurrency}
}

// Aggregate fetches every store and builds the feed. The first error from a
// fetch (AuthExpired or cancellation) cancels the fetches still running,
// keeps queued ones from starting and is returned without partial results.
func (a *ReviewAggregator) Aggregate(ctx context.Context, userID string, stores []domain.Store, filters Filters) (*FeedResult, error) {
	perStore := make([][]domain.Review, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, store := range stores {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reviews, err := a.fetcher.Fetch(gctx, userID, store)
			if err != nil {
				return err
			}
			perStore[i] = reviews
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeReviews(perStore)
	hasSystem := slices.ContainsFunc(merged, func(r domain.Review) bool { return r.IsSystemMessage })

	filtered := merged
	if filters.UnrepliedOnly {
		filtered = slices.DeleteFunc(merged, func(r domain.Review) bool { return !r.IsUnreplied() })
	}
	total := len(filtered)
	if filters.Limit > 0 && len(filtered) > filters.Limit {
		filtered = filtered[:filters.Limit]
	}

	return &FeedResult{
		Reviews:           filtered,
		Count:             len(filtered),
		TotalCount:        total,
		StoresChecked:     len(stores),
		HasSystemMessages: hasSystem,
		Message:           feedMessage(len(filtered), len(stores), hasSystem),
	}, nil
}

// mergeReviews concatenates per-store results in store order, drops repeated
// IDs keeping the first, and sorts newest first. Entries with equal
// timestamps keep their merge order.
func mergeReviews(perStore [][]domain.Review) []domain.Review {
	merged := []domain.Review{}
	seen := make(map[string]struct{})
	for _, reviews := range perStore {
		for _, r := range reviews {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}
	slices.SortStableFunc(merged, func(a, b domain.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return merged
}

func feedMessage(count, stores int, hasSystem bool) string {
	switch {
	case stores == 0:
		return "No stores are linked to this account."
	case hasSystem:
		return fmt.Sprintf("Showing %d reviews from %d stores. Some stores could not be read, see the system messages.", count, stores)
	case count == 0:
		return fmt.Sprintf("No reviews found across %d stores.", stores)
	default:
		return fmt.Sprintf("Showing %d reviews from %d stores.", count, stores)
	}
}
