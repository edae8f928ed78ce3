package domain

import (
	"math"
	"time"
)

const dateLayout = "2006-01-02"

// DailyCount is the number of reviews created on one UTC calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StoreStats is the period breakdown for a single store.
type StoreStats struct {
	StoreID           string  `json:"store_id"`
	StoreName         string  `json:"store_name"`
	TotalReviews      int     `json:"total_reviews"`
	AverageRating     float64 `json:"average_rating"`
	UnansweredReviews int     `json:"unanswered_reviews"`
	ResponseRate      int     `json:"response_rate"`
}

// AnalyticsSnapshot is a rollup over a review feed for a time window. It is
// derived on every request and never stored.
type AnalyticsSnapshot struct {
	PeriodDays         int          `json:"period_days"`
	TotalStores        int          `json:"total_stores"`
	TotalReviews       int          `json:"total_reviews"`
	AverageRating      float64      `json:"average_rating"`
	RatingDistribution map[int]int  `json:"rating_distribution"`
	UnansweredReviews  int          `json:"unanswered_reviews"`
	ResponseRate       int          `json:"response_rate"`
	DailySeries        []DailyCount `json:"daily_series"`
	PerStoreStats      []StoreStats `json:"per_store_stats"`
}

type summary struct {
	total      int
	ratingSum  int
	unanswered int
}

func (s *summary) add(r Review) {
	s.total++
	s.ratingSum += r.Rating
	if !r.Replied {
		s.unanswered++
	}
}

func (s summary) average() float64 {
	if s.total == 0 {
		return 0
	}
	return math.Round(float64(s.ratingSum)/float64(s.total)*10) / 10
}

func (s summary) responseRate() int {
	if s.total == 0 {
		return 0
	}
	return int(math.Round(float64(s.total-s.unanswered) / float64(s.total) * 100))
}

// ComputeAnalytics rolls reviews up over the periodDays days ending at now.
// System messages never count. The result depends only on its arguments.
func ComputeAnalytics(reviews []Review, stores []Store, periodDays int, now time.Time) AnalyticsSnapshot {
	now = now.UTC()
	cutoff := now.Add(-time.Duration(periodDays) * 24 * time.Hour)

	var portfolio summary
	perStore := make(map[string]*summary, len(stores))
	for _, s := range stores {
		perStore[s.ID] = &summary{}
	}
	distribution := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	byDate := make(map[string]int)

	for _, r := range reviews {
		if r.IsSystemMessage {
			continue
		}
		byDate[r.CreatedAt.UTC().Format(dateLayout)]++

		if r.CreatedAt.Before(cutoff) {
			continue
		}
		portfolio.add(r)
		if r.Rating >= 1 && r.Rating <= 5 {
			distribution[r.Rating]++
		}
		if s, ok := perStore[r.StoreID]; ok {
			s.add(r)
		}
	}

	series := make([]DailyCount, 0, max(periodDays, 0))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := periodDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		series = append(series, DailyCount{Date: day, Count: byDate[day]})
	}

	stats := make([]StoreStats, 0, len(stores))
	for _, s := range stores {
		sum := perStore[s.ID]
		stats = append(stats, StoreStats{
			StoreID:           s.ID,
			StoreName:         s.DisplayName,
			TotalReviews:      sum.total,
			AverageRating:     sum.average(),
			UnansweredReviews: sum.unanswered,
			ResponseRate:      sum.responseRate(),
		})
	}

	return AnalyticsSnapshot{
		PeriodDays:         periodDays,
		TotalStores:        len(stores),
		TotalReviews:       portfolio.total,
		AverageRating:      portfolio.average(),
		RatingDistribution: distribution,
		UnansweredReviews:  portfolio.unanswered,
		ResponseRate:       portfolio.responseRate(),
		DailySeries:        series,
		PerStoreStats:      stats,
	}
}
