package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_store_fetch_total",
			Help: "Per-store review fetches by outcome (ok, skipped, auth_expired, canceled or a system message type)",
		},
		[]string{"outcome"},
	)

	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_token_refresh_total",
			Help: "OAuth token refreshes by result (success, failure, reused)",
		},
		[]string{"result"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_fetch_duration_seconds",
			Help:    "Duration of a single store's review fetch including token refresh",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
	)
)

const (
	outcomeOK          = "ok"
	outcomeSkipped     = "skipped"
	outcomeAuthExpired = "auth_expired"
	outcomeCanceled    = "canceled"

	refreshSuccess = "success"
	refreshFailure = "failure"
	refreshReused  = "reused"
)
