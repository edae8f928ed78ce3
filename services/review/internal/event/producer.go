package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/ReviewPulse/pkg/kafka"
	"github.com/utafrali/ReviewPulse/pkg/logger"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// Aggregate type constant. Review events are keyed by the owning user.
const AggregateTypeUser = "user"

// Source identifier for events originating from the review service.
const SourceReviewService = "review-service"

// FetchDegradedData is the payload for a review.fetch.degraded event.
type FetchDegradedData struct {
	UserID      string `json:"user_id"`
	StoreID     string `json:"store_id"`
	MessageType string `json:"message_type"`
	Detail      string `json:"detail"`
}

// AnalyticsComputedData is the payload for a review.analytics.computed event.
type AnalyticsComputedData struct {
	UserID        string  `json:"user_id"`
	StoreID       string  `json:"store_id,omitempty"`
	PeriodDays    int     `json:"period_days"`
	TotalStores   int     `json:"total_stores"`
	TotalReviews  int     `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`
	ResponseRate  int     `json:"response_rate"`
}

// ConnectionData is the payload for review.connection.* events.
type ConnectionData struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

// PublishFetchDegraded reports a store that was answered with a system message.
func (p *Producer) PublishFetchDegraded(ctx context.Context, userID string, msg domain.Review) error {
	return p.publish(ctx, pkgkafka.TopicFetchDegraded, userID, FetchDegradedData{
		UserID:      userID,
		StoreID:     msg.StoreID,
		MessageType: string(msg.MessageType),
		Detail:      msg.Text,
	})
}

// PublishAnalyticsComputed publishes the headline figures of a snapshot.
func (p *Producer) PublishAnalyticsComputed(ctx context.Context, userID, storeID string, snap domain.AnalyticsSnapshot) error {
	return p.publish(ctx, pkgkafka.TopicAnalyticsComputed, userID, AnalyticsComputedData{
		UserID:        userID,
		StoreID:       storeID,
		PeriodDays:    snap.PeriodDays,
		TotalStores:   snap.TotalStores,
		TotalReviews:  snap.TotalReviews,
		AverageRating: snap.AverageRating,
		ResponseRate:  snap.ResponseRate,
	})
}

// PublishConnectionExpired tells the notifier that the user has to reconnect
// their business account.
func (p *Producer) PublishConnectionExpired(ctx context.Context, userID, reason string) error {
	return p.publish(ctx, pkgkafka.TopicConnectionExpired, userID, ConnectionData{UserID: userID, Reason: reason})
}

// PublishConnectionUpdated records a new token pair handed over at OAuth completion.
func (p *Producer) PublishConnectionUpdated(ctx context.Context, userID string) error {
	return p.publish(ctx, pkgkafka.TopicConnectionUpdated, userID, ConnectionData{UserID: userID})
}

// PublishConnectionRevoked records a user disconnecting their business account.
func (p *Producer) PublishConnectionRevoked(ctx context.Context, userID string) error {
	return p.publish(ctx, pkgkafka.TopicConnectionRevoked, userID, ConnectionData{UserID: userID})
}
