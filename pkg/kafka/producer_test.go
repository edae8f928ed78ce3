package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func header(msg kafka.Message, key string) string {
	return headerCarrier{headers: &msg.Headers}.Get(key)
}

func publishCount(topic, result string) float64 {
	return testutil.ToFloat64(publishTotal.WithLabelValues(topic, result))
}

type degradedPayload struct {
	StoreID     string `json:"store_id"`
	MessageType string `json:"message_type"`
}

func TestNewEvent(t *testing.T) {
	data := degradedPayload{StoreID: "store-1", MessageType: "api_limitation"}
	event, err := NewEvent(TopicFetchDegraded, "user-1", "user", "review-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, TopicFetchDegraded, event.EventType)
	assert.Equal(t, "user-1", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
	assert.WithinDuration(t, time.Now(), event.Timestamp, 2*time.Second)

	var got degradedPayload
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)

	_, err = NewEvent("bad", "user-1", "user", "review-service", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal bad payload")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "review.fetch.degraded", TopicFetchDegraded)
	assert.Equal(t, "review.analytics.computed", TopicAnalyticsComputed)
	assert.Equal(t, "review.connection.expired", TopicConnectionExpired)
	assert.Equal(t, "review.connection.updated", TopicConnectionUpdated)
	assert.Equal(t, "review.connection.revoked", TopicConnectionRevoked)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"b1:9092"})
	assert.Equal(t, []string{"b1:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}

	event, err := NewEvent(TopicFetchDegraded, "user-1", "user", "review-service", degradedPayload{StoreID: "s1"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	before := publishCount(TopicFetchDegraded, resultOK)
	require.NoError(t, p.Publish(context.Background(), TopicFetchDegraded, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicFetchDegraded, msg.Topic)
	assert.Equal(t, "user-1", string(msg.Key))
	assert.Equal(t, TopicFetchDegraded, header(msg, "event_type"))
	assert.Equal(t, "review-service", header(msg, "source"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))
	assert.InDelta(t, before+1, publishCount(TopicFetchDegraded, resultOK), 0.001)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.JSONEq(t, `{"store_id":"s1","message_type":""}`, string(decoded.Data))
}

func TestProducer_Publish_WithoutCorrelationID(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}
	event, err := NewEvent(TopicConnectionUpdated, "user-3", "user", "review-service", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), TopicConnectionUpdated, event))
	require.Len(t, w.msgs, 1)
	assert.Empty(t, header(w.msgs[0], "correlation_id"))
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: discardLogger()}
	event, err := NewEvent(TopicConnectionExpired, "user-2", "user", "review-service", nil)
	require.NoError(t, err)

	topic := "review.test.publish-error"
	before := publishCount(topic, resultError)

	err = p.Publish(context.Background(), topic, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, err.Error(), "publish event to "+topic)
	assert.InDelta(t, before+1, publishCount(topic, resultError), 0.001)
}

func TestNewProducer_AsyncCountsFailedDeliveries(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:19092"})
	cfg.Async = true
	p := NewProducer(cfg, discardLogger())
	t.Cleanup(func() { _ = p.Close() })

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	require.NotNil(t, w.Completion)

	topic := "review.test.async-failure"
	before := publishCount(topic, resultError)
	w.Completion([]kafka.Message{{Topic: topic}, {Topic: topic}}, errors.New("broker down"))
	w.Completion([]kafka.Message{{Topic: topic}}, nil)
	assert.InDelta(t, before+2, publishCount(topic, resultError), 0.001)
}

func TestNewProducer_SyncHasNoCompletion(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	t.Cleanup(func() { _ = p.Close() })

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Nil(t, w.Completion)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
