// Package kafka publishes generated timestep records to a Kafka topic for
// downstream streaming consumers. The sink is optional; CSV files remain the
// primary output.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/config"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/domain"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/observability"
)

// Retry backoff for transient broker failures: start at 200ms, double each
// attempt, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxAttempts    = 5
)

// Publisher produces timestep records to the configured topic. Messages are
// keyed by facility ID so one facility's rows land on one partition in
// order.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(rt *config.Runtime, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(rt.KafkaBrokers...),
		Topic:        rt.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// PublishTimesteps serializes and publishes a batch of timestep records in a
// single WriteMessages call.
func (p *Publisher) PublishTimesteps(ctx context.Context, runID string, records []domain.TimestepRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(runID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writeWithRetry(ctx, msgs); err != nil {
		return fmt.Errorf("publish %d timestep records: %w", len(records), err)
	}
	p.metrics.RecordsPublished.Add(float64(len(records)))
	p.logger.Debug("timestep records published", "count", len(records))
	return nil
}

// writeWithRetry retries transient broker failures with exponential backoff.
// Context cancellation aborts immediately.
func (p *Publisher) writeWithRetry(ctx context.Context, msgs []kafkago.Message) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		p.metrics.PublishErrors.Inc()
		if ctx.Err() != nil {
			return err
		}
		p.logger.Warn("publish attempt failed", "attempt", attempt, "error", err)
		if attempt == maxAttempts || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff)
	}
	return err
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a TimestepRecord into a Kafka message.
func serializeToMessage(runID string, rec domain.TimestepRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize timestep record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.FacilityID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "facility_id", Value: []byte(rec.FacilityID)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "generated_at", Value: []byte(rec.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
