// Package events publishes price lifecycle events to Kafka when a broker
// is configured. Publishing is best-effort: failures are logged and never
// surfaced to the ingestion path.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PriceIngestedEvent is the payload emitted after a sample is stored.
type PriceIngestedEvent struct {
	Type        string    `json:"type"`
	TokenSymbol string    `json:"token_symbol"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	Granularity string    `json:"granularity"`
	Source      string    `json:"source"`
}

// Publisher writes price events to a Kafka topic. A nil Publisher is a
// no-op, so callers don't need to guard for the disabled case.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// PriceIngested publishes an event for a freshly stored sample.
func (p *Publisher) PriceIngested(ctx context.Context, price model.TokenPrice) {
	if p == nil || p.writer == nil {
		return
	}

	event := PriceIngestedEvent{
		Type:        "price.ingested",
		TokenSymbol: price.TokenSymbol,
		Price:       price.Price,
		Timestamp:   price.Timestamp,
		Granularity: price.Granularity,
		Source:      price.Source,
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal price event", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(price.TokenSymbol),
		Value: value,
	})
	if err != nil {
		p.logger.Warn("failed to publish price event",
			zap.Error(err),
			zap.String("symbol", price.TokenSymbol))
	}
}

// Close closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
