package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/erain9/marketsim/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// MarketDataHandler processes one decoded market data message
type MarketDataHandler func(msg *messaging.MarketDataMessage) error

// Consumer reads market data messages from a Kafka topic
type Consumer struct {
	reader messageReader
	logger zerolog.Logger
}

// NewConsumer creates a consumer in groupID reading topic from brokers
func NewConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumerWithReader(reader, logger)
}

func newConsumerWithReader(r messageReader, logger zerolog.Logger) *Consumer {
	return &Consumer{reader: r, logger: logger}
}

// Consume reads messages until ctx is done. Undecodable messages and handler
// errors are logged and skipped. Returns nil on context cancellation.
func (c *Consumer) Consume(ctx context.Context, handler MarketDataHandler) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var msg messaging.MarketDataMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.logger.Warn().Err(err).Int64("offset", m.Offset).Msg("Skipping undecodable market data message")
			continue
		}
		if err := handler(&msg); err != nil {
			c.logger.Warn().Err(err).Str("symbol", msg.Symbol).Msg("Market data handler failed")
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a consumer in the background that logs every market
// data message it receives. The returned consumer must be closed by the caller.
func SetupConsumer(ctx context.Context, brokers []string, topic, groupID string, logger zerolog.Logger) *Consumer {
	consumer := NewConsumer(brokers, topic, groupID, logger)

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka market data consumer")
		err := consumer.Consume(ctx, func(msg *messaging.MarketDataMessage) error {
			logger.Info().
				Str("symbol", msg.Symbol).
				Str("bid", msg.BidPriceText).
				Int("bid_volume", msg.BidVolume).
				Str("ask", msg.AskPriceText).
				Int("ask_volume", msg.AskVolume).
				Msg("Received market data")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer
}
