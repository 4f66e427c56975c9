package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/marketsim/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

const sendTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer the sender uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender publishes JSON encoded market data messages to a Kafka topic
type Sender struct {
	writer messageWriter
	topic  string
}

// NewSender creates a sender writing to topic on brokers
func NewSender(brokers []string, topic string) (*Sender, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka sender needs a broker address and a topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,

		AllowAutoTopicCreation: true,
	}
	return newSenderWithWriter(writer, topic), nil
}

func newSenderWithWriter(w messageWriter, topic string) *Sender {
	return &Sender{writer: w, topic: topic}
}

// Topic returns the destination topic
func (s *Sender) Topic() string { return s.topic }

// SendMarketData publishes a market data message keyed by symbol
func (s *Sender) SendMarketData(ctx context.Context, msg *messaging.MarketDataMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal market data message: %w", err)
	}
	return s.write(ctx, msg.Symbol, data, msg.PublishedTime)
}

func (s *Sender) write(ctx context.Context, key string, value []byte, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  at,
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka writer
func (s *Sender) Close() error {
	return s.writer.Close()
}

var _ messaging.MarketDataSender = (*Sender)(nil)
