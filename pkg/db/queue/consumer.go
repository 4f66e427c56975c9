package queue

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/erain9/marketsim/pkg/messaging"
	"github.com/rs/zerolog/log"
)

// newConsumer is swapped out in tests
var newConsumer = sarama.NewConsumer

// ReportConsumer reads execution reports from partition 0 of a topic
type ReportConsumer struct {
	consumer  sarama.Consumer
	topic     string
	done      chan struct{}
	closeOnce sync.Once
}

// NewReportConsumer connects a consumer to brokers
func NewReportConsumer(brokers []string, topic string) (*ReportConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := newConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &ReportConsumer{consumer: consumer, topic: topic, done: make(chan struct{})}, nil
}

// Consume delivers decoded reports to handler until Close is called or the
// partition stream ends. Undecodable messages are logged and skipped.
func (c *ReportConsumer) Consume(handler func(msg *messaging.ExecutionMessage) error) error {
	pc, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer pc.Close()

	for {
		select {
		case <-c.done:
			return nil
		case m, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			msg, err := DecodeExecution(m.Value)
			if err != nil {
				log.Warn().Err(err).Int64("offset", m.Offset).Msg("Skipping undecodable execution report")
				continue
			}
			if err := handler(msg); err != nil {
				log.Warn().Err(err).Str("order_id", msg.OrderID).Msg("Execution report handler failed")
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			log.Warn().Err(cerr).Msg("Kafka consumer error")
		}
	}
}

// Close stops Consume and closes the consumer
func (c *ReportConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.consumer.Close()
	})
	return err
}
