package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/messaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const maxRetry = 5

// newSyncProducer is swapped out in tests
var newSyncProducer = sarama.NewSyncProducer

// ReportSender publishes execution reports to Kafka as protobuf encoded
// structs. It is also a core.ExecutionListener so books can report to it directly.
type ReportSender struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var (
	_ messaging.ExecutionSender = (*ReportSender)(nil)
	_ core.ExecutionListener    = (*ReportSender)(nil)
)

// NewReportSender connects a synchronous producer to brokers
func NewReportSender(brokers []string, topic string) (*ReportSender, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &ReportSender{producer: producer, topic: topic, now: time.Now}, nil
}

// SendExecution publishes one execution report keyed by order id
func (r *ReportSender) SendExecution(_ context.Context, msg *messaging.ExecutionMessage) error {
	data, err := EncodeExecution(msg)
	if err != nil {
		return err
	}

	_, _, err = r.producer.SendMessage(&sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(msg.OrderID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("failed to send execution report to Kafka: %w", err)
	}
	return nil
}

// OnExecution implements core.ExecutionListener. Send failures are logged and dropped.
func (r *ReportSender) OnExecution(ctx context.Context, e core.Execution) {
	if err := r.SendExecution(ctx, messaging.NewExecutionMessage(e, r.now())); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Err(err).
			Str("order_id", e.Order.ID).
			Str("kind", string(e.Kind)).
			Msg("Failed to publish execution report")
	}
}

// Close closes the producer
func (r *ReportSender) Close() error {
	return r.producer.Close()
}

// EncodeExecution serializes an execution message as a protobuf Struct
func EncodeExecution(msg *messaging.ExecutionMessage) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"kind":             msg.Kind,
		"symbol":           msg.Symbol,
		"side":             msg.Side,
		"price":            msg.Price,
		"volume":           msg.Volume,
		"order_id":         msg.OrderID,
		"user":             msg.User,
		"original_volume":  msg.OriginalVolume,
		"remaining_volume": msg.RemainingVolume,
		"filled_volume":    msg.FilledVolume,
		"cancelled_volume": msg.CancelledVolume,
		"executed_time":    msg.ExecutedTime.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build execution report: %w", err)
	}

	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution report: %w", err)
	}
	return data, nil
}

// DecodeExecution is the inverse of EncodeExecution
func DecodeExecution(data []byte) (*messaging.ExecutionMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution report: %w", err)
	}

	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	num := func(k string) int64 { return int64(f[k].GetNumberValue()) }

	msg := &messaging.ExecutionMessage{
		Kind:            str("kind"),
		Symbol:          str("symbol"),
		Side:            str("side"),
		Price:           num("price"),
		Volume:          int(num("volume")),
		OrderID:         str("order_id"),
		User:            str("user"),
		OriginalVolume:  int(num("original_volume")),
		RemainingVolume: int(num("remaining_volume")),
		FilledVolume:    int(num("filled_volume")),
		CancelledVolume: int(num("cancelled_volume")),
	}
	if ts := str("executed_time"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse execution time %q: %w", ts, err)
		}
		msg.ExecutedTime = t
	}
	return msg, nil
}
