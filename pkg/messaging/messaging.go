// Package messaging defines the messages the simulator publishes to brokers
// and the sender interfaces that decouple books from broker clients.
package messaging

import (
	"context"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/marketdata"
)

// MarketDataSender publishes current-market updates
type MarketDataSender interface {
	SendMarketData(ctx context.Context, msg *MarketDataMessage) error
	Close() error
}

// ExecutionSender publishes fill and cancel reports
type ExecutionSender interface {
	SendExecution(ctx context.Context, msg *ExecutionMessage) error
	Close() error
}

// MarketDataMessage is the wire form of a current-market update. Prices are
// integer cents; the text form is carried alongside for readers.
type MarketDataMessage struct {
	Symbol        string    `json:"symbol"`
	BidPrice      int64     `json:"bidPrice"`
	BidPriceText  string    `json:"bidPriceText"`
	BidVolume     int       `json:"bidVolume"`
	AskPrice      int64     `json:"askPrice"`
	AskPriceText  string    `json:"askPriceText"`
	AskVolume     int       `json:"askVolume"`
	PublishedTime time.Time `json:"publishedTime"`
}

// NewMarketDataMessage builds a message from a current-market update
func NewMarketDataMessage(symbol string, buy, sell marketdata.MarketSide, at time.Time) *MarketDataMessage {
	return &MarketDataMessage{
		Symbol:        symbol,
		BidPrice:      buy.Price.Cents(),
		BidPriceText:  buy.Price.String(),
		BidVolume:     buy.Volume,
		AskPrice:      sell.Price.Cents(),
		AskPriceText:  sell.Price.String(),
		AskVolume:     sell.Volume,
		PublishedTime: at,
	}
}

// ExecutionMessage is the wire form of a fill leg or cancel
type ExecutionMessage struct {
	Kind            string    `json:"kind"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Price           int64     `json:"price"`
	Volume          int       `json:"volume"`
	OrderID         string    `json:"orderId"`
	User            string    `json:"user"`
	OriginalVolume  int       `json:"originalVolume"`
	RemainingVolume int       `json:"remainingVolume"`
	FilledVolume    int       `json:"filledVolume"`
	CancelledVolume int       `json:"cancelledVolume"`
	ExecutedTime    time.Time `json:"executedTime"`
}

// NewExecutionMessage builds a message from a book execution
func NewExecutionMessage(e core.Execution, at time.Time) *ExecutionMessage {
	return &ExecutionMessage{
		Kind:            string(e.Kind),
		Symbol:          e.Symbol,
		Side:            e.Side.String(),
		Price:           e.Price.Cents(),
		Volume:          e.Volume,
		OrderID:         e.Order.ID,
		User:            e.Order.User,
		OriginalVolume:  e.Order.OriginalVolume,
		RemainingVolume: e.Order.RemainingVolume,
		FilledVolume:    e.Order.FilledVolume,
		CancelledVolume: e.Order.CancelledVolume,
		ExecutedTime:    at,
	}
}
