package kafka

import (
	"context"
	"time"

	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/messaging"
)

// MarketDataSubscriber forwards current-market updates to a sender. Delivery
// failures are logged and dropped.
type MarketDataSubscriber struct {
	sender messaging.MarketDataSender
	now    func() time.Time
}

var _ marketdata.Subscriber = (*MarketDataSubscriber)(nil)

// NewMarketDataSubscriber creates a subscriber publishing through sender
func NewMarketDataSubscriber(sender messaging.MarketDataSender) *MarketDataSubscriber {
	return &MarketDataSubscriber{sender: sender, now: time.Now}
}

// UpdateCurrentMarket implements marketdata.Subscriber
func (s *MarketDataSubscriber) UpdateCurrentMarket(ctx context.Context, symbol string, buy, sell marketdata.MarketSide) {
	msg := messaging.NewMarketDataMessage(symbol, buy, sell, s.now())
	if err := s.sender.SendMarketData(ctx, msg); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Failed to publish market data")
	}
}
