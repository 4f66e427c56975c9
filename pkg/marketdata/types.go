// Package marketdata fans top-of-book updates out to per-symbol subscribers.
package marketdata

import (
	"context"
	"fmt"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/price"
)

// MarketSide is the best price and total volume on one side of a market
type MarketSide struct {
	Price  price.Price `json:"price"`
	Volume int         `json:"volume"`
}

// String renders the side as "$98.10x105"
func (s MarketSide) String() string {
	return fmt.Sprintf("%sx%d", s.Price, s.Volume)
}

// Update is one current-market notification for a symbol
type Update struct {
	Symbol string
	Buy    MarketSide
	Sell   MarketSide
	// Width is sell minus buy, zero when either side is empty
	Width price.Price
}

// NewUpdate derives an Update from a book's top of book
func NewUpdate(tob core.TopOfBook) Update {
	return Update{
		Symbol: tob.Symbol,
		Buy:    MarketSide{Price: tob.BidPrice, Volume: tob.BidVolume},
		Sell:   MarketSide{Price: tob.AskPrice, Volume: tob.AskVolume},
		Width:  tob.Spread(),
	}
}

// String renders the current-market line, e.g. "WMT $98.10x105 - $98.50x50 [$0.40]"
func (u Update) String() string {
	return fmt.Sprintf("%s %s - %s [%s]", u.Symbol, u.Buy, u.Sell, u.Width)
}

// Subscriber receives current-market updates for the symbols it subscribed to
type Subscriber interface {
	UpdateCurrentMarket(ctx context.Context, symbol string, buy, sell MarketSide)
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(ctx context.Context, symbol string, buy, sell MarketSide)

// UpdateCurrentMarket implements Subscriber
func (f SubscriberFunc) UpdateCurrentMarket(ctx context.Context, symbol string, buy, sell MarketSide) {
	f(ctx, symbol, buy, sell)
}
