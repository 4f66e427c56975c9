package core

import (
	"context"
	"fmt"

	"github.com/erain9/marketsim/pkg/price"
)

// TopOfBook is the best price and total volume on each side of a book.
// An empty side carries the sentinel price.Zero with volume 0.
type TopOfBook struct {
	Symbol    string
	BidPrice  price.Price
	BidVolume int
	AskPrice  price.Price
	AskVolume int
	HasBid    bool
	HasAsk    bool
}

// Spread returns ask minus bid, or zero when either side is empty
func (t TopOfBook) Spread() price.Price {
	if !t.HasBid || !t.HasAsk {
		return price.Zero
	}
	return t.AskPrice.Sub(t.BidPrice)
}

// String implements fmt.Stringer
func (t TopOfBook) String() string {
	return fmt.Sprintf("%s %sx%d - %sx%d", t.Symbol, t.BidPrice, t.BidVolume, t.AskPrice, t.AskVolume)
}

// ExecutionKind classifies an execution event
type ExecutionKind string

// Execution kinds
const (
	ExecFill        ExecutionKind = "FILL"
	ExecPartialFill ExecutionKind = "PARTIAL_FILL"
	ExecCancel      ExecutionKind = "CANCEL"
)

// Execution reports one fill leg or a cancellation. Order is the state of
// the affected order right after the event.
type Execution struct {
	Kind   ExecutionKind
	Symbol string
	Side   Side
	Price  price.Price
	Volume int
	Order  OrderSnapshot
}

// MarketDataSink receives the top of book after every book mutation
type MarketDataSink interface {
	UpdateMarket(ctx context.Context, tob TopOfBook)
}

// MarketDataSinkFunc adapts a function to MarketDataSink
type MarketDataSinkFunc func(ctx context.Context, tob TopOfBook)

// UpdateMarket implements MarketDataSink
func (f MarketDataSinkFunc) UpdateMarket(ctx context.Context, tob TopOfBook) { f(ctx, tob) }

// ExecutionListener is notified of every fill leg and cancel, synchronously
// and in the order they happen.
type ExecutionListener interface {
	OnExecution(ctx context.Context, e Execution)
}

// ExecutionListenerFunc adapts a function to ExecutionListener
type ExecutionListenerFunc func(ctx context.Context, e Execution)

// OnExecution implements ExecutionListener
func (f ExecutionListenerFunc) OnExecution(ctx context.Context, e Execution) { f(ctx, e) }

type nopSink struct{}

func (nopSink) UpdateMarket(context.Context, TopOfBook) {}
