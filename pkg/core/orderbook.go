package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OrderBook holds the bids and asks of one symbol and matches them under
// price-time priority. It is not safe for concurrent use; callers serialize
// access per book.
type OrderBook struct {
	symbol    string
	bids      *BookSide
	asks      *BookSide
	sink      MarketDataSink
	listeners []ExecutionListener
	metrics   *otel.BookMetrics
}

// Option configures an OrderBook
type Option func(*OrderBook)

// WithExecutionListener registers a listener for fills and cancels
func WithExecutionListener(l ExecutionListener) Option {
	return func(ob *OrderBook) {
		if l != nil {
			ob.listeners = append(ob.listeners, l)
		}
	}
}

// NewOrderBook creates an empty book for symbol. Top-of-book updates go to
// sink after every mutation; a nil sink discards them.
func NewOrderBook(symbol string, sink MarketDataSink, opts ...Option) (*OrderBook, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nopSink{}
	}

	ob := &OrderBook{
		symbol:  symbol,
		bids:    NewBookSide(Buy),
		asks:    NewBookSide(Sell),
		sink:    sink,
		metrics: otel.GetBookMetrics(),
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob, nil
}

// Symbol returns the book's product symbol
func (ob *OrderBook) Symbol() string { return ob.symbol }

// Bids returns the buy side
func (ob *OrderBook) Bids() *BookSide { return ob.bids }

// Asks returns the sell side
func (ob *OrderBook) Asks() *BookSide { return ob.asks }

func (ob *OrderBook) sideFor(s Side) *BookSide {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// Add rests the order on its side, uncrosses the book and publishes the new
// top of book. The returned snapshot is taken before matching, so it does not
// reflect fills caused by this call; use Order to re-query.
func (ob *OrderBook) Add(ctx context.Context, o *Order) (OrderSnapshot, error) {
	if o == nil {
		return OrderSnapshot{}, fmt.Errorf("%w: nil order", ErrInvalidArgument)
	}
	if o.Symbol() != ob.symbol {
		return OrderSnapshot{}, fmt.Errorf("%w: %s on %s book", ErrSymbolMismatch, o.Symbol(), ob.symbol)
	}
	if o.Side() != Buy && o.Side() != Sell {
		return OrderSnapshot{}, fmt.Errorf("%w: %d", ErrInvalidSide, int(o.Side()))
	}
	if !o.IsActive() {
		return OrderSnapshot{}, fmt.Errorf("%w: order %s has no remaining volume", ErrInvalidVolume, o.ID())
	}
	if ob.bids.Contains(o.ID()) || ob.asks.Contains(o.ID()) {
		return OrderSnapshot{}, fmt.Errorf("%w: %s", ErrOrderExists, o.ID())
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanAddOrder,
		attribute.String(otel.AttributeSymbol, ob.symbol),
		attribute.String(otel.AttributeOrderID, o.ID()),
		attribute.String(otel.AttributeOrderUser, o.User()),
		attribute.String(otel.AttributeOrderSide, o.Side().String()),
		attribute.String(otel.AttributeOrderPrice, o.Price().String()),
		attribute.Int(otel.AttributeOrderVolume, o.OriginalVolume()),
	)
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("symbol", ob.symbol).
		Str("order_id", o.ID()).
		Msgf("ADD: %s", o)

	snapshot := ob.sideFor(o.Side()).Add(o)
	ob.metrics.RecordOrderAdded(ctx, ob.symbol, o.Side().String())

	matched := ob.match(ctx)
	otel.AddAttributes(span,
		attribute.Int(otel.AttributeMatchedVolume, matched),
		attribute.Int(otel.AttributeRemainingVolume, o.RemainingVolume()),
	)
	span.SetStatus(codes.Ok, "order added")

	ob.publish(ctx)
	return snapshot, nil
}

// Cancel removes the order from the given side and publishes the top of
// book. ErrOrderNotFound is returned, with the book untouched, when no such
// order rests on that side; the unchanged top of book is still published.
func (ob *OrderBook) Cancel(ctx context.Context, side Side, orderID string) (OrderSnapshot, error) {
	ctx, span := otel.StartSpan(ctx, otel.SpanCancelOrder,
		attribute.String(otel.AttributeSymbol, ob.symbol),
		attribute.String(otel.AttributeOrderID, orderID),
		attribute.String(otel.AttributeOrderSide, side.String()),
	)
	defer span.End()

	logger := logging.FromContext(ctx)

	if side != Buy && side != Sell {
		span.SetStatus(codes.Error, "invalid side")
		return OrderSnapshot{}, fmt.Errorf("%w: %d", ErrInvalidSide, int(side))
	}

	snapshot, ok := ob.sideFor(side).Cancel(orderID)
	if !ok {
		logger.Debug().
			Str("symbol", ob.symbol).
			Str("order_id", orderID).
			Msg("Cancel of unknown order ignored")
		span.SetStatus(codes.Error, "order not found")
		ob.publish(ctx)
		return OrderSnapshot{}, fmt.Errorf("%w: %s %s %s", ErrOrderNotFound, ob.symbol, side, orderID)
	}

	logger.Debug().
		Str("symbol", ob.symbol).
		Str("order_id", orderID).
		Msgf("CANCEL: %s", snapshot)
	ob.metrics.RecordOrderCancelled(ctx, ob.symbol, side.String())
	ob.notify(ctx, Execution{
		Kind:   ExecCancel,
		Symbol: ob.symbol,
		Side:   side,
		Price:  snapshot.Price,
		Volume: snapshot.CancelledVolume,
		Order:  snapshot,
	})

	span.SetStatus(codes.Ok, "order cancelled")
	ob.publish(ctx)
	return snapshot, nil
}

// match uncrosses the book: while the best bid is at or above the best ask,
// trade the smaller of the two best volumes, each leg at its own resting
// price. Returns the total volume matched.
func (ob *OrderBook) match(ctx context.Context) int {
	bidPrice, hasBid := ob.bids.BestPrice()
	askPrice, hasAsk := ob.asks.BestPrice()
	if !hasBid || !hasAsk || bidPrice.LessThan(askPrice) {
		return 0
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanMatch, attribute.String(otel.AttributeSymbol, ob.symbol))
	defer span.End()

	matched := 0
	for hasBid && hasAsk && bidPrice.GreaterOrEqual(askPrice) {
		v := min(ob.bids.BestVolume(), ob.asks.BestVolume())

		ob.asks.Consume(askPrice, v, ob.fillReporter(ctx, Sell))
		ob.bids.Consume(bidPrice, v, ob.fillReporter(ctx, Buy))
		matched += v

		bidPrice, hasBid = ob.bids.BestPrice()
		askPrice, hasAsk = ob.asks.BestPrice()
	}

	ob.metrics.RecordMatchedVolume(ctx, ob.symbol, int64(matched))
	otel.AddAttributes(span, attribute.Int(otel.AttributeMatchedVolume, matched))
	return matched
}

func (ob *OrderBook) fillReporter(ctx context.Context, side Side) func(*Order, int) {
	logger := logging.FromContext(ctx)
	return func(o *Order, filled int) {
		kind := ExecPartialFill
		label := "PARTIAL FILL"
		if o.RemainingVolume() == 0 {
			kind = ExecFill
			label = "FILL"
		}
		snapshot := o.Snapshot()
		logger.Debug().
			Str("symbol", ob.symbol).
			Str("order_id", o.ID()).
			Int("volume", filled).
			Msgf("%s: (%s %d) %s", label, side, filled, snapshot)
		ob.notify(ctx, Execution{
			Kind:   kind,
			Symbol: ob.symbol,
			Side:   side,
			Price:  o.Price(),
			Volume: filled,
			Order:  snapshot,
		})
	}
}

func (ob *OrderBook) notify(ctx context.Context, e Execution) {
	for _, l := range ob.listeners {
		l.OnExecution(ctx, e)
	}
}

func (ob *OrderBook) publish(ctx context.Context) {
	ob.sink.UpdateMarket(ctx, ob.TopOfBook())
}

// TopOfBook returns the best price and volume on each side
func (ob *OrderBook) TopOfBook() TopOfBook {
	tob := TopOfBook{Symbol: ob.symbol}
	if p, ok := ob.bids.BestPrice(); ok {
		tob.BidPrice, tob.BidVolume, tob.HasBid = p, ob.bids.BestVolume(), true
	}
	if p, ok := ob.asks.BestPrice(); ok {
		tob.AskPrice, tob.AskVolume, tob.HasAsk = p, ob.asks.BestVolume(), true
	}
	return tob
}

// Order returns a snapshot of a resting order by id
func (ob *OrderBook) Order(orderID string) (OrderSnapshot, bool) {
	if o, ok := ob.bids.Order(orderID); ok {
		return o.Snapshot(), true
	}
	if o, ok := ob.asks.Order(orderID); ok {
		return o.Snapshot(), true
	}
	return OrderSnapshot{}, false
}

// String renders the book report: the buy side then the sell side
func (ob *OrderBook) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s\n", ob.symbol)
	sb.WriteString(ob.bids.String())
	sb.WriteString(ob.asks.String())
	return sb.String()
}
