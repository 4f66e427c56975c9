package marketdata

import (
	"context"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Tracker is the MarketDataSink of the order books: it logs the current
// market and forwards it to the publisher.
type Tracker struct {
	publisher *Publisher
	metrics   *otel.BookMetrics
}

var _ core.MarketDataSink = (*Tracker)(nil)

// NewTracker creates a tracker publishing through p
func NewTracker(p *Publisher) *Tracker {
	return &Tracker{publisher: p, metrics: otel.GetBookMetrics()}
}

// UpdateMarket implements core.MarketDataSink
func (t *Tracker) UpdateMarket(ctx context.Context, tob core.TopOfBook) {
	update := NewUpdate(tob)

	ctx, span := otel.StartSpan(ctx, otel.SpanPublishMarket, attribute.String(otel.AttributeSymbol, update.Symbol))
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.Info().
		Str("symbol", update.Symbol).
		Str("buy", update.Buy.String()).
		Str("sell", update.Sell.String()).
		Str("width", update.Width.String()).
		Msgf("Current Market: %s", update)

	t.metrics.RecordMarketUpdate(ctx, update.Symbol)
	t.publisher.Publish(ctx, update.Symbol, update.Buy, update.Sell)
}
