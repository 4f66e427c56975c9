package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	bookMetrics     *BookMetrics
	bookMetricsOnce sync.Once
)

// BookMetrics holds counters for order book activity
type BookMetrics struct {
	ordersAdded     metric.Int64Counter
	ordersCancelled metric.Int64Counter
	matchedVolume   metric.Int64Counter
	marketUpdates   metric.Int64Counter
}

// NewBookMetrics creates the book counters on the given meter
func NewBookMetrics(meter metric.Meter) (*BookMetrics, error) {
	ordersAdded, err := meter.Int64Counter(
		"orderbook.orders.added",
		metric.WithDescription("Total number of orders accepted into a book"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	ordersCancelled, err := meter.Int64Counter(
		"orderbook.orders.cancelled",
		metric.WithDescription("Total number of orders cancelled"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	matchedVolume, err := meter.Int64Counter(
		"orderbook.matched.volume",
		metric.WithDescription("Total volume matched between bids and asks"),
		metric.WithUnit("{share}"),
	)
	if err != nil {
		return nil, err
	}

	marketUpdates, err := meter.Int64Counter(
		"marketdata.updates",
		metric.WithDescription("Total number of top-of-book updates published"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	return &BookMetrics{
		ordersAdded:     ordersAdded,
		ordersCancelled: ordersCancelled,
		matchedVolume:   matchedVolume,
		marketUpdates:   marketUpdates,
	}, nil
}

// GetBookMetrics returns the BookMetrics singleton bound to the global meter provider.
// On instrument creation failure an empty value is returned whose methods do nothing.
func GetBookMetrics() *BookMetrics {
	bookMetricsOnce.Do(func() {
		m, err := NewBookMetrics(otel.Meter(instrumentationName))
		if err != nil {
			bookMetrics = &BookMetrics{}
			return
		}
		bookMetrics = m
	})
	return bookMetrics
}

// RecordOrderAdded increments the added orders counter
func (m *BookMetrics) RecordOrderAdded(ctx context.Context, symbol, side string) {
	if m.ordersAdded == nil {
		return
	}
	m.ordersAdded.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeSymbol, symbol),
		attribute.String(AttributeOrderSide, side),
	))
}

// RecordOrderCancelled increments the cancelled orders counter
func (m *BookMetrics) RecordOrderCancelled(ctx context.Context, symbol, side string) {
	if m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeSymbol, symbol),
		attribute.String(AttributeOrderSide, side),
	))
}

// RecordMatchedVolume adds to the matched volume counter
func (m *BookMetrics) RecordMatchedVolume(ctx context.Context, symbol string, volume int64) {
	if m.matchedVolume == nil || volume <= 0 {
		return
	}
	m.matchedVolume.Add(ctx, volume, metric.WithAttributes(attribute.String(AttributeSymbol, symbol)))
}

// RecordMarketUpdate increments the market data update counter
func (m *BookMetrics) RecordMarketUpdate(ctx context.Context, symbol string) {
	if m.marketUpdates == nil {
		return
	}
	m.marketUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeSymbol, symbol)))
}
