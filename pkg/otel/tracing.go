package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanAddOrder      = "order.add"
	SpanCancelOrder   = "order.cancel"
	SpanMatch         = "book.match"
	SpanPublishMarket = "market.publish"
	SpanSimulation    = "simulation.run"

	// Attribute keys
	AttributeSymbol          = "order.symbol"
	AttributeOrderID         = "order.id"
	AttributeOrderSide       = "order.side"
	AttributeOrderPrice      = "order.price"
	AttributeOrderVolume     = "order.volume"
	AttributeOrderUser       = "order.user"
	AttributeMatchedVolume   = "book.matched_volume"
	AttributeRemainingVolume = "order.remaining_volume"
	AttributeRunID           = "simulation.run_id"
	AttributeIterations      = "simulation.iterations"
)

// StartSpan starts a span on the package tracer. The returned span is never nil.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
