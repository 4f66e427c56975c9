package marketdata

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/price"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	symbol string
	buy    MarketSide
	sell   MarketSide
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) subscriber(name string) Subscriber {
	return SubscriberFunc(func(_ context.Context, symbol string, buy, sell MarketSide) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{name: name, symbol: symbol, buy: buy, sell: sell})
	})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.name)
	}
	return out
}

func TestMarketSideString(t *testing.T) {
	assert.Equal(t, "$98.10x105", MarketSide{Price: price.New(9810), Volume: 105}.String())
	assert.Equal(t, "$0.00x0", MarketSide{}.String())
}

func TestNewUpdate(t *testing.T) {
	tests := []struct {
		name     string
		tob      core.TopOfBook
		width    price.Price
		rendered string
	}{
		{
			name:     "two sided",
			tob:      core.TopOfBook{Symbol: "WMT", BidPrice: 9810, BidVolume: 105, AskPrice: 9850, AskVolume: 50, HasBid: true, HasAsk: true},
			width:    40,
			rendered: "WMT $98.10x105 - $98.50x50 [$0.40]",
		},
		{
			name:     "no bid",
			tob:      core.TopOfBook{Symbol: "TGT", AskPrice: 500, AskVolume: 30, HasAsk: true},
			width:    0,
			rendered: "TGT $0.00x0 - $5.00x30 [$0.00]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpdate(tt.tob)
			assert.Equal(t, tt.width, u.Width)
			assert.Equal(t, tt.rendered, u.String())
		})
	}
}

func TestPublisherOrderAndFiltering(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher()
	rec := &recorder{}

	p.Subscribe("WMT", rec.subscriber("ANN"))
	p.Subscribe("WMT", rec.subscriber("CAT"))
	p.Subscribe("TGT", rec.subscriber("BOB"))
	p.Subscribe("WMT", rec.subscriber("EGG"))

	p.Publish(ctx, "WMT", MarketSide{Price: 100, Volume: 1}, MarketSide{Price: 110, Volume: 2})
	assert.Equal(t, []string{"ANN", "CAT", "EGG"}, rec.names())

	p.Publish(ctx, "AMZN", MarketSide{}, MarketSide{})
	assert.Len(t, rec.names(), 3)

	assert.Equal(t, 3, p.Subscribers("WMT"))
	assert.Equal(t, 1, p.Subscribers("TGT"))
	assert.Equal(t, 0, p.Subscribers("AMZN"))
}

func TestPublisherDuplicateSubscription(t *testing.T) {
	p := NewPublisher()
	rec := &recorder{}
	sub := rec.subscriber("ANN")

	p.Subscribe("WMT", sub)
	p.Subscribe("WMT", sub)
	p.Publish(context.Background(), "WMT", MarketSide{}, MarketSide{})

	assert.Equal(t, []string{"ANN", "ANN"}, rec.names())
}

func TestPublisherUnsubscribe(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher()
	rec := &recorder{}

	p.Subscribe("TGT", rec.subscriber("ANN"))
	bob := p.Subscribe("TGT", rec.subscriber("BOB"))
	p.Subscribe("TGT", rec.subscriber("CAT"))

	assert.Equal(t, "TGT", bob.Symbol())
	assert.True(t, p.Unsubscribe(bob))
	assert.False(t, p.Unsubscribe(bob))

	p.Publish(ctx, "TGT", MarketSide{}, MarketSide{})
	assert.Equal(t, []string{"ANN", "CAT"}, rec.names())
}

func TestPublisherSubscribeDuringPublish(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher()
	rec := &recorder{}

	p.Subscribe("WMT", SubscriberFunc(func(ctx context.Context, symbol string, buy, sell MarketSide) {
		p.Subscribe("WMT", rec.subscriber("late"))
	}))

	p.Publish(ctx, "WMT", MarketSide{}, MarketSide{})
	assert.Empty(t, rec.names())

	p.Publish(ctx, "WMT", MarketSide{}, MarketSide{})
	assert.Equal(t, []string{"late"}, rec.names())
}

func TestTrackerForwardsToPublisher(t *testing.T) {
	p := NewPublisher()
	rec := &recorder{}
	p.Subscribe("WMT", rec.subscriber("ANN"))

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	tracker := NewTracker(p)
	tracker.UpdateMarket(ctx, core.TopOfBook{
		Symbol: "WMT", BidPrice: 900, BidVolume: 50, AskPrice: 950, AskVolume: 25, HasBid: true, HasAsk: true,
	})

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "WMT", rec.calls[0].symbol)
	assert.Equal(t, MarketSide{Price: 900, Volume: 50}, rec.calls[0].buy)
	assert.Equal(t, MarketSide{Price: 950, Volume: 25}, rec.calls[0].sell)
	assert.Contains(t, buf.String(), "Current Market: ")
	assert.Contains(t, buf.String(), `"symbol":"WMT"`)
}

func TestTrackerAsBookSink(t *testing.T) {
	p := NewPublisher()
	rec := &recorder{}
	p.Subscribe("WMT", rec.subscriber("ANN"))

	ob, err := core.NewOrderBook("WMT", NewTracker(p))
	require.NoError(t, err)

	o, err := core.NewOrderWithID("s1", "BOB", "WMT", price.New(500), 30, core.Sell)
	require.NoError(t, err)
	_, err = ob.Add(context.Background(), o)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, MarketSide{}, rec.calls[0].buy)
	assert.Equal(t, MarketSide{Price: 500, Volume: 30}, rec.calls[0].sell)
}
