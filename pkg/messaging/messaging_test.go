package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/price"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarketDataMessage(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewMarketDataMessage("WMT",
		marketdata.MarketSide{Price: price.New(9810), Volume: 105},
		marketdata.MarketSide{},
		at)

	assert.Equal(t, "WMT", msg.Symbol)
	assert.Equal(t, int64(9810), msg.BidPrice)
	assert.Equal(t, "$98.10", msg.BidPriceText)
	assert.Equal(t, 105, msg.BidVolume)
	assert.Equal(t, int64(0), msg.AskPrice)
	assert.Equal(t, "$0.00", msg.AskPriceText)
	assert.Equal(t, at, msg.PublishedTime)
}

func TestNewExecutionMessage(t *testing.T) {
	e := core.Execution{
		Kind:   core.ExecPartialFill,
		Symbol: "TGT",
		Side:   core.Sell,
		Price:  price.New(17476),
		Volume: 20,
		Order: core.OrderSnapshot{
			ID: "o1", User: "BOB", Symbol: "TGT", Side: core.Sell, Price: price.New(17476),
			OriginalVolume: 50, RemainingVolume: 30, FilledVolume: 20,
		},
	}
	msg := NewExecutionMessage(e, time.Unix(0, 0))

	assert.Equal(t, "PARTIAL_FILL", msg.Kind)
	assert.Equal(t, "SELL", msg.Side)
	assert.Equal(t, int64(17476), msg.Price)
	assert.Equal(t, 20, msg.Volume)
	assert.Equal(t, "o1", msg.OrderID)
	assert.Equal(t, "BOB", msg.User)
	assert.Equal(t, 30, msg.RemainingVolume)
}

func TestMockSender(t *testing.T) {
	ctx := context.Background()
	m := NewMockSender()

	require.NoError(t, m.SendMarketData(ctx, &MarketDataMessage{Symbol: "WMT"}))
	require.NoError(t, m.SendExecution(ctx, &ExecutionMessage{OrderID: "o1"}))
	assert.Len(t, m.MarketData(), 1)
	assert.Len(t, m.Executions(), 1)

	m.Err = errors.New("broker down")
	assert.Error(t, m.SendMarketData(ctx, &MarketDataMessage{}))
	assert.Len(t, m.MarketData(), 1)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}
