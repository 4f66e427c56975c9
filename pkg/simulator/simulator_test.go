package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/exchange"
	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/price"
	"github.com/erain9/marketsim/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Users: []string{"ANN", "BOB", "CAT", "DOG", "EGG"},
		Products: []Product{
			{Symbol: "WMT", BasePrice: 140.98},
			{Symbol: "TGT", BasePrice: 174.76},
			{Symbol: "AMZN", BasePrice: 102.11},
			{Symbol: "TSLA", BasePrice: 196.81},
		},
		Subscriptions: []Subscription{
			{User: "ANN", Symbol: "WMT"},
			{User: "ANN", Symbol: "TGT"},
			{User: "BOB", Symbol: "TGT"},
			{User: "BOB", Symbol: "TSLA"},
			{User: "CAT", Symbol: "WMT"},
		},
		Unsubscriptions: []Subscription{{User: "BOB", Symbol: "TGT"}},
		Iterations:      500,
		CancelRatio:     0.1,
		PriceWidth:      0.02,
		StartPoint:      0.01,
		TickSize:        0.10,
		MinVolume:       25,
		MaxVolume:       325,
		VolumeStep:      5,
		Seed:            42,
	}
}

type harness struct {
	sim       *Simulator
	products  *exchange.ProductManager
	users     *user.Manager
	publisher *marketdata.Publisher
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()
	users := user.NewManager()
	publisher := marketdata.NewPublisher()
	products := exchange.NewProductManager(marketdata.NewTracker(publisher), core.WithExecutionListener(users))
	sim := New(cfg, products, users, publisher)
	require.NoError(t, sim.Setup(context.Background()))
	return &harness{sim: sim, products: products, users: users, publisher: publisher}
}

func TestSetup(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.Equal(t, []string{"AMZN", "TGT", "TSLA", "WMT"}, h.products.Products())
	assert.Len(t, h.users.Users(), 5)
	assert.Equal(t, 2, h.publisher.Subscribers("WMT"))
	assert.Equal(t, 1, h.publisher.Subscribers("TGT"), "BOB was unsubscribed from TGT")
	assert.Equal(t, 1, h.publisher.Subscribers("TSLA"))

	h.sim.Teardown()
	for _, sym := range []string{"WMT", "TGT", "TSLA"} {
		assert.Zero(t, h.publisher.Subscribers(sym))
	}
}

func TestSetupUnknownUser(t *testing.T) {
	cfg := testConfig()
	cfg.Subscriptions = append(cfg.Subscriptions, Subscription{User: "ZZZ", Symbol: "WMT"})

	users := user.NewManager()
	publisher := marketdata.NewPublisher()
	sim := New(cfg, exchange.NewProductManager(nil), users, publisher)
	assert.ErrorIs(t, sim.Setup(context.Background()), user.ErrUserNotFound)
}

func TestRun(t *testing.T) {
	h := newHarness(t, testConfig())

	stats, err := h.sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, stats.Operations())
	assert.Greater(t, stats.Orders, 0)
	assert.Zero(t, stats.Rejected)
	assert.Greater(t, stats.Elapsed, time.Duration(0))
	assert.Contains(t, stats.Summary(), "Operations: 500")

	// books never end crossed
	for _, sym := range h.products.Products() {
		tob, err := h.products.TopOfBook(sym)
		require.NoError(t, err)
		if tob.HasBid && tob.HasAsk {
			assert.True(t, tob.BidPrice.LessThan(tob.AskPrice), "%s is crossed: %s", sym, tob)
		}
	}

	// every live order a user remembers is still resting with the same remaining volume
	for _, u := range h.users.Users() {
		for _, s := range u.Orders() {
			if s.RemainingVolume == 0 {
				continue
			}
			resting, err := h.products.Order(s.Symbol, s.ID)
			require.NoError(t, err, "order %s", s.ID)
			assert.Equal(t, s.RemainingVolume, resting.RemainingVolume)
		}
	}

	// subscribers saw the markets they follow
	ann, err := h.users.User("ANN")
	require.NoError(t, err)
	assert.Contains(t, ann.CurrentMarkets(), "WMT ")
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	a := newHarness(t, testConfig())
	b := newHarness(t, testConfig())

	statsA, err := a.sim.Run(context.Background())
	require.NoError(t, err)
	statsB, err := b.sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, statsA.Orders, statsB.Orders)
	assert.Equal(t, statsA.Cancels, statsB.Cancels)
	for _, sym := range a.products.Products() {
		tobA, err := a.products.TopOfBook(sym)
		require.NoError(t, err)
		tobB, err := b.products.TopOfBook(sym)
		require.NoError(t, err)
		assert.Equal(t, tobA, tobB)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := h.sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Operations())
}

func TestRunAllCancels(t *testing.T) {
	cfg := testConfig()
	cfg.CancelRatio = 1
	cfg.Iterations = 20
	h := newHarness(t, cfg)

	stats, err := h.sim.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Orders)
	assert.Equal(t, 20, stats.CancelSkipped)
	assert.Contains(t, stats.Summary(), "Nothing to cancel: 20")
}

func TestRunRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 5
	cfg.OrdersPerSecond = 100
	h := newHarness(t, cfg)

	stats, err := h.sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Operations())
	// burst of one, then 10ms apart
	assert.GreaterOrEqual(t, stats.Elapsed, 30*time.Millisecond)
}

func TestOrderPrice(t *testing.T) {
	h := newHarness(t, testConfig())
	base := price.MustParse("140.98")
	low := price.MustParse("139.50")
	high := price.MustParse("142.40")

	for i := 0; i < 1000; i++ {
		buy := h.sim.orderPrice("WMT", core.Buy)
		assert.True(t, buy.GreaterOrEqual(low), "buy %s below band", buy)
		assert.True(t, buy.LessOrEqual(high), "buy %s above band", buy)
		assert.Zero(t, buy.Cents()%10, "buy %s not on a tick", buy)

		sell := h.sim.orderPrice("WMT", core.Sell)
		assert.True(t, sell.GreaterOrEqual(low), "sell %s below band", sell)
		assert.True(t, sell.LessOrEqual(high), "sell %s above band", sell)
		assert.Zero(t, sell.Cents()%10, "sell %s not on a tick", sell)
	}
	assert.True(t, base.GreaterThan(low))
}

func TestOrderVolume(t *testing.T) {
	h := newHarness(t, testConfig())
	for i := 0; i < 1000; i++ {
		v := h.sim.orderVolume()
		assert.GreaterOrEqual(t, v, 25)
		assert.LessOrEqual(t, v, 325)
		assert.Zero(t, v%5)
	}
}

func TestStatsSummaryEmpty(t *testing.T) {
	s := newStats()
	assert.Contains(t, s.Summary(), "Latency: n/a")

	s.record(0)
	s.record(2 * time.Hour)
	assert.Equal(t, int64(2), s.latency.TotalCount())
	assert.Contains(t, s.Summary(), "p99")
}
