// Package simulator drives random order and cancel traffic through the
// product books.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/exchange"
	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/otel"
	"github.com/erain9/marketsim/pkg/price"
	"github.com/erain9/marketsim/pkg/user"
	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// Simulator owns the random source and pacing of a run. The product manager
// should be built with the user manager as an execution listener so user
// snapshots follow fills.
type Simulator struct {
	cfg       *Config
	products  *exchange.ProductManager
	users     *user.Manager
	publisher *marketdata.Publisher

	rng        *rand.Rand
	limiter    *rate.Limiter
	basePrices map[string]float64
	subs       map[Subscription][]marketdata.Subscription
}

// New creates a simulator over the given registries
func New(cfg *Config, products *exchange.ProductManager, users *user.Manager, publisher *marketdata.Publisher) *Simulator {
	limit := rate.Inf
	if cfg.OrdersPerSecond > 0 {
		limit = rate.Limit(cfg.OrdersPerSecond)
	}
	return &Simulator{
		cfg:        cfg,
		products:   products,
		users:      users,
		publisher:  publisher,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		limiter:    rate.NewLimiter(limit, 1),
		basePrices: make(map[string]float64),
		subs:       make(map[Subscription][]marketdata.Subscription),
	}
}

// Setup creates users, subscribes them to their markets, applies the
// configured unsubscriptions and opens a book per product.
func (s *Simulator) Setup(ctx context.Context) error {
	if err := s.users.Init(s.cfg.Users); err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}

	for _, sub := range s.cfg.Subscriptions {
		u, err := s.users.User(sub.User)
		if err != nil {
			return err
		}
		s.subs[sub] = append(s.subs[sub], s.publisher.Subscribe(sub.Symbol, u))
	}
	for _, sub := range s.cfg.Unsubscriptions {
		s.unsubscribe(sub)
	}

	for _, p := range s.cfg.Products {
		if _, err := s.products.AddProduct(ctx, p.Symbol); err != nil {
			return fmt.Errorf("failed to add product %s: %w", p.Symbol, err)
		}
		s.basePrices[p.Symbol] = p.BasePrice
	}
	return nil
}

// Teardown removes every subscription Setup made
func (s *Simulator) Teardown() {
	for sub := range s.subs {
		for len(s.subs[sub]) > 0 {
			s.unsubscribe(sub)
		}
	}
}

func (s *Simulator) unsubscribe(sub Subscription) {
	handles := s.subs[sub]
	if len(handles) == 0 {
		return
	}
	s.publisher.Unsubscribe(handles[0])
	if len(handles) == 1 {
		delete(s.subs, sub)
		return
	}
	s.subs[sub] = handles[1:]
}

// Run performs the configured number of iterations. Each one picks a random
// user and either submits a random order or cancels one of that user's live
// orders. A cancelled context stops the run early with the stats so far.
func (s *Simulator) Run(ctx context.Context) (*Stats, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := otel.StartSpan(ctx, otel.SpanSimulation,
		attribute.String(otel.AttributeRunID, runID),
		attribute.Int(otel.AttributeIterations, s.cfg.Iterations),
	)
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.Info().
		Int("iterations", s.cfg.Iterations).
		Int64("seed", s.cfg.Seed).
		Msg("Starting simulation")

	stats := newStats()
	start := time.Now()
	defer func() { stats.Elapsed = time.Since(start) }()

	for i := 0; i < s.cfg.Iterations; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("simulation stopped after %d iterations: %w", i, err)
		}

		u, err := s.users.RandomUser(s.rng)
		if err != nil {
			return stats, err
		}

		opStart := time.Now()
		if s.rng.Float64() < 1-s.cfg.CancelRatio {
			err = s.submit(ctx, u, stats)
		} else {
			err = s.cancel(ctx, u, stats)
		}
		if err != nil {
			return stats, err
		}
		stats.record(time.Since(opStart))
	}

	logger.Info().
		Int("orders", stats.Orders).
		Int("cancels", stats.Cancels).
		Msg("Simulation finished")
	return stats, nil
}

func (s *Simulator) submit(ctx context.Context, u *user.User, stats *Stats) error {
	symbol, err := s.products.RandomProduct(s.rng)
	if err != nil {
		return err
	}
	side := core.Sell
	if s.rng.Intn(2) == 1 {
		side = core.Buy
	}

	o, err := core.NewOrder(u.ID(), symbol, s.orderPrice(symbol, side), s.orderVolume(), side)
	if err != nil {
		return fmt.Errorf("failed to build order: %w", err)
	}

	snapshot, err := s.products.AddOrder(ctx, o)
	if err != nil {
		stats.Rejected++
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("order_id", o.ID()).Msg("Order rejected")
		return nil
	}
	stats.Orders++
	return s.users.AddToUser(u.ID(), snapshot)
}

func (s *Simulator) cancel(ctx context.Context, u *user.User, stats *Stats) error {
	live, ok := u.OrderWithRemainingQty()
	if !ok {
		stats.CancelSkipped++
		return nil
	}

	cancelled, err := s.products.Cancel(ctx, live)
	if errors.Is(err, core.ErrOrderNotFound) {
		stats.CancelMisses++
		logger := logging.FromContext(ctx)
		logger.Debug().Err(err).Str("order_id", live.ID).Msg("Nothing left to cancel")
		return nil
	}
	if err != nil {
		return err
	}
	stats.Cancels++
	return s.users.AddToUser(u.ID(), cancelled)
}

// orderPrice draws a price near the symbol's base: buys from StartPoint below
// base upward, sells from StartPoint above base downward, rounded to the tick.
func (s *Simulator) orderPrice(symbol string, side core.Side) price.Price {
	base := s.basePrices[symbol]
	variance := base * s.cfg.PriceWidth * s.rng.Float64()

	var p float64
	if side == core.Buy {
		p = base*(1-s.cfg.StartPoint) + variance
	} else {
		p = base*(1+s.cfg.StartPoint) - variance
	}
	ticks := math.Round(p / s.cfg.TickSize)
	return price.FromDecimal(fpdecimal.FromFloat(ticks * s.cfg.TickSize))
}

// orderVolume draws a volume in [MinVolume, MaxVolume] rounded to VolumeStep
func (s *Simulator) orderVolume() int {
	raw := s.cfg.MinVolume + int(s.rng.Float64()*float64(s.cfg.MaxVolume-s.cfg.MinVolume))
	v := int(math.Round(float64(raw)/float64(s.cfg.VolumeStep))) * s.cfg.VolumeStep
	if v < s.cfg.MinVolume {
		v += s.cfg.VolumeStep
	}
	if v > s.cfg.MaxVolume {
		v -= s.cfg.VolumeStep
	}
	return max(v, core.MinOrderVolume)
}
