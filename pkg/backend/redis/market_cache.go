// Package redis keeps the latest current market of every symbol in Redis so
// processes outside the simulator can read it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/price"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMarketNotCached is returned by Get when no update was stored for a symbol
var ErrMarketNotCached = errors.New("market not cached")

const (
	fieldBidPrice  = "bid_price"
	fieldBidVolume = "bid_volume"
	fieldAskPrice  = "ask_price"
	fieldAskVolume = "ask_volume"
	fieldUpdatedAt = "updated_at"
)

// Options represents configuration options for the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client from options
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// MarketCache is a marketdata.Subscriber that stores each symbol's latest
// current market in a hash at "<prefix>:market:<symbol>".
type MarketCache struct {
	client redis.Cmdable
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

var _ marketdata.Subscriber = (*MarketCache)(nil)

// NewMarketCache creates a cache writing under prefix. A nil logger is replaced by a no-op one.
func NewMarketCache(client redis.Cmdable, prefix string, logger *zap.Logger) *MarketCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketCache{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (c *MarketCache) key(symbol string) string {
	return fmt.Sprintf("%s:market:%s", c.prefix, symbol)
}

// UpdateCurrentMarket implements marketdata.Subscriber. Write failures are logged and dropped.
func (c *MarketCache) UpdateCurrentMarket(ctx context.Context, symbol string, buy, sell marketdata.MarketSide) {
	if err := c.Put(ctx, symbol, buy, sell); err != nil {
		c.logger.Warn("Failed to cache current market",
			zap.String("symbol", symbol),
			zap.Error(err))
	}
}

// Put stores the current market for symbol
func (c *MarketCache) Put(ctx context.Context, symbol string, buy, sell marketdata.MarketSide) error {
	err := c.client.HSet(ctx, c.key(symbol),
		fieldBidPrice, buy.Price.Cents(),
		fieldBidVolume, buy.Volume,
		fieldAskPrice, sell.Price.Cents(),
		fieldAskVolume, sell.Volume,
		fieldUpdatedAt, c.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store market for %s: %w", symbol, err)
	}

	c.logger.Debug("Cached current market",
		zap.String("symbol", symbol),
		zap.String("buy", buy.String()),
		zap.String("sell", sell.String()))
	return nil
}

// Get reads back the cached current market for symbol
func (c *MarketCache) Get(ctx context.Context, symbol string) (buy, sell marketdata.MarketSide, err error) {
	fields, err := c.client.HGetAll(ctx, c.key(symbol)).Result()
	if err != nil {
		return buy, sell, fmt.Errorf("failed to read market for %s: %w", symbol, err)
	}
	if len(fields) == 0 {
		return buy, sell, fmt.Errorf("%w: %s", ErrMarketNotCached, symbol)
	}

	if buy, err = parseSide(fields, fieldBidPrice, fieldBidVolume); err != nil {
		return buy, sell, fmt.Errorf("corrupt bid for %s: %w", symbol, err)
	}
	if sell, err = parseSide(fields, fieldAskPrice, fieldAskVolume); err != nil {
		return buy, sell, fmt.Errorf("corrupt ask for %s: %w", symbol, err)
	}
	return buy, sell, nil
}

// Delete removes the cached market for symbol
func (c *MarketCache) Delete(ctx context.Context, symbol string) error {
	return c.client.Del(ctx, c.key(symbol)).Err()
}

func parseSide(fields map[string]string, priceField, volumeField string) (marketdata.MarketSide, error) {
	cents, err := strconv.ParseInt(fields[priceField], 10, 64)
	if err != nil {
		return marketdata.MarketSide{}, err
	}
	volume, err := strconv.Atoi(fields[volumeField])
	if err != nil {
		return marketdata.MarketSide{}, err
	}
	return marketdata.MarketSide{Price: price.New(cents), Volume: volume}, nil
}
