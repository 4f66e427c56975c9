// Package user keeps per-user order snapshots and current-market views.
package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/marketdata"
)

// Errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user exists")
	ErrNoUsers      = errors.New("no users")
)

type currentMarket struct {
	buy  marketdata.MarketSide
	sell marketdata.MarketSide
}

// User holds the latest snapshot of each order a user submitted and the
// last current market seen for each subscribed symbol.
type User struct {
	id string

	mu      sync.RWMutex
	orders  map[string]core.OrderSnapshot
	order   []string
	markets map[string]currentMarket
}

var _ marketdata.Subscriber = (*User)(nil)

// New creates a user after validating the id
func New(id string) (*User, error) {
	if err := core.ValidateUserID(id); err != nil {
		return nil, err
	}
	return &User{
		id:      id,
		orders:  make(map[string]core.OrderSnapshot),
		markets: make(map[string]currentMarket),
	}, nil
}

// ID returns the user id
func (u *User) ID() string { return u.id }

// AddOrder stores or replaces the snapshot of one of this user's orders.
// A replaced snapshot keeps its original position. Volume only ever leaves
// the remaining bucket, so a snapshot with more remaining volume than the
// stored one is stale and ignored.
func (u *User) AddOrder(s core.OrderSnapshot) error {
	if s.IsZero() {
		return fmt.Errorf("%w: empty order snapshot", core.ErrInvalidArgument)
	}
	if s.User != u.id {
		return fmt.Errorf("%w: order %s belongs to %s, not %s", core.ErrInvalidArgument, s.ID, s.User, u.id)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	prev, ok := u.orders[s.ID]
	if !ok {
		u.order = append(u.order, s.ID)
	} else if prev.RemainingVolume < s.RemainingVolume {
		return nil
	}
	u.orders[s.ID] = s
	return nil
}

// Order returns the stored snapshot for an order id
func (u *User) Order(id string) (core.OrderSnapshot, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s, ok := u.orders[id]
	return s, ok
}

// Orders returns all stored snapshots in the order they were first added
func (u *User) Orders() []core.OrderSnapshot {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]core.OrderSnapshot, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, u.orders[id])
	}
	return out
}

// HasOrderWithRemainingQty reports whether any stored snapshot has remaining volume
func (u *User) HasOrderWithRemainingQty() bool {
	_, ok := u.OrderWithRemainingQty()
	return ok
}

// OrderWithRemainingQty returns the earliest added snapshot with remaining volume
func (u *User) OrderWithRemainingQty() (core.OrderSnapshot, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, id := range u.order {
		if s := u.orders[id]; s.RemainingVolume > 0 {
			return s, true
		}
	}
	return core.OrderSnapshot{}, false
}

// UpdateCurrentMarket implements marketdata.Subscriber
func (u *User) UpdateCurrentMarket(_ context.Context, symbol string, buy, sell marketdata.MarketSide) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.markets[symbol] = currentMarket{buy: buy, sell: sell}
}

// CurrentMarket returns the last market seen for symbol
func (u *User) CurrentMarket(symbol string) (buy, sell marketdata.MarketSide, ok bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	m, ok := u.markets[symbol]
	return m.buy, m.sell, ok
}

// CurrentMarkets renders one "SYM buy - sell" line per known symbol, sorted by symbol
func (u *User) CurrentMarkets() string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	symbols := make([]string, 0, len(u.markets))
	for s := range u.markets {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var sb strings.Builder
	for _, s := range symbols {
		m := u.markets[s]
		fmt.Fprintf(&sb, "%s %s - %s\n", s, m.buy, m.sell)
	}
	return sb.String()
}

// String renders the user header followed by each order line
func (u *User) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Id: %s\n", u.id)
	for _, s := range u.Orders() {
		fmt.Fprintf(&sb, "\tOrder: %s\n", s)
	}
	return sb.String()
}
