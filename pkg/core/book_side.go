package core

import (
	"fmt"
	"strings"

	"github.com/erain9/marketsim/pkg/price"
	"github.com/tidwall/btree"
)

const btreeDegree = 32

// BookSide holds the active price levels of one side of a book. Bids are
// walked from the highest price down, asks from the lowest price up.
type BookSide struct {
	side   Side
	levels *btree.Map[price.Price, *PriceLevel]
	orders map[string]*PriceLevel
}

// NewBookSide creates an empty book side
func NewBookSide(side Side) *BookSide {
	return &BookSide{
		side:   side,
		levels: btree.NewMap[price.Price, *PriceLevel](btreeDegree),
		orders: make(map[string]*PriceLevel),
	}
}

// Side returns the side this BookSide holds
func (bs *BookSide) Side() Side { return bs.side }

// Depth returns the number of active price levels
func (bs *BookSide) Depth() int { return bs.levels.Len() }

// Len returns the number of resting orders
func (bs *BookSide) Len() int { return len(bs.orders) }

// IsEmpty reports whether the side has no resting orders
func (bs *BookSide) IsEmpty() bool { return bs.levels.Len() == 0 }

// Contains reports whether an order with the given id rests on this side
func (bs *BookSide) Contains(orderID string) bool {
	_, ok := bs.orders[orderID]
	return ok
}

// Add inserts the order at the tail of its price level and returns a
// snapshot taken right after insertion.
func (bs *BookSide) Add(o *Order) OrderSnapshot {
	level, ok := bs.levels.Get(o.Price())
	if !ok {
		level = NewPriceLevel(o.Price())
		bs.levels.Set(o.Price(), level)
	}
	level.Add(o)
	bs.orders[o.ID()] = level
	return o.Snapshot()
}

// Order returns the resting order with the given id
func (bs *BookSide) Order(orderID string) (*Order, bool) {
	level, ok := bs.orders[orderID]
	if !ok {
		return nil, false
	}
	for _, o := range level.orders {
		if o.ID() == orderID {
			return o, true
		}
	}
	return nil, false
}

// Cancel moves the remaining volume of the order to cancelled and removes
// it from the side. The second result is false when no such order rests here.
func (bs *BookSide) Cancel(orderID string) (OrderSnapshot, bool) {
	level, ok := bs.orders[orderID]
	if !ok {
		return OrderSnapshot{}, false
	}

	o := level.Remove(orderID)
	delete(bs.orders, orderID)
	if o == nil {
		return OrderSnapshot{}, false
	}
	o.cancel()

	if level.IsEmpty() {
		bs.levels.Delete(level.Price())
	}
	return o.Snapshot(), true
}

// BestPrice returns the most aggressive price on this side
func (bs *BookSide) BestPrice() (price.Price, bool) {
	level := bs.bestLevel()
	if level == nil {
		return price.Zero, false
	}
	return level.Price(), true
}

// BestVolume returns the total remaining volume at the best price, 0 if empty
func (bs *BookSide) BestVolume() int {
	level := bs.bestLevel()
	if level == nil {
		return 0
	}
	return level.TotalRemainingVolume()
}

func (bs *BookSide) bestLevel() *PriceLevel {
	var (
		level *PriceLevel
		ok    bool
	)
	if bs.side == Buy {
		_, level, ok = bs.levels.Max()
	} else {
		_, level, ok = bs.levels.Min()
	}
	if !ok {
		return nil
	}
	return level
}

// Consume drains exactly volume from the level at price p, oldest order first.
// onFill is called once per order touched. The caller guarantees the level
// exists and holds at least volume; a violation panics.
func (bs *BookSide) Consume(p price.Price, volume int, onFill func(o *Order, filled int)) {
	level, ok := bs.levels.Get(p)
	if !ok {
		panic(fmt.Sprintf("consume at %s: no %s level", p, bs.side))
	}
	if available := level.TotalRemainingVolume(); available < volume {
		panic(fmt.Sprintf("consume %d at %s: only %d available", volume, p, available))
	}

	level.Consume(volume, func(o *Order, filled int) {
		if o.RemainingVolume() == 0 {
			delete(bs.orders, o.ID())
		}
		if onFill != nil {
			onFill(o, filled)
		}
	})

	if level.IsEmpty() {
		bs.levels.Delete(p)
	}
}

// Levels calls fn for each active level in side order until fn returns false
func (bs *BookSide) Levels(fn func(level *PriceLevel) bool) {
	iter := func(_ price.Price, level *PriceLevel) bool {
		return fn(level)
	}
	if bs.side == Buy {
		bs.levels.Reverse(iter)
	} else {
		bs.levels.Scan(iter)
	}
}

// Orders returns snapshots of every resting order in side then time priority
func (bs *BookSide) Orders() []OrderSnapshot {
	out := make([]OrderSnapshot, 0, len(bs.orders))
	bs.Levels(func(level *PriceLevel) bool {
		out = append(out, level.Orders()...)
		return true
	})
	return out
}

// String renders the side section of a book report
func (bs *BookSide) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Side: %s\n", bs.side)
	if bs.IsEmpty() {
		sb.WriteString("     <Empty>\n")
		return sb.String()
	}
	bs.Levels(func(level *PriceLevel) bool {
		fmt.Fprintf(&sb, " Price: %s\n", level.Price())
		for _, o := range level.orders {
			fmt.Fprintf(&sb, "     %s\n", o)
		}
		return true
	})
	return sb.String()
}
