package core

import (
	"github.com/erain9/marketsim/pkg/price"
)

// PriceLevel is the FIFO queue of orders resting at one price
type PriceLevel struct {
	price  price.Price
	orders []*Order
	volume int
}

// NewPriceLevel creates an empty level
func NewPriceLevel(p price.Price) *PriceLevel {
	return &PriceLevel{price: p}
}

// Price returns the level price
func (l *PriceLevel) Price() price.Price { return l.price }

// Len returns the number of resting orders
func (l *PriceLevel) Len() int { return len(l.orders) }

// IsEmpty reports whether no orders rest at this level
func (l *PriceLevel) IsEmpty() bool { return len(l.orders) == 0 }

// TotalRemainingVolume returns the sum of remaining volume at this level
func (l *PriceLevel) TotalRemainingVolume() int { return l.volume }

// Add appends an order to the tail of the queue
func (l *PriceLevel) Add(o *Order) {
	l.orders = append(l.orders, o)
	l.volume += o.RemainingVolume()
}

// Head returns the oldest order, or nil if the level is empty
func (l *PriceLevel) Head() *Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// Remove takes the order with the given id out of the queue without
// changing its state. Returns nil if the id is not present.
func (l *PriceLevel) Remove(orderID string) *Order {
	for i, o := range l.orders {
		if o.ID() != orderID {
			continue
		}
		copy(l.orders[i:], l.orders[i+1:])
		l.orders[len(l.orders)-1] = nil
		l.orders = l.orders[:len(l.orders)-1]
		l.volume -= o.RemainingVolume()
		return o
	}
	return nil
}

// Consume fills up to volume from the head of the queue. Fully filled orders
// are removed; a straddling order is partially filled and stays at the head.
// onFill is called once per order touched, after its state was updated.
// Returns the volume actually consumed.
func (l *PriceLevel) Consume(volume int, onFill func(o *Order, filled int)) int {
	consumed := 0
	for volume > 0 && len(l.orders) > 0 {
		head := l.orders[0]
		v := min(volume, head.RemainingVolume())

		head.fill(v)
		l.volume -= v
		volume -= v
		consumed += v

		if head.RemainingVolume() == 0 {
			l.orders[0] = nil
			l.orders = l.orders[1:]
		}
		if onFill != nil {
			onFill(head, v)
		}
	}
	return consumed
}

// Orders returns snapshots of the resting orders in time priority
func (l *PriceLevel) Orders() []OrderSnapshot {
	out := make([]OrderSnapshot, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o.Snapshot())
	}
	return out
}
