package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erain9/marketsim/pkg/price"
	"github.com/google/uuid"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the contra side
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide reads "BUY" or "SELL", case-insensitively
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return Sell, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// MarshalJSON encodes the side by name
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a side from its name
func (s *Side) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	side, err := ParseSide(name)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Order stores information about a resting limit order. Only the book
// that owns an order mutates it; everyone else works with OrderSnapshot.
type Order struct {
	id              string
	user            string
	symbol          string
	side            Side
	price           price.Price
	originalVolume  int
	remainingVolume int
	filledVolume    int
	cancelledVolume int
}

// NewOrder validates the fields and creates an order with a generated id
func NewOrder(user, symbol string, p price.Price, volume int, side Side) (*Order, error) {
	if err := (orderRequest{User: user, Symbol: symbol, Side: side, Volume: volume}).validate(); err != nil {
		return nil, err
	}
	id := user + symbol + p.String() + "-" + uuid.NewString()
	return newOrder(id, user, symbol, p, volume, side), nil
}

// NewOrderWithID is like NewOrder but uses the given id
func NewOrderWithID(id, user, symbol string, p price.Price, volume int, side Side) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidArgument)
	}
	if err := (orderRequest{User: user, Symbol: symbol, Side: side, Volume: volume}).validate(); err != nil {
		return nil, err
	}
	return newOrder(id, user, symbol, p, volume, side), nil
}

func newOrder(id, user, symbol string, p price.Price, volume int, side Side) *Order {
	return &Order{
		id:              id,
		user:            user,
		symbol:          symbol,
		side:            side,
		price:           p,
		originalVolume:  volume,
		remainingVolume: volume,
	}
}

// ID returns id of the order
func (o *Order) ID() string { return o.id }

// User returns the id of the submitting user
func (o *Order) User() string { return o.user }

// Symbol returns the product symbol
func (o *Order) Symbol() string { return o.symbol }

// Side returns side of the order
func (o *Order) Side() Side { return o.side }

// Price returns the limit price
func (o *Order) Price() price.Price { return o.price }

// OriginalVolume returns the volume the order was created with
func (o *Order) OriginalVolume() int { return o.originalVolume }

// RemainingVolume returns the volume still resting
func (o *Order) RemainingVolume() int { return o.remainingVolume }

// FilledVolume returns the volume traded so far
func (o *Order) FilledVolume() int { return o.filledVolume }

// CancelledVolume returns the volume removed by cancellation
func (o *Order) CancelledVolume() int { return o.cancelledVolume }

// IsActive reports whether the order still has volume resting
func (o *Order) IsActive() bool { return o.remainingVolume > 0 }

// fill moves volume from remaining to filled
func (o *Order) fill(volume int) {
	if volume > o.remainingVolume {
		panic(fmt.Sprintf("fill of %d exceeds remaining %d on order %s", volume, o.remainingVolume, o.id))
	}
	o.remainingVolume -= volume
	o.filledVolume += volume
}

// cancel moves all remaining volume to cancelled and returns the amount
func (o *Order) cancel() int {
	v := o.remainingVolume
	o.cancelledVolume += v
	o.remainingVolume = 0
	return v
}

// Snapshot returns a point-in-time copy of the order
func (o *Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:              o.id,
		User:            o.user,
		Symbol:          o.symbol,
		Side:            o.side,
		Price:           o.price,
		OriginalVolume:  o.originalVolume,
		RemainingVolume: o.remainingVolume,
		FilledVolume:    o.filledVolume,
		CancelledVolume: o.cancelledVolume,
	}
}

// String implements fmt.Stringer
func (o *Order) String() string {
	return o.Snapshot().String()
}

// OrderSnapshot is an immutable copy of an order's state
type OrderSnapshot struct {
	ID              string      `json:"id"`
	User            string      `json:"user"`
	Symbol          string      `json:"symbol"`
	Side            Side        `json:"side"`
	Price           price.Price `json:"price"`
	OriginalVolume  int         `json:"originalVolume"`
	RemainingVolume int         `json:"remainingVolume"`
	FilledVolume    int         `json:"filledVolume"`
	CancelledVolume int         `json:"cancelledVolume"`
}

// IsZero reports whether the snapshot is the zero value
func (s OrderSnapshot) IsZero() bool {
	return s.ID == ""
}

// String renders the one-line order description used in book reports
func (s OrderSnapshot) String() string {
	return fmt.Sprintf("%s order: %s %s at %s, Orig Vol: %d, Rem Vol: %d, Fill Vol: %d, CXL Vol: %d, ID: %s",
		s.User, s.Side, s.Symbol, s.Price, s.OriginalVolume, s.RemainingVolume, s.FilledVolume, s.CancelledVolume, s.ID)
}
