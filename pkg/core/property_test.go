package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/erain9/marketsim/pkg/price"
	"pgregory.net/rapid"
)

// TestBookInvariants drives a book with random adds and cancels and checks
// after every step that the book is not crossed and every order conserves volume.
func TestBookInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		ob, err := NewOrderBook("WMT", nil)
		if err != nil {
			t.Fatalf("new book: %v", err)
		}

		var all []*Order
		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(all) > 0 && rapid.IntRange(0, 9).Draw(t, "op") == 0 {
				o := rapid.SampledFrom(all).Draw(t, "cancel")
				_, err := ob.Cancel(ctx, o.Side(), o.ID())
				if o.IsActive() && err != nil {
					t.Fatalf("cancel of live order %s failed: %v", o.ID(), err)
				}
			} else {
				side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
				cents := rapid.Int64Range(990, 1010).Draw(t, "price")
				volume := rapid.IntRange(1, 500).Draw(t, "volume")
				o, err := NewOrderWithID(fmt.Sprintf("o%d", i), "ANN", "WMT", price.New(cents), volume, side)
				if err != nil {
					t.Fatalf("new order: %v", err)
				}
				if _, err := ob.Add(ctx, o); err != nil {
					t.Fatalf("add: %v", err)
				}
				all = append(all, o)
			}

			checkNotCrossed(t, ob)
			checkConservation(t, all)
			checkLevelsConsistent(t, ob)
		}
	})
}

// TestMatchedVolumeBalances checks that both sides trade the same total volume
func TestMatchedVolumeBalances(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var bought, sold int
		listener := ExecutionListenerFunc(func(_ context.Context, e Execution) {
			if e.Kind == ExecCancel {
				return
			}
			if e.Side == Buy {
				bought += e.Volume
			} else {
				sold += e.Volume
			}
		})
		ob, err := NewOrderBook("TGT", nil, WithExecutionListener(listener))
		if err != nil {
			t.Fatalf("new book: %v", err)
		}

		n := rapid.IntRange(1, 100).Draw(t, "orders")
		for i := 0; i < n; i++ {
			side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
			cents := rapid.Int64Range(95, 105).Draw(t, "price")
			volume := rapid.IntRange(1, 100).Draw(t, "volume")
			o, err := NewOrderWithID(fmt.Sprintf("o%d", i), "BOB", "TGT", price.New(cents), volume, side)
			if err != nil {
				t.Fatalf("new order: %v", err)
			}
			if _, err := ob.Add(context.Background(), o); err != nil {
				t.Fatalf("add: %v", err)
			}
			if bought != sold {
				t.Fatalf("bought %d != sold %d", bought, sold)
			}
		}
	})
}

func checkNotCrossed(t *rapid.T, ob *OrderBook) {
	bid, hasBid := ob.Bids().BestPrice()
	ask, hasAsk := ob.Asks().BestPrice()
	if hasBid && hasAsk && bid.GreaterOrEqual(ask) {
		t.Fatalf("book crossed: bid %s >= ask %s", bid, ask)
	}
}

func checkConservation(t *rapid.T, orders []*Order) {
	for _, o := range orders {
		if o.RemainingVolume() < 0 {
			t.Fatalf("order %s has negative remaining volume", o.ID())
		}
		if sum := o.RemainingVolume() + o.FilledVolume() + o.CancelledVolume(); sum != o.OriginalVolume() {
			t.Fatalf("order %s: %d + %d + %d != %d", o.ID(),
				o.RemainingVolume(), o.FilledVolume(), o.CancelledVolume(), o.OriginalVolume())
		}
	}
}

func checkLevelsConsistent(t *rapid.T, ob *OrderBook) {
	for _, bs := range []*BookSide{ob.Bids(), ob.Asks()} {
		count := 0
		bs.Levels(func(level *PriceLevel) bool {
			if level.IsEmpty() {
				t.Fatalf("empty level %s left on %s side", level.Price(), bs.Side())
			}
			total := 0
			for _, o := range level.orders {
				if !o.IsActive() {
					t.Fatalf("inactive order %s resting at %s", o.ID(), level.Price())
				}
				total += o.RemainingVolume()
			}
			if total != level.TotalRemainingVolume() {
				t.Fatalf("level %s volume %d, orders sum to %d", level.Price(), level.TotalRemainingVolume(), total)
			}
			count += level.Len()
			return true
		})
		if count != bs.Len() {
			t.Fatalf("%s side index holds %d orders, levels hold %d", bs.Side(), bs.Len(), count)
		}
	}
}
