package core

import (
	"testing"

	"github.com/erain9/marketsim/pkg/price"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceLevelFIFO(t *testing.T) {
	level := NewPriceLevel(price.New(1000))
	a := mustOrder(t, "a", "ANN", Buy, 1000, 30)
	b := mustOrder(t, "b", "BOB", Buy, 1000, 50)
	c := mustOrder(t, "c", "CAT", Buy, 1000, 20)
	level.Add(a)
	level.Add(b)
	level.Add(c)

	assert.Equal(t, 100, level.TotalRemainingVolume())
	assert.Equal(t, 3, level.Len())

	var touched []string
	consumed := level.Consume(60, func(o *Order, filled int) {
		touched = append(touched, o.ID())
	})

	assert.Equal(t, 60, consumed)
	assert.Equal(t, []string{"a", "b"}, touched)
	assert.Equal(t, 0, a.RemainingVolume())
	assert.Equal(t, 20, b.RemainingVolume())
	assert.Equal(t, b, level.Head())
	assert.Equal(t, 40, level.TotalRemainingVolume())
}

func TestPriceLevelRemove(t *testing.T) {
	level := NewPriceLevel(price.New(1000))
	a := mustOrder(t, "a", "ANN", Sell, 1000, 30)
	b := mustOrder(t, "b", "BOB", Sell, 1000, 50)
	level.Add(a)
	level.Add(b)

	assert.Nil(t, level.Remove("missing"))
	assert.Equal(t, a, level.Remove("a"))
	assert.Equal(t, 50, level.TotalRemainingVolume())
	assert.Equal(t, 1, level.Len())
	assert.Equal(t, b, level.Head())

	assert.Equal(t, b, level.Remove("b"))
	assert.True(t, level.IsEmpty())
	assert.Nil(t, level.Head())
}

func TestBookSideOrdering(t *testing.T) {
	tests := []struct {
		name     string
		side     Side
		prices   []int64
		expected []int64
		best     int64
	}{
		{"bids descending", Buy, []int64{1000, 1020, 990, 1010}, []int64{1020, 1010, 1000, 990}, 1020},
		{"asks ascending", Sell, []int64{1000, 1020, 990, 1010}, []int64{990, 1000, 1010, 1020}, 990},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs := NewBookSide(tt.side)
			for i, p := range tt.prices {
				bs.Add(mustOrder(t, string(rune('a'+i)), "ANN", tt.side, p, 10))
			}

			var got []int64
			bs.Levels(func(level *PriceLevel) bool {
				got = append(got, level.Price().Cents())
				return true
			})
			assert.Equal(t, tt.expected, got)

			best, ok := bs.BestPrice()
			require.True(t, ok)
			assert.Equal(t, price.New(tt.best), best)
			assert.Equal(t, 10, bs.BestVolume())
			assert.Equal(t, 4, bs.Depth())
		})
	}
}

func TestBookSideEmpty(t *testing.T) {
	bs := NewBookSide(Buy)
	p, ok := bs.BestPrice()
	assert.False(t, ok)
	assert.Equal(t, price.Zero, p)
	assert.Equal(t, 0, bs.BestVolume())
	assert.True(t, bs.IsEmpty())
	assert.Equal(t, "Side: BUY\n     <Empty>\n", bs.String())
}

func TestBookSideCancel(t *testing.T) {
	bs := NewBookSide(Sell)
	bs.Add(mustOrder(t, "a", "ANN", Sell, 1000, 30))
	bs.Add(mustOrder(t, "b", "BOB", Sell, 1010, 40))

	snap, ok := bs.Cancel("a")
	require.True(t, ok)
	assert.Equal(t, 0, snap.RemainingVolume)
	assert.Equal(t, 30, snap.CancelledVolume)
	assert.Equal(t, 1, bs.Depth())
	assert.False(t, bs.Contains("a"))

	best, _ := bs.BestPrice()
	assert.Equal(t, price.New(1010), best)

	_, ok = bs.Cancel("a")
	assert.False(t, ok)
	_, ok = bs.Cancel("nope")
	assert.False(t, ok)
	assert.Equal(t, 1, bs.Len())
}

func TestBookSideConsume(t *testing.T) {
	bs := NewBookSide(Buy)
	bs.Add(mustOrder(t, "a", "ANN", Buy, 1000, 30))
	bs.Add(mustOrder(t, "b", "BOB", Buy, 1000, 40))

	fills := map[string]int{}
	bs.Consume(price.New(1000), 50, func(o *Order, filled int) {
		fills[o.ID()] += filled
	})

	assert.Equal(t, map[string]int{"a": 30, "b": 20}, fills)
	assert.False(t, bs.Contains("a"))
	assert.True(t, bs.Contains("b"))
	assert.Equal(t, 20, bs.BestVolume())

	bs.Consume(price.New(1000), 20, nil)
	assert.True(t, bs.IsEmpty())
	assert.Equal(t, 0, bs.Len())

	assert.Panics(t, func() { bs.Consume(price.New(1000), 1, nil) })
}

func TestBookSideOrderLookup(t *testing.T) {
	bs := NewBookSide(Buy)
	bs.Add(mustOrder(t, "a", "ANN", Buy, 1000, 30))

	o, ok := bs.Order("a")
	require.True(t, ok)
	assert.Equal(t, "ANN", o.User())

	_, ok = bs.Order("b")
	assert.False(t, ok)
}
