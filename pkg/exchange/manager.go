// Package exchange routes orders and cancels to the order book of their symbol.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/logging"
)

var (
	// ErrProductExists is returned when adding a symbol that already has a book
	ErrProductExists = errors.New("product already exists")

	// ErrProductNotFound is returned when a symbol has no book
	ErrProductNotFound = errors.New("product not found")

	// ErrNoProducts is returned by RandomProduct when no book exists
	ErrNoProducts = errors.New("no products")
)

// ProductInfo contains metadata about a product's book
type ProductInfo struct {
	Symbol     string
	CreatedAt  time.Time
	OrderCount int
}

// product pairs a book with the mutex that serializes access to it
type product struct {
	mu   sync.Mutex
	book *core.OrderBook
	info ProductInfo
}

// ProductManager owns one order book per symbol. Operations on one symbol
// are serialized; different symbols do not contend.
type ProductManager struct {
	mu       sync.RWMutex
	products map[string]*product
	sink     core.MarketDataSink
	opts     []core.Option
}

// NewProductManager creates an empty manager. Every book it creates publishes
// to sink and receives opts.
func NewProductManager(sink core.MarketDataSink, opts ...core.Option) *ProductManager {
	return &ProductManager{
		products: make(map[string]*product),
		sink:     sink,
		opts:     opts,
	}
}

// AddProduct creates an empty book for symbol
func (m *ProductManager) AddProduct(ctx context.Context, symbol string) (*ProductInfo, error) {
	logger := logging.FromContext(ctx).With().Str("symbol", symbol).Logger()

	book, err := core.NewOrderBook(symbol, m.sink, m.opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[symbol]; exists {
		logger.Error().Msg("Product already exists")
		return nil, fmt.Errorf("%w: %s", ErrProductExists, symbol)
	}

	p := &product{
		book: book,
		info: ProductInfo{Symbol: symbol, CreatedAt: time.Now()},
	}
	m.products[symbol] = p

	logger.Info().Msg("Created new order book")
	info := p.info
	return &info, nil
}

// RemoveProduct drops a symbol and its book
func (m *ProductManager) RemoveProduct(ctx context.Context, symbol string) error {
	logger := logging.FromContext(ctx).With().Str("symbol", symbol).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[symbol]; !exists {
		logger.Debug().Msg("Product not found")
		return fmt.Errorf("%w: %s", ErrProductNotFound, symbol)
	}
	delete(m.products, symbol)

	logger.Info().Msg("Removed order book")
	return nil
}

// Products returns all symbols in ascending order
func (m *ProductManager) Products() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.products))
	for s := range m.products {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Info returns the metadata of a product
func (m *ProductManager) Info(symbol string) (ProductInfo, error) {
	p, err := m.product(symbol)
	if err != nil {
		return ProductInfo{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info, nil
}

// RandomProduct picks a symbol uniformly using rng
func (m *ProductManager) RandomProduct(rng *rand.Rand) (string, error) {
	symbols := m.Products()
	if len(symbols) == 0 {
		return "", ErrNoProducts
	}
	return symbols[rng.Intn(len(symbols))], nil
}

func (m *ProductManager) product(symbol string) (*product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, symbol)
	}
	return p, nil
}

// AddOrder submits an order to the book of its symbol and returns the
// pre-trade snapshot
func (m *ProductManager) AddOrder(ctx context.Context, o *core.Order) (core.OrderSnapshot, error) {
	if o == nil {
		return core.OrderSnapshot{}, fmt.Errorf("%w: nil order", core.ErrInvalidArgument)
	}
	p, err := m.product(o.Symbol())
	if err != nil {
		return core.OrderSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot, err := p.book.Add(ctx, o)
	if err != nil {
		return core.OrderSnapshot{}, err
	}
	p.info.OrderCount++
	return snapshot, nil
}

// Cancel cancels the order a snapshot refers to. Returns core.ErrOrderNotFound
// when it no longer rests in the book.
func (m *ProductManager) Cancel(ctx context.Context, s core.OrderSnapshot) (core.OrderSnapshot, error) {
	p, err := m.product(s.Symbol)
	if err != nil {
		return core.OrderSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Cancel(ctx, s.Side, s.ID)
}

// Order returns a snapshot of a resting order. Returns core.ErrOrderNotFound
// when the order is not resting.
func (m *ProductManager) Order(symbol, orderID string) (core.OrderSnapshot, error) {
	p, err := m.product(symbol)
	if err != nil {
		return core.OrderSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.book.Order(orderID)
	if !ok {
		return core.OrderSnapshot{}, fmt.Errorf("%w: %s %s", core.ErrOrderNotFound, symbol, orderID)
	}
	return s, nil
}

// TopOfBook returns the current best bid and ask of symbol
func (m *ProductManager) TopOfBook(symbol string) (core.TopOfBook, error) {
	p, err := m.product(symbol)
	if err != nil {
		return core.TopOfBook{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.TopOfBook(), nil
}

// Report renders the book report of one symbol
func (m *ProductManager) Report(symbol string) (string, error) {
	p, err := m.product(symbol)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.String(), nil
}

// String renders every book report in symbol order
func (m *ProductManager) String() string {
	var sb strings.Builder
	for _, symbol := range m.Products() {
		report, err := m.Report(symbol)
		if err != nil {
			continue
		}
		sb.WriteString(report)
	}
	return sb.String()
}
