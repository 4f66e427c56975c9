package marketdata

import (
	"context"
	"sync"
)

// Subscription identifies one registration made with Publisher.Subscribe
type Subscription struct {
	symbol string
	id     uint64
}

// Symbol returns the subscribed symbol
func (s Subscription) Symbol() string { return s.symbol }

type registration struct {
	id  uint64
	sub Subscriber
}

// Publisher keeps an ordered list of subscribers per symbol and invokes them
// synchronously, in registration order, for every update. Subscribing the
// same subscriber twice delivers every update twice.
type Publisher struct {
	mu      sync.RWMutex
	nextID  uint64
	filters map[string][]registration
}

// NewPublisher creates an empty publisher
func NewPublisher() *Publisher {
	return &Publisher{filters: make(map[string][]registration)}
}

// Subscribe registers sub for updates on symbol
func (p *Publisher) Subscribe(symbol string, sub Subscriber) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	p.filters[symbol] = append(p.filters[symbol], registration{id: p.nextID, sub: sub})
	return Subscription{symbol: symbol, id: p.nextID}
}

// Unsubscribe removes a registration. Returns false if it was not registered.
func (p *Publisher) Unsubscribe(s Subscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	regs := p.filters[s.symbol]
	for i, r := range regs {
		if r.id != s.id {
			continue
		}
		p.filters[s.symbol] = append(regs[:i:i], regs[i+1:]...)
		if len(p.filters[s.symbol]) == 0 {
			delete(p.filters, s.symbol)
		}
		return true
	}
	return false
}

// Subscribers returns the number of registrations for symbol
func (p *Publisher) Subscribers(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.filters[symbol])
}

// Publish delivers an update to every subscriber of symbol. Subscribers run
// outside the registry lock and may subscribe or unsubscribe; such changes
// take effect from the next publish.
func (p *Publisher) Publish(ctx context.Context, symbol string, buy, sell MarketSide) {
	p.mu.RLock()
	regs := p.filters[symbol]
	p.mu.RUnlock()

	for _, r := range regs {
		r.sub.UpdateCurrentMarket(ctx, symbol, buy, sell)
	}
}
