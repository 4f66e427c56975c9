package messaging

import (
	"context"
	"sync"
)

// MockSender records every message it is given. Setting Err makes every send fail.
type MockSender struct {
	mu         sync.Mutex
	marketData []*MarketDataMessage
	executions []*ExecutionMessage
	closed     bool

	Err error
}

// NewMockSender creates a new MockSender
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendMarketData records the message
func (m *MockSender) SendMarketData(_ context.Context, msg *MarketDataMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.marketData = append(m.marketData, msg)
	return nil
}

// SendExecution records the message
func (m *MockSender) SendExecution(_ context.Context, msg *ExecutionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.executions = append(m.executions, msg)
	return nil
}

// MarketData returns the recorded market data messages
func (m *MockSender) MarketData() []*MarketDataMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MarketDataMessage(nil), m.marketData...)
}

// Executions returns the recorded execution messages
func (m *MockSender) Executions() []*ExecutionMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ExecutionMessage(nil), m.executions...)
}

// Closed reports whether Close was called
func (m *MockSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the sender closed
func (m *MockSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ensure MockSender implements both sender interfaces
var (
	_ MarketDataSender = (*MockSender)(nil)
	_ ExecutionSender  = (*MockSender)(nil)
)
