package user

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/logging"
)

// Manager is the registry of users. It also listens to book executions so
// each user's snapshots follow fills and cancels.
type Manager struct {
	mu    sync.RWMutex
	users map[string]*User
	ids   []string
}

var _ core.ExecutionListener = (*Manager)(nil)

// NewManager creates an empty registry
func NewManager() *Manager {
	return &Manager{users: make(map[string]*User)}
}

// Init creates a user for each id. Existing users are an error.
func (m *Manager) Init(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			return fmt.Errorf("%w: %s", ErrUserExists, id)
		}
		u, err := New(id)
		if err != nil {
			return err
		}
		m.users[id] = u
		m.ids = append(m.ids, id)
	}
	return nil
}

// User returns the user with the given id
func (m *Manager) User(id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

// Users returns all users in the order they were created
func (m *Manager) Users() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.users[id])
	}
	return out
}

// RandomUser picks a user uniformly using rng
func (m *Manager) RandomUser(rng *rand.Rand) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ids) == 0 {
		return nil, ErrNoUsers
	}
	return m.users[m.ids[rng.Intn(len(m.ids))]], nil
}

// AddToUser stores an order snapshot on the named user
func (m *Manager) AddToUser(id string, s core.OrderSnapshot) error {
	u, err := m.User(id)
	if err != nil {
		return err
	}
	return u.AddOrder(s)
}

// OnExecution implements core.ExecutionListener. Orders of unknown users are ignored.
func (m *Manager) OnExecution(ctx context.Context, e core.Execution) {
	u, err := m.User(e.Order.User)
	if err != nil {
		return
	}
	if err := u.AddOrder(e.Order); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("order_id", e.Order.ID).Msg("Failed to record execution")
	}
}

// String renders every user report in creation order
func (m *Manager) String() string {
	var sb strings.Builder
	for _, u := range m.Users() {
		sb.WriteString(u.String())
	}
	return sb.String()
}
