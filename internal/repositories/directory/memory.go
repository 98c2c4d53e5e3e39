package directory

import (
	"context"
	"strings"
	"sync"

	"qiyana_splitledger/internal/models"

	"github.com/shopspring/decimal"
)

// Memory is an in-process directory used by tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	users  map[int64]models.User
	groups map[int64][]int64
	limit  *decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]models.User),
		groups: make(map[int64][]int64),
	}
}

func (m *Memory) AddUser(u models.User) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return m
}

func (m *Memory) AddUsers(ids ...int64) *Memory {
	for _, id := range ids {
		m.AddUser(models.User{ID: id})
	}
	return m
}

func (m *Memory) AddGroup(g models.Group) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = append([]int64(nil), g.Members...)
	return m
}

func (m *Memory) UserExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *Memory) ResolveUserByEmail(_ context.Context, email string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, u := range m.users {
		if u.Email != "" && strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) Contact(_ context.Context, id int64) (models.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *Memory) GroupMembers(_ context.Context, groupID int64) ([]int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.groups[groupID]
	if !ok {
		return nil, false, nil
	}
	return append([]int64(nil), members...), true, nil
}

func (m *Memory) GetLimit(_ context.Context) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.limit == nil {
		return decimal.Zero, false, nil
	}
	return *m.limit, true, nil
}

func (m *Memory) CreateLimit(_ context.Context, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit != nil {
		return ErrLimitExists
	}
	m.limit = &amount
	return nil
}

func (m *Memory) UpsertLimit(_ context.Context, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = &amount
	return nil
}

func (m *Memory) DeleteLimit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit == nil {
		return ErrLimitNotFound
	}
	m.limit = nil
	return nil
}
