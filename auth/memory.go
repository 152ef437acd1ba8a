package auth

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/shop-engine/shop"
)

// MemoryUsers is an in-memory UserStore (for testing/dev).
type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[shop.UserID]User
	nextID shop.UserID
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[shop.UserID]User)}
}

func (m *MemoryUsers) GetUser(_ context.Context, id shop.UserID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, UserNotFound(id)
	}
	return &u, nil
}

func (m *MemoryUsers) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, &shop.NotFoundError{Kind: "user"}
}

func (m *MemoryUsers) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return User{}, ErrDuplicateUsername
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryUsers) UpdateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return UserNotFound(u.ID)
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryUsers) DeleteUser(_ context.Context, id shop.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return UserNotFound(id)
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryUsers) ListUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryUsers) CountActiveAdmins(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.Active && u.Role == shop.RoleAdmin {
			n++
		}
	}
	return n, nil
}
