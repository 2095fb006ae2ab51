package cache

import (
	"context"
	"fmt"
	"sync"

	"go.pilab.hu/mockauth/domain"
)

// MemoryClientStore implements domain.ClientRepository with a mutex-guarded
// map. Clients are immutable after registration, so a copy-out is enough.
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

// NewMemoryClientStore creates an empty in-memory client store.
func NewMemoryClientStore() *MemoryClientStore {
	return &MemoryClientStore{clients: make(map[string]*domain.Client)}
}

// CreateClient implements domain.ClientRepository.
func (s *MemoryClientStore) CreateClient(_ context.Context, client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return fmt.Errorf("client %s already exists", client.ID)
	}

	stored := *client
	s.clients[client.ID] = &stored

	return nil
}

// GetClient implements domain.ClientRepository.
func (s *MemoryClientStore) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s not found", clientID)
	}

	found := *client
	return &found, nil
}

// MemoryUserStore implements domain.UserRepository with a mutex-guarded map.
// Updates replace the stored record wholesale; the login guard serializes
// its own read-modify-write cycles on top.
type MemoryUserStore struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
	}
}

// CreateUser implements domain.UserRepository.
func (s *MemoryUserStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return fmt.Errorf("username %s already taken", user.Username)
	}

	stored := *user
	s.users[user.ID] = &stored
	s.byUsername[user.Username] = user.ID

	return nil
}

// GetUserByID implements domain.UserRepository.
func (s *MemoryUserStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}

	found := *user
	return &found, nil
}

// GetUserByUsername implements domain.UserRepository.
func (s *MemoryUserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("user %s not found", username)
	}

	found := *s.users[id]
	return &found, nil
}

// UpdateUser implements domain.UserRepository.
func (s *MemoryUserStore) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}

	if existing.Username != user.Username {
		delete(s.byUsername, existing.Username)
		s.byUsername[user.Username] = user.ID
	}

	stored := *user
	s.users[user.ID] = &stored

	return nil
}

var (
	_ domain.ClientRepository = (*MemoryClientStore)(nil)
	_ domain.UserRepository   = (*MemoryUserStore)(nil)
)
