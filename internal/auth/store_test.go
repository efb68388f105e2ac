// AngelaMos | 2026
// store_test.go

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*Account)}
}

func (s *memoryStore) add(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = &account
}

func (s *memoryStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

func (s *memoryStore) snapshot(id string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *memoryStore) setActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id].IsActive = active
}

func (s *memoryStore) FindByCredentials(
	_ context.Context,
	email, passwordHash string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == email && a.PasswordHash == passwordHash {
			found := *a
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *memoryStore) GetAccountByID(
	_ context.Context,
	id string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	found := *a
	return &found, nil
}

func (s *memoryStore) GetAccountByEmail(
	_ context.Context,
	email string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == email {
			found := *a
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *memoryStore) SetRefreshToken(
	_ context.Context,
	id, token string,
	expiry time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.RefreshToken = token
	a.RefreshTokenExpiry = expiry
	return nil
}

func (s *memoryStore) RotateRefreshToken(
	_ context.Context,
	id, oldToken, newToken string,
	newExpiry, now time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.RefreshToken != oldToken || !now.Before(a.RefreshTokenExpiry) {
		return false, nil
	}
	a.RefreshToken = newToken
	a.RefreshTokenExpiry = newExpiry
	return true, nil
}

func (s *memoryStore) ClearRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.RefreshToken = ""
	a.RefreshTokenExpiry = time.Unix(0, 0).UTC()
	return nil
}

func (s *memoryStore) IsAccountActive(
	_ context.Context,
	id string,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return false, core.ErrNotFound
	}
	return a.IsActive, nil
}
