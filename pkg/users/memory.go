// pkg/users/memory.go
package users

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	byName map[string]User
	byID   map[int64]User
	nextID int64
}

// NewMemoryStoreFromEnv builds an in-memory credential store for dev. Seed
// entries come from USER_SEED_JSON ([{"username","password","role"}, ...]);
// without a seed it creates the conventional admin/admin account.
func NewMemoryStoreFromEnv(log *zap.SugaredLogger) Store {
	s := &memStore{log: log, byName: map[string]User{}, byID: map[int64]User{}}
	seed := os.Getenv("USER_SEED_JSON")
	if seed != "" {
		var entries []struct {
			Username, Password, Role string
		}
		_ = json.Unmarshal([]byte(seed), &entries)
		for _, e := range entries {
			if _, err := s.add(e.Username, mustHash(e.Password), e.Role); err != nil {
				log.Warnw("seed user skipped", "username", e.Username, "err", err)
			}
		}
	} else {
		_, _ = s.add("admin", mustHash("admin"), "Admin")
		log.Infow("seeded admin user (admin/admin)")
	}
	return s
}

func (s *memStore) add(username, hash, role string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return User{}, ErrDuplicate
	}
	s.nextID++
	u := User{ID: s.nextID, Username: username, PasswordHash: hash, Role: role}
	s.byName[username] = u
	s.byID[u.ID] = u
	return u, nil
}

func (s *memStore) FindByUsername(ctx context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byName[username]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (s *memStore) FindByID(ctx context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (s *memStore) Create(ctx context.Context, username, passwordHash, role string) (User, error) {
	return s.add(username, passwordHash, role)
}

func mustHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}
