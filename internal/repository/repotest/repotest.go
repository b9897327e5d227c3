// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/repository"
)

// ErrInjected is returned by a store whose Fail field is set.
var ErrInjected = errors.New("injected failure")

type Users struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
	Fail  bool
}

func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]domain.User)}
}

func (r *Users) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *Users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *Users) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == identifier || u.Email == identifier })
}

func (r *Users) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrInjected
	}
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, nil
}

type Dreams struct {
	mu     sync.Mutex
	dreams map[uuid.UUID]domain.Dream
	Fail   bool
}

func NewDreams() *Dreams {
	return &Dreams{dreams: make(map[uuid.UUID]domain.Dream)}
}

func (r *Dreams) Create(_ context.Context, dream *domain.Dream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	r.dreams[dream.ID] = *dream
	return nil
}

func (r *Dreams) GetByID(_ context.Context, id uuid.UUID) (*domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrInjected
	}
	d, ok := r.dreams[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *Dreams) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrInjected
	}
	out := []domain.Dream{}
	for _, d := range r.dreams {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Dreams) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	delete(r.dreams, id)
	return nil
}
