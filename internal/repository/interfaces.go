package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByIdentifier matches either the username or the email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
}

type DreamRepository interface {
	Create(ctx context.Context, dream *domain.Dream) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dream, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Dream, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
