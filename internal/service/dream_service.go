package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/repository"
)

var (
	ErrDreamNotFound  = errors.New("dream not found")
	ErrNotDreamOwner  = errors.New("only the dream's author can perform this action")
	ErrEmptyContent   = errors.New("dream content is required")
	ErrContentTooLong = errors.New("dream content is too long")
)

// Notifier pushes dream changes to the owner's live connections.
type Notifier interface {
	NotifyDreamCreated(dream *domain.Dream)
	NotifyDreamDeleted(userID, dreamID uuid.UUID)
}

type DreamService struct {
	dreamRepo repository.DreamRepository
	userRepo  repository.UserRepository
	notifier  Notifier
	now       func() time.Time
}

func NewDreamService(dreamRepo repository.DreamRepository, userRepo repository.UserRepository) *DreamService {
	return &DreamService{
		dreamRepo: dreamRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *DreamService) SetNotifier(n Notifier) {
	s.notifier = n
}

type CreateDreamInput struct {
	Content string     `json:"content"`
	UserID  *uuid.UUID `json:"userId,omitempty"`
}

func (s *DreamService) Create(ctx context.Context, userID uuid.UUID, content string) (*domain.Dream, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > domain.MaxDreamLength {
		return nil, ErrContentTooLong
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	dream := &domain.Dream{
		ID:        uuid.New(),
		Content:   content,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.dreamRepo.Create(ctx, dream); err != nil {
		return nil, fmt.Errorf("creating dream: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyDreamCreated(dream)
	}

	return dream, nil
}

// List returns ownerID's dreams, newest first. Only the owner may list them.
func (s *DreamService) List(ctx context.Context, requesterID, ownerID uuid.UUID) ([]domain.Dream, error) {
	if requesterID != ownerID {
		return nil, ErrNotDreamOwner
	}

	dreams, err := s.dreamRepo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing dreams: %w", err)
	}
	if dreams == nil {
		dreams = []domain.Dream{}
	}
	return dreams, nil
}

func (s *DreamService) Delete(ctx context.Context, requesterID, dreamID uuid.UUID) error {
	dream, err := s.dreamRepo.GetByID(ctx, dreamID)
	if err != nil {
		return err
	}
	if dream == nil {
		return ErrDreamNotFound
	}
	if dream.UserID != requesterID {
		return ErrNotDreamOwner
	}

	if err := s.dreamRepo.Delete(ctx, dreamID); err != nil {
		return fmt.Errorf("deleting dream: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyDreamDeleted(dream.UserID, dreamID)
	}

	return nil
}
