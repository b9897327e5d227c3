package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
	"gorm.io/gorm"
)

type DreamRepo struct {
	db *gorm.DB
}

func NewDreamRepo(db *gorm.DB) *DreamRepo {
	return &DreamRepo{db: db}
}

func (r *DreamRepo) Create(ctx context.Context, dream *domain.Dream) error {
	return r.db.WithContext(ctx).Omit("User").Create(dream).Error
}

func (r *DreamRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dream, error) {
	var d domain.Dream
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByUser returns the user's dreams, newest first.
func (r *DreamRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Dream, error) {
	dreams := []domain.Dream{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&dreams).Error
	if err != nil {
		return nil, err
	}
	return dreams, nil
}

func (r *DreamRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Dream{}).Error
}
