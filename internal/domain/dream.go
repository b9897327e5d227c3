package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxDreamLength is the longest dream content accepted, in characters.
const MaxDreamLength = 10000

type Dream struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
