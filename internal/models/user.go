package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	UserTypeSME    = "sme"
	UserTypeLender = "lender"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	UserType     string    `gorm:"index" json:"user_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is server-side session state. Logout revokes the row, so a
// compromised credential can be disabled immediately.
type Session struct {
	Token     string    `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	UserType  string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
