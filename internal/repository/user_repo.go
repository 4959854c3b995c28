package repository

import (
	"errors"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(errs.ErrNotFound, "user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateLender(lender *models.Lender) error {
	return r.db.Create(lender).Error
}

func (r *UserRepository) GetLenderByUserID(userID uuid.UUID) (*models.Lender, error) {
	var lender models.Lender
	err := r.db.First(&lender, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(errs.ErrNotFound, "lender profile")
	}
	if err != nil {
		return nil, err
	}
	return &lender, nil
}

func (r *UserRepository) CreateSession(session *models.Session) error {
	return r.db.Create(session).Error
}

// GetActiveSession loads a session that is neither revoked nor expired.
func (r *UserRepository) GetActiveSession(token string, now time.Time) (*models.Session, error) {
	var session models.Session
	err := r.db.First(&session, "token = ? AND revoked = ? AND expires_at > ?", token, false, now).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Wrap(errs.ErrUnauthorized, "session")
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *UserRepository) RevokeSession(token string) error {
	return r.db.Model(&models.Session{}).Where("token = ?", token).Update("revoked", true).Error
}
