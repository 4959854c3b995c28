package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Principal is an authenticated caller: exactly one user type, plus the
// profile id that type owns (SME id for SMEs, lender id for lenders).
type Principal struct {
	UserID    uuid.UUID
	UserType  string
	ProfileID uuid.UUID
}

type Service struct {
	users      *repository.UserRepository
	smes       *repository.SMERepository
	sessionTTL time.Duration
}

func NewService(users *repository.UserRepository, smes *repository.SMERepository, sessionTTL time.Duration) *Service {
	return &Service{users: users, smes: smes, sessionTTL: sessionTTL}
}

// RegisterSME creates an SME user and its initial business profile in
// pending status with no scores.
func (s *Service) RegisterSME(email, password, businessName, industry, location string) (*models.User, *models.SME, error) {
	user, err := s.createUser(email, password, models.UserTypeSME)
	if err != nil {
		return nil, nil, err
	}
	sme := &models.SME{
		ID:           uuid.New(),
		UserID:       user.ID,
		BusinessName: businessName,
		Industry:     industry,
		Location:     location,
		Status:       models.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.smes.Create(sme); err != nil {
		return nil, nil, errs.Wrap(err, "create sme profile")
	}
	return user, sme, nil
}

func (s *Service) RegisterLender(email, password, company string) (*models.User, *models.Lender, error) {
	user, err := s.createUser(email, password, models.UserTypeLender)
	if err != nil {
		return nil, nil, err
	}
	lender := &models.Lender{
		ID:        uuid.New(),
		UserID:    user.ID,
		Company:   company,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateLender(lender); err != nil {
		return nil, nil, errs.Wrap(err, "create lender profile")
	}
	return user, lender, nil
}

func (s *Service) createUser(email, password, userType string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(err, "hash password")
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		UserType:     userType,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(user); err != nil {
		return nil, errs.Wrap(err, "create user")
	}
	return user, nil
}

// Login authenticates email+password for the declared user type and issues
// an opaque server-side session token. A correct password with the wrong
// user type is still InvalidCredentials; the caller learns nothing about
// which part failed.
func (s *Service) Login(email, password, userType string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", nil, errs.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.UserType != userType {
		return "", nil, errs.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, errs.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		UserType:  user.UserType,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateSession(session); err != nil {
		return "", nil, errs.Wrap(err, "store session")
	}
	return token, user, nil
}

// Logout revokes the session server-side. A revoked token is dead even if
// the client keeps a copy.
func (s *Service) Logout(token string) error {
	return s.users.RevokeSession(token)
}

// Authenticate resolves a bearer token to a principal. Expired or revoked
// sessions are Unauthorized.
func (s *Service) Authenticate(token string) (*Principal, error) {
	if token == "" {
		return nil, errs.Wrap(errs.ErrUnauthorized, "missing token")
	}
	session, err := s.users.GetActiveSession(token, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	principal := &Principal{UserID: session.UserID, UserType: session.UserType}
	switch session.UserType {
	case models.UserTypeSME:
		sme, err := s.smes.GetByUserID(session.UserID)
		if err != nil {
			return nil, errs.Wrap(errs.ErrUnauthorized, "orphan sme session")
		}
		principal.ProfileID = sme.ID
	case models.UserTypeLender:
		lender, err := s.users.GetLenderByUserID(session.UserID)
		if err != nil {
			return nil, errs.Wrap(errs.ErrUnauthorized, "orphan lender session")
		}
		principal.ProfileID = lender.ID
	default:
		return nil, errs.Wrap(errs.ErrUnauthorized, "unknown principal kind")
	}
	return principal, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errs.Wrap(err, "generate token")
	}
	return hex.EncodeToString(buf), nil
}
