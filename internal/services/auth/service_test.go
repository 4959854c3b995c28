package auth

import (
	"path/filepath"
	"testing"
	"time"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuth(t *testing.T, ttl time.Duration) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "auth.sqlite")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Session{}, &models.SME{}, &models.Lender{},
	))

	return NewService(repository.NewUserRepository(db), repository.NewSMERepository(db), ttl)
}

func TestLoginIssuesRevocableSession(t *testing.T) {
	svc := setupAuth(t, time.Hour)

	_, sme, err := svc.RegisterSME("ada@example.com", "s3cretpass", "Ada Textiles", "retail", "Lagos")
	require.NoError(t, err)

	token, user, err := svc.Login("ada@example.com", "s3cretpass", models.UserTypeSME)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, models.UserTypeSME, user.UserType)

	principal, err := svc.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, sme.ID, principal.ProfileID)

	// Logout kills the session server-side; the token itself is now dead.
	require.NoError(t, svc.Logout(token))
	_, err = svc.Authenticate(token)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := setupAuth(t, time.Hour)
	_, _, err := svc.RegisterSME("ada@example.com", "s3cretpass", "Ada Textiles", "retail", "Lagos")
	require.NoError(t, err)

	_, _, err = svc.Login("ada@example.com", "wrongpass", models.UserTypeSME)
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)

	_, _, err = svc.Login("nobody@example.com", "s3cretpass", models.UserTypeSME)
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestLoginWrongUserType(t *testing.T) {
	svc := setupAuth(t, time.Hour)
	_, _, err := svc.RegisterSME("ada@example.com", "s3cretpass", "Ada Textiles", "retail", "Lagos")
	require.NoError(t, err)

	// Right password, wrong declared kind: still invalid credentials.
	_, _, err = svc.Login("ada@example.com", "s3cretpass", models.UserTypeLender)
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc := setupAuth(t, -time.Minute)
	_, _, err := svc.RegisterLender("lender@example.com", "s3cretpass", "Lagos Capital")
	require.NoError(t, err)

	token, _, err := svc.Login("lender@example.com", "s3cretpass", models.UserTypeLender)
	require.NoError(t, err)

	_, err = svc.Authenticate(token)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestAuthenticateResolvesLenderProfile(t *testing.T) {
	svc := setupAuth(t, time.Hour)
	_, lender, err := svc.RegisterLender("lender@example.com", "s3cretpass", "Lagos Capital")
	require.NoError(t, err)

	token, _, err := svc.Login("lender@example.com", "s3cretpass", models.UserTypeLender)
	require.NoError(t, err)

	principal, err := svc.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, models.UserTypeLender, principal.UserType)
	require.Equal(t, lender.ID, principal.ProfileID)
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc := setupAuth(t, time.Hour)
	_, err := svc.Authenticate("")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
