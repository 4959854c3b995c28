package handlers

import (
	"errors"
	"net/http"
	"strings"

	"trust-verification-backend/internal/errs"
	"trust-verification-backend/internal/services/auth"
	"trust-verification-backend/internal/services/marketplace"
	"trust-verification-backend/internal/services/verification"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// RequireRole authenticates the bearer token and enforces the principal
// kind for the route group. Lender routes never execute for SME sessions
// and vice versa.
func RequireRole(authSvc *auth.Service, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		principal, err := authSvc.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		if principal.UserType != userType {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden for this user type"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) *auth.Principal {
	v, _ := c.Get(principalKey)
	principal, _ := v.(*auth.Principal)
	return principal
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is a 500 with a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials or user type"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrDuplicateEvidence), errors.Is(err, verification.ErrAlreadyVerified):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrInvalidEvidence), errors.Is(err, marketplace.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
