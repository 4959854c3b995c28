package handlers

import (
	"net/http"

	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/services/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authSvc}
}

func (h *AuthHandler) RegisterSME(c *gin.Context) {
	var payload struct {
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required,min=8"`
		BusinessName string `json:"business_name" binding:"required"`
		Industry     string `json:"industry"`
		Location     string `json:"location"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Industry != "" && !models.ValidIndustry(payload.Industry) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown industry"})
		return
	}
	if payload.Location != "" && !models.ValidLocation(payload.Location) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown location"})
		return
	}

	user, sme, err := h.auth.RegisterSME(payload.Email, payload.Password, payload.BusinessName, payload.Industry, payload.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "sme": sme})
}

func (h *AuthHandler) RegisterLender(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Company  string `json:"company"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	user, lender, err := h.auth.RegisterLender(payload.Email, payload.Password, payload.Company)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "lender": lender})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		UserType string `json:"user_type" binding:"required,oneof=sme lender"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	token, user, err := h.auth.Login(payload.Email, payload.Password, payload.UserType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"user":      user,
		"user_type": user.UserType,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	if err := h.auth.Logout(token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
