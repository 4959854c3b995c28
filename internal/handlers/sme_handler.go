package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"trust-verification-backend/internal/models"
	"trust-verification-backend/internal/repository"
	"trust-verification-backend/internal/services/verification"

	"github.com/gin-gonic/gin"
)

type SMEHandler struct {
	verification *verification.Service
	smeRepo      *repository.SMERepository
}

func NewSMEHandler(verificationSvc *verification.Service, smeRepo *repository.SMERepository) *SMEHandler {
	return &SMEHandler{verification: verificationSvc, smeRepo: smeRepo}
}

// UpdateProfile saves the stated-truth fields. Profile edits never touch
// verification state; only evidence does.
func (h *SMEHandler) UpdateProfile(c *gin.Context) {
	principal := currentPrincipal(c)

	var payload struct {
		BusinessName string `json:"business_name"`
		Industry     string `json:"industry"`
		Location     string `json:"location"`
		Description  string `json:"description"`
		FoundedDate  string `json:"founded_date"` // "2006-01-02"
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

	sme, err := h.smeRepo.GetByID(principal.ProfileID)
	if err != nil {
		respondError(c, err)
		return
	}
	if payload.BusinessName != "" {
		sme.BusinessName = payload.BusinessName
	}
	if payload.Industry != "" {
		sme.Industry = payload.Industry
	}
	if payload.Location != "" {
		sme.Location = payload.Location
	}
	if payload.Description != "" {
		sme.Description = payload.Description
	}
	if payload.FoundedDate != "" {
		founded, err := time.Parse("2006-01-02", payload.FoundedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid founded_date, expected yyyy-mm-dd"})
			return
		}
		sme.FoundedDate = &founded
	}
	if err := h.smeRepo.Save(sme); err != nil {
		respondError(c, err)
		return
	}
	// A verified SME's published row must keep tracking the record.
	if err := h.verification.RepublishProfile(sme.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile saved", "sme": sme})
}

func (h *SMEHandler) GetProfile(c *gin.Context) {
	principal := currentPrincipal(c)
	sme, err := h.smeRepo.GetByID(principal.ProfileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sme": sme})
}

func (h *SMEHandler) UploadCAC(c *gin.Context) {
	h.uploadEvidence(c, "file", models.EvidenceKindDocument)
}

func (h *SMEHandler) UploadVideo(c *gin.Context) {
	h.uploadEvidence(c, "video", models.EvidenceKindVideo)
}

func (h *SMEHandler) uploadEvidence(c *gin.Context, field, kind string) {
	principal := currentPrincipal(c)

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " required"})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	item, err := h.verification.SubmitEvidence(principal.ProfileID, kind, payload, map[string]any{
		"file_name": header.Filename,
		"file_size": header.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "evidence accepted for review",
		"evidence": item,
	})
}

func (h *SMEHandler) ConnectAccount(c *gin.Context) {
	principal := currentPrincipal(c)

	var payload struct {
		LinkedAccountToken string `json:"linked_account_token" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "linked_account_token required"})
		return
	}

	item, err := h.verification.ConnectAccount(c.Request.Context(), principal.ProfileID, payload.LinkedAccountToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "bank account linked, ingesting history",
		"evidence": item,
	})
}

// Reverify opens a fresh cycle after a failed verification.
func (h *SMEHandler) Reverify(c *gin.Context) {
	principal := currentPrincipal(c)
	if err := h.verification.Reopen(principal.ProfileID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "new verification cycle opened"})
}

// Dashboard shows the owner's full record, pending scores included. The
// owner always sees more than the marketplace exposes to lenders.
func (h *SMEHandler) Dashboard(c *gin.Context) {
	principal := currentPrincipal(c)

	sme, err := h.smeRepo.GetByID(principal.ProfileID)
	if err != nil {
		respondError(c, err)
		return
	}
	items, err := h.verification.EvidenceHistory(sme.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	steps := map[string]bool{}
	for _, kind := range models.RequiredEvidenceKinds {
		steps[kind] = false
	}
	for _, item := range items {
		if item.Outcome == models.EvidenceAccepted {
			steps[item.Kind] = true
		}
	}

	var breakdown map[string]int
	if len(sme.ScoreBreakdown) > 0 {
		_ = json.Unmarshal(sme.ScoreBreakdown, &breakdown)
	}

	c.JSON(http.StatusOK, gin.H{
		"sme":                sme,
		"verification_steps": steps,
		"score_breakdown":    breakdown,
		"evidence":           items,
	})
}
