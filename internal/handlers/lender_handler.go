package handlers

import (
	"net/http"
	"strconv"

	"trust-verification-backend/internal/services/marketplace"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LenderHandler struct {
	marketplace *marketplace.Service
}

func NewLenderHandler(marketplaceSvc *marketplace.Service) *LenderHandler {
	return &LenderHandler{marketplace: marketplaceSvc}
}

// recognizedQueryKeys enumerates what Marketplace accepts; anything else in
// the query string is rejected rather than silently ignored.
var recognizedQueryKeys = map[string]bool{
	"industry":         true,
	"location":         true,
	"min_profit_score": true,
	"page":             true,
	"per_page":         true,
}

func (h *LenderHandler) Marketplace(c *gin.Context) {
	for key := range c.Request.URL.Query() {
		if !recognizedQueryKeys[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown filter: " + key})
			return
		}
	}

	filters := marketplace.Filters{
		Industry: c.Query("industry"),
		Location: c.Query("location"),
	}
	if raw := c.Query("min_profit_score"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_profit_score must be a number"})
			return
		}
		filters.MinProfitScore = &minScore
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
		return
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(marketplace.DefaultPageSize)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "per_page must be a number"})
		return
	}

	result, err := h.marketplace.Query(filters, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"smes":       result.Items,
		"pagination": gin.H{"page": result.Page, "per_page": result.PerPage, "total": result.Total, "total_pages": result.TotalPages},
		"filters":    h.marketplace.FilterOptions(),
	})
}

func (h *LenderHandler) MarketplaceDetail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid SME ID"})
		return
	}

	row, err := h.marketplace.Detail(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sme": row})
}
