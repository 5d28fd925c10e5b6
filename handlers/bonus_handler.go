package handlers

import (
	"net/http"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/gin-gonic/gin"
)

// BonusHandler serves bonus content redemption.
type BonusHandler struct {
	entitlements *services.EntitlementService
}

func NewBonusHandler(entitlements *services.EntitlementService) *BonusHandler {
	return &BonusHandler{entitlements: entitlements}
}

// Redeem handles GET /v1/bonus/:token. The token comes from the delivery
// email; a valid one resolves to a short-lived download URL.
func (h *BonusHandler) Redeem(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		_ = c.Error(apperrors.ValidationFailed("missing_token", "An access token is required"))
		return
	}

	redemption, err := h.entitlements.Redeem(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"asset":       redemption.Asset.Name,
		"slug":        redemption.Asset.Slug,
		"downloadUrl": redemption.DownloadURL,
		"expiresAt":   redemption.ExpiresAt,
	})
}
