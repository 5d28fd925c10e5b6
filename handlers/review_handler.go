package handlers

import (
	"net/http"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/gin-gonic/gin"
)

// ReviewHandler serves the manual review endpoint.
type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Review handles POST /v1/review/receipts/:id, applying a reviewer verdict.
func (h *ReviewHandler) Review(c *gin.Context) {
	var req types.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid_request", err.Error()))
		return
	}

	receipt, err := h.reviews.Review(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}
