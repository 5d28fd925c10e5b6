// Package handlers contains the HTTP layer. Handlers translate between the
// wire and the service layer and attach AppErrors for the error middleware.
package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/internal/upload"
	"github.com/bookbonus/bonus-backend/middleware"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/gin-gonic/gin"
)

// ReceiptHandler serves receipt submission and status endpoints.
type ReceiptHandler struct {
	receipts *services.ReceiptService
}

func NewReceiptHandler(receipts *services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// Submit handles POST /v1/receipts. The body is multipart form data carrying
// the document under "file" plus the declared purchase metadata.
func (h *ReceiptHandler) Submit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("missing_file", "A receipt file is required"))
		return
	}
	if fileHeader.Size > upload.MaxFileSize {
		_ = c.Error(apperrors.TooLarge(fileHeader.Size, upload.MaxFileSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("unreadable_file", "Could not read uploaded file"))
		return
	}
	defer file.Close()

	// One byte past the ceiling so oversized bodies are detected, not silently
	// truncated.
	fileBytes, err := io.ReadAll(io.LimitReader(file, upload.MaxFileSize+1))
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("unreadable_file", "Could not read uploaded file"))
		return
	}

	deliveryEmail := c.PostForm("delivery_email")
	if deliveryEmail == "" {
		_ = c.Error(apperrors.ValidationFailed("missing_delivery_email", "A delivery email is required"))
		return
	}
	retailer := c.PostForm("retailer")
	if retailer == "" {
		_ = c.Error(apperrors.ValidationFailed("missing_retailer", "The purchase retailer is required"))
		return
	}
	// The declared format is optional; fraud scoring falls back to the format
	// extracted from the receipt when it is absent.
	format := types.PurchaseFormat(c.PostForm("format"))
	if format != "" && !types.ValidFormat(format) {
		_ = c.Error(apperrors.ValidationFailed("invalid_format",
			"format must be one of hardcover, ebook, audiobook"))
		return
	}

	req := &types.SubmissionRequest{
		UserID:           c.GetString(middleware.UserIDKey),
		DeliveryEmail:    deliveryEmail,
		Retailer:         retailer,
		Format:           format,
		FileBytes:        fileBytes,
		DeclaredMimeType: fileHeader.Header.Get("Content-Type"),
		DeclaredFilename: fileHeader.Filename,
		SourceIP:         c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	}
	if orderNumber := c.PostForm("order_number"); orderNumber != "" {
		req.OrderNumber = &orderNumber
	}
	if dateStr := c.PostForm("purchase_date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			_ = c.Error(apperrors.ValidationFailed("invalid_purchase_date",
				"purchase_date must be YYYY-MM-DD"))
			return
		}
		req.PurchaseDate = &parsed
	}

	result, err := h.receipts.Submit(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// Get handles GET /v1/receipts/:id. Submitters see only their own receipts;
// reviewers see any.
func (h *ReceiptHandler) Get(c *gin.Context) {
	details, err := h.receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if !c.GetBool(middleware.ReviewerKey) &&
		details.Receipt.UserID != c.GetString(middleware.UserIDKey) {
		// Hide existence of other users' receipts.
		_ = c.Error(apperrors.NotFound("Receipt", c.Param("id")))
		return
	}

	c.JSON(http.StatusOK, details)
}

// ListPending handles GET /v1/review/receipts, the reviewer queue.
func (h *ReceiptHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	receipts, err := h.receipts.ListPendingReview(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if receipts == nil {
		receipts = []*types.Receipt{}
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// Reprocess handles POST /v1/review/receipts/:id/reprocess, queueing another
// verification attempt for a pending receipt.
func (h *ReceiptHandler) Reprocess(c *gin.Context) {
	if err := h.receipts.Reprocess(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
