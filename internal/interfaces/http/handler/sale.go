package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reseller/crosslist/internal/application/reconciliation"
	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// SaleHandler serves sale signals and the notification feed
type SaleHandler struct {
	BaseHandler
	reconciler *reconciliation.Reconciler
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(reconciler *reconciliation.Reconciler) *SaleHandler {
	return &SaleHandler{reconciler: reconciler}
}

// MarkSold records a sale reported by a platform
func (h *SaleHandler) MarkSold(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}
	var req dto.MarkSoldRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := listing.ParsePlatform(req.Platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.reconciler.MarkSold(c.Request.Context(), reconciliation.MarkSoldRequest{
		ListingID: id,
		Platform:  p,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Fees:      req.Fees,
		SignalID:  req.SignalID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewMarkSoldResponse(result))
}

// Sales returns the sales recorded against a listing
func (h *SaleHandler) Sales(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}

	sales, err := h.reconciler.Sales(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]dto.SaleResponse, len(sales))
	for i := range sales {
		items[i] = dto.NewSaleResponse(&sales[i])
	}
	h.Success(c, items)
}

// Notifications returns unread notifications, newest first
func (h *SaleHandler) Notifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	notifications, err := h.reconciler.Notifications(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewNotificationResponses(notifications))
}

// MarkNotificationRead acknowledges a notification
func (h *SaleHandler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Invalid notification id")
		return
	}
	if err := h.reconciler.MarkNotificationRead(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
