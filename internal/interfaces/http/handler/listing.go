package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/reseller/crosslist/internal/application/publishing"
	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

// ListingHandler serves the inventory and publishing endpoints
type ListingHandler struct {
	BaseHandler
	service *publishing.ListingService
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(service *publishing.ListingService) *ListingHandler {
	return &ListingHandler{service: service}
}

// Create stores a new draft listing
func (h *ListingHandler) Create(c *gin.Context) {
	var req dto.CreateListingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	l, err := h.service.CreateListing(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewListingResponse(l))
}

// List returns a page of listings
func (h *ListingHandler) List(c *gin.Context) {
	var req dto.ListListingsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	filter := req.ToFilter()
	listings, total, err := h.service.ListListings(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]dto.ListingResponse, len(listings))
	for i := range listings {
		items[i] = dto.NewListingResponse(&listings[i])
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	h.SuccessWithMeta(c, items, total, page, filter.Limit())
}

// Get returns one listing
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}

	l, err := h.service.GetListing(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewListingResponse(l))
}

// Publish fans the listing out to the requested platforms, or to every
// configured platform when the body is empty
func (h *ListingHandler) Publish(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}

	var req dto.PublishRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	platforms := make([]listing.Platform, 0, len(req.Platforms))
	for _, s := range req.Platforms {
		platforms = append(platforms, listing.Platform(s))
	}

	outcome, err := h.service.PublishListing(c.Request.Context(), id, platforms)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPublishResponse(outcome))
}

// Links returns the listing's per-platform state
func (h *ListingHandler) Links(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}

	links, err := h.service.Links(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLinkResponses(links))
}

// Preview validates and maps the listing for one platform without
// publishing it
func (h *ListingHandler) Preview(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}
	p, err := listing.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), id, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPreviewResponse(preview))
}

// SyncLog returns the listing's audit trail
func (h *ListingHandler) SyncLog(c *gin.Context) {
	id, ok := h.listingID(c)
	if !ok {
		return
	}

	entries, err := h.service.SyncLog(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSyncLogResponses(entries))
}

// RetryFailed re-publishes failed links that still have retry budget
func (h *ListingHandler) RetryFailed(c *gin.Context) {
	report, err := h.service.RetryFailedPosts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
}

// SuccessRate returns the publish success rate, across all platforms or
// for the one named by ?platform=
func (h *ListingHandler) SuccessRate(c *gin.Context) {
	var platform *listing.Platform
	if raw := c.Query("platform"); raw != "" {
		p, err := listing.ParsePlatform(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		platform = &p
	}

	rate, err := h.service.SuccessRate(c.Request.Context(), platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSuccessRateResponse(rate))
}

// Platforms lists every supported platform and whether it is configured
func (h *ListingHandler) Platforms(c *gin.Context) {
	h.Success(c, dto.NewPlatformResponses(h.service.Platforms()))
}
