package ads

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/adstore/internal/models"
	"github.com/aura-webinar/adstore/pkg/response"
)

// Events pushed to page clients.
const (
	EventAdsChanged = "ads_changed"
	EventAdChanged  = "ad_changed"
)

// Broadcaster pushes an event to connected page clients.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// CreateRequest is the body for POST /ads and POST /ads/draft.
type CreateRequest struct {
	Type    models.AdType  `json:"type"`
	Payload string         `json:"payload"`
	Meta    map[string]any `json:"meta"`
}

// SourceRequest is the body for POST /ads/source.
type SourceRequest struct {
	Type   models.AdType  `json:"type"`
	Source string         `json:"source"` // URL for image/video, text for text ads
	Meta   map[string]any `json:"meta"`
}

// Handler exposes the ad repository over HTTP.
type Handler struct {
	repo   *Repository
	hub    Broadcaster
	logger *zap.Logger
}

// NewHandler creates an ads handler. hub may be nil.
func NewHandler(repo *Repository, hub Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// List handles GET /ads.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.repo.Load(c.Request.Context()))
}

// Get handles GET /ads/:id.
func (h *Handler) Get(c *gin.Context) {
	if a, ok := find(h.repo.Load(c.Request.Context()), c.Param("id")); ok {
		response.OK(c, a)
		return
	}
	response.NotFound(c, "ad not found")
}

// Replace handles PUT /ads: the body replaces the whole collection.
func (h *Handler) Replace(c *gin.Context) {
	var ads []models.Ad
	if err := c.ShouldBindJSON(&ads); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx, failures := TrackFailures(c.Request.Context())
	h.repo.Save(ctx, ads)
	if !h.committed(c, failures) {
		return
	}
	h.notify(ctx)
	response.OK(c, h.repo.Load(ctx))
}

// Create handles POST /ads: builds an ad and appends it to the collection.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.appendAd(c, h.repo.Create(req.Type, req.Payload, req.Meta))
}

// CreateFromSource handles POST /ads/source.
func (h *Handler) CreateFromSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.appendAd(c, h.repo.CreateFromSource(req.Type, req.Source, req.Meta))
}

// Draft handles POST /ads/draft: returns a new ad without persisting it.
func (h *Handler) Draft(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	response.OK(c, h.repo.Create(req.Type, req.Payload, req.Meta))
}

// Update handles PATCH /ads/:id.
func (h *Handler) Update(c *gin.Context) {
	var patch models.AdPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id := c.Param("id")
	ctx, failures := TrackFailures(c.Request.Context())
	h.repo.Update(ctx, id, patch)
	if !h.committed(c, failures) {
		return
	}
	a, ok := find(h.repo.Load(ctx), id)
	if !ok {
		response.NotFound(c, "ad not found")
		return
	}
	h.notify(ctx)
	response.OK(c, a)
}

// Delete handles DELETE /ads/:id. Unknown ids still answer 204.
func (h *Handler) Delete(c *gin.Context) {
	ctx, failures := TrackFailures(c.Request.Context())
	h.repo.Delete(ctx, c.Param("id"))
	if !h.committed(c, failures) {
		return
	}
	h.notify(ctx)
	response.NoContent(c)
}

// ClearAll handles DELETE /ads (admin convenience).
func (h *Handler) ClearAll(c *gin.Context) {
	ctx, failures := TrackFailures(c.Request.Context())
	h.repo.ClearAll(ctx)
	if !h.committed(c, failures) {
		return
	}
	h.notify(ctx)
	response.NoContent(c)
}

func (h *Handler) appendAd(c *gin.Context, a models.Ad) {
	ctx, failures := TrackFailures(c.Request.Context())
	h.repo.Append(ctx, a)
	if !h.committed(c, failures) {
		return
	}
	h.notify(ctx)
	response.Created(c, a)
}

// committed writes a 503 and returns false when the store rejected a read or write.
func (h *Handler) committed(c *gin.Context, failures *Failures) bool {
	if err := failures.StorageErr(); err != nil {
		h.logger.Warn("ads request not persisted", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServiceUnavailable(c, "ad storage unavailable")
		return false
	}
	return true
}

func (h *Handler) notify(ctx context.Context) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(EventAdsChanged, h.repo.Load(ctx))
}

func find(ads []models.Ad, id string) (models.Ad, bool) {
	for _, a := range ads {
		if a.ID == id {
			return a, true
		}
	}
	return models.Ad{}, false
}

// Routes mounts the ad endpoints on rg. guard runs in front of every mutating route.
func (h *Handler) Routes(rg gin.IRouter, guard ...gin.HandlerFunc) {
	rg.GET("/ads", h.List)
	rg.GET("/ads/:id", h.Get)

	w := rg.Group("", guard...)
	{
		w.PUT("/ads", h.Replace)
		w.POST("/ads", h.Create)
		w.POST("/ads/source", h.CreateFromSource)
		w.POST("/ads/draft", h.Draft)
		w.PATCH("/ads/:id", h.Update)
		w.DELETE("/ads/:id", h.Delete)
		w.DELETE("/ads", h.ClearAll)
	}
}
