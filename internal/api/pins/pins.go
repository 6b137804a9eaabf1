// Package pins implements the pin and like endpoints under /api/pins.
package pins

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/pinco/pinco-backend/internal/api/response"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/services"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

// PinService is the pin behaviour the handlers need.
type PinService interface {
	Create(ctx context.Context, actor policy.Actor, in services.CreatePinInput) (*models.Pin, error)
	Get(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error)
	ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error)
	ListWithinRadius(ctx context.Context, actor policy.Actor, lat, lon, radiusMeters float64) ([]models.Pin, error)
	ListWithinBounds(ctx context.Context, actor policy.Actor, b models.Bounds) ([]models.Pin, error)
	ListByAuthor(ctx context.Context, actor policy.Actor, authorID int64) ([]models.Pin, error)
	ListByAuthorMonth(ctx context.Context, actor policy.Actor, authorID int64, year, month int) ([]models.Pin, error)
	UpdateContent(ctx context.Context, actor policy.Actor, id int64, content string) (*models.Pin, error)
	TogglePublic(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error)
	Delete(ctx context.Context, actor policy.Actor, id int64) error
	Restore(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error)
}

// LikeService is the like behaviour the handlers need.
type LikeService interface {
	LikeOn(ctx context.Context, actor policy.Actor, pinID int64) (*services.LikeStatus, error)
	LikeOff(ctx context.Context, actor policy.Actor, pinID int64) (*services.LikeStatus, error)
	UsersWhoLiked(ctx context.Context, actor policy.Actor, pinID int64) ([]models.UserSummary, error)
}

// Handlers serves /api/pins.
type Handlers struct {
	pins  PinService
	likes LikeService
}

// NewHandlers creates the pin handlers.
func NewHandlers(pins PinService, likes LikeService) *Handlers {
	return &Handlers{pins: pins, likes: likes}
}

type createPinRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
	Content   string   `json:"content" binding:"required"`
	IsPublic  *bool    `json:"isPublic"`
}

type updateContentRequest struct {
	Content string `json:"content" binding:"required"`
}

type radiusQuery struct {
	Latitude  *float64 `form:"latitude" binding:"required,latitude"`
	Longitude *float64 `form:"longitude" binding:"required,longitude"`
	Radius    float64  `form:"radius" binding:"omitempty,gt=0"`
}

type boundsQuery struct {
	MinLat float64 `form:"minLat" binding:"latitude"`
	MinLon float64 `form:"minLon" binding:"longitude"`
	MaxLat float64 `form:"maxLat" binding:"latitude"`
	MaxLon float64 `form:"maxLon" binding:"longitude"`
}

type monthQuery struct {
	Year  int `form:"year" binding:"required"`
	Month int `form:"month" binding:"required"`
}

// @Summary      Create pin
// @Tags         Pins
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Body  "data: models.Pin"
// @Failure      400  {object}  response.Body  "INVALID_PIN_LATITUDE / INVALID_PIN_LONGITUDE / INVALID_PIN_CONTENT"
// @Failure      401  {object}  response.Body  "AUTH_REQUIRED"
// @Router       /api/pins [post]
func (h *Handlers) Create(c *gin.Context) {
	var req createPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	pin, err := h.pins.Create(c.Request.Context(), middleware.ActorFrom(c), services.CreatePinInput{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Content:   req.Content,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	telemetry.PinsCreatedTotal.Inc()
	response.OK(c, pin)
}

// @Summary      Get pin
// @Tags         Pins
// @Produce      json
// @Param        pinId  path  int  true  "Pin ID"
// @Success      200  {object}  response.Body  "data: models.Pin"
// @Failure      404  {object}  response.Body  "PIN_NOT_FOUND"
// @Router       /api/pins/{pinId} [get]
func (h *Handlers) Get(c *gin.Context) {
	id, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	pin, err := h.pins.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pin)
}

// ListAll returns every pin the caller may see.
// GET /api/pins/all
func (h *Handlers) ListAll(c *gin.Context) {
	pins, err := h.pins.ListAll(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// ListWithinRadius returns visible pins around a point; radius defaults to 1000 m.
// GET /api/pins?latitude=..&longitude=..&radius=..
func (h *Handlers) ListWithinRadius(c *gin.Context) {
	var q radiusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, err)
		return
	}
	pins, err := h.pins.ListWithinRadius(c.Request.Context(), middleware.ActorFrom(c), *q.Latitude, *q.Longitude, q.Radius)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// ListWithinBounds returns visible pins inside a map viewport.
// GET /api/pins/bounds?minLat=..&minLon=..&maxLat=..&maxLon=..
func (h *Handlers) ListWithinBounds(c *gin.Context) {
	var q boundsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, err)
		return
	}
	pins, err := h.pins.ListWithinBounds(c.Request.Context(), middleware.ActorFrom(c), models.Bounds{
		MinLat: q.MinLat, MinLon: q.MinLon, MaxLat: q.MaxLat, MaxLon: q.MaxLon,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// ListByAuthor returns the author's pins visible to the caller.
// GET /api/pins/user/:userId
func (h *Handlers) ListByAuthor(c *gin.Context) {
	authorID, ok := response.PathID(c, "userId")
	if !ok {
		return
	}
	pins, err := h.pins.ListByAuthor(c.Request.Context(), middleware.ActorFrom(c), authorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// ListByAuthorMonth narrows ListByAuthor to one calendar month.
// GET /api/pins/user/:userId/date?year=..&month=..
func (h *Handlers) ListByAuthorMonth(c *gin.Context) {
	authorID, ok := response.PathID(c, "userId")
	if !ok {
		return
	}
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, err)
		return
	}
	pins, err := h.pins.ListByAuthorMonth(c.Request.Context(), middleware.ActorFrom(c), authorID, q.Year, q.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// @Summary      Update pin content
// @Tags         Pins
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        pinId  path  int  true  "Pin ID"
// @Success      200  {object}  response.Body  "data: models.Pin"
// @Failure      403  {object}  response.Body  "PIN_NO_PERMISSION"
// @Failure      404  {object}  response.Body  "PIN_NOT_FOUND"
// @Router       /api/pins/{pinId} [put]
func (h *Handlers) UpdateContent(c *gin.Context) {
	id, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	var req updateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	pin, err := h.pins.UpdateContent(c.Request.Context(), middleware.ActorFrom(c), id, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pin)
}

// TogglePublic flips the visibility of the caller's pin.
// PUT /api/pins/:pinId/public
func (h *Handlers) TogglePublic(c *gin.Context) {
	id, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	pin, err := h.pins.TogglePublic(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pin)
}

// Delete soft-deletes the caller's pin.
// DELETE /api/pins/:pinId
func (h *Handlers) Delete(c *gin.Context) {
	id, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	if err := h.pins.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	telemetry.SoftDeleteTransitionsTotal.WithLabelValues("pin", "delete").Inc()
	response.OKWithMessage(c, "Pin deleted.", gin.H{"pinId": id})
}

// Restore undeletes the caller's pin.
// PATCH /api/pins/:pinId/restore
func (h *Handlers) Restore(c *gin.Context) {
	id, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	pin, err := h.pins.Restore(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	telemetry.SoftDeleteTransitionsTotal.WithLabelValues("pin", "restore").Inc()
	response.OK(c, pin)
}

// LikeOn likes a pin as the authenticated user.
// POST /api/pins/:pinId/likes
func (h *Handlers) LikeOn(c *gin.Context) {
	h.toggleLike(c, "on", h.likes.LikeOn)
}

// LikeOff withdraws the authenticated user's like.
// DELETE /api/pins/:pinId/likes
func (h *Handlers) LikeOff(c *gin.Context) {
	h.toggleLike(c, "off", h.likes.LikeOff)
}

func (h *Handlers) toggleLike(c *gin.Context, action string,
	fn func(context.Context, policy.Actor, int64) (*services.LikeStatus, error)) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	status, err := fn(c.Request.Context(), policy.UserActor(principal.ID), pinID)
	if err != nil {
		response.Error(c, err)
		return
	}
	telemetry.LikeTogglesTotal.WithLabelValues(action).Inc()
	response.OK(c, status)
}

// UsersWhoLiked lists the users who liked a pin the caller may see.
// GET /api/pins/:pinId/likesusers
func (h *Handlers) UsersWhoLiked(c *gin.Context) {
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	users, err := h.likes.UsersWhoLiked(c.Request.Context(), middleware.ActorFrom(c), pinID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, users)
}

// Register mounts the handlers on the /api/pins group.
func (h *Handlers) Register(g *gin.RouterGroup) {
	g.POST("", h.Create)
	g.GET("", h.ListWithinRadius)
	g.GET("/all", h.ListAll)
	g.GET("/bounds", h.ListWithinBounds)
	g.GET("/user/:userId", h.ListByAuthor)
	g.GET("/user/:userId/date", h.ListByAuthorMonth)
	g.GET("/:pinId", h.Get)
	g.PUT("/:pinId", h.UpdateContent)
	g.PUT("/:pinId/public", h.TogglePublic)
	g.DELETE("/:pinId", h.Delete)
	g.PATCH("/:pinId/restore", h.Restore)
	g.POST("/:pinId/likes", h.LikeOn)
	g.DELETE("/:pinId/likes", h.LikeOff)
	g.GET("/:pinId/likesusers", h.UsersWhoLiked)
}
