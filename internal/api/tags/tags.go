// Package tags implements the tag catalog under /api/tags and pin tagging under /api/pins/:pinId/tags.
package tags

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pinco/pinco-backend/internal/api/response"
	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

// TagService is the catalog behaviour the handlers need.
type TagService interface {
	AllTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, keyword string) (*models.Tag, error)
}

// PinTagService is the pin tagging behaviour the handlers need.
type PinTagService interface {
	AddTagToPin(ctx context.Context, actor policy.Actor, pinID int64, keyword string) (*models.PinTag, error)
	LinkTagsToPin(ctx context.Context, actor policy.Actor, pinID int64, keywords []string) ([]models.Tag, error)
	TagsByPin(ctx context.Context, actor policy.Actor, pinID int64) ([]models.Tag, error)
	RemoveTagFromPin(ctx context.Context, actor policy.Actor, pinID, tagID int64) error
	RestoreTagOnPin(ctx context.Context, actor policy.Actor, pinID, tagID int64) error
	PinsByTagKeywords(ctx context.Context, actor policy.Actor, keywords []string) ([]models.Pin, error)
}

type Handlers struct {
	tags    TagService
	pinTags PinTagService
}

func NewHandlers(tags TagService, pinTags PinTagService) *Handlers {
	return &Handlers{tags: tags, pinTags: pinTags}
}

type createTagRequest struct {
	Keyword string `json:"keyword"`
}

// tagPinRequest takes either a single keyword or a batch.
type tagPinRequest struct {
	Keyword  string   `json:"keyword"`
	Keywords []string `json:"keywords"`
}

// AllTags lists the tag catalog.
// GET /api/tags
func (h *Handlers) AllTags(c *gin.Context) {
	tags, err := h.tags.AllTags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tags)
}

// @Summary      Create tag
// @Tags         Tags
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Body  "data: models.Tag"
// @Failure      400  {object}  response.Body  "INVALID_TAG_KEYWORD"
// @Failure      409  {object}  response.Body  "TAG_ALREADY_EXISTS"
// @Router       /api/tags [post]
func (h *Handlers) CreateTag(c *gin.Context) {
	if _, ok := middleware.RequirePrincipal(c); !ok {
		return
	}
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	tag, err := h.tags.CreateTag(c.Request.Context(), req.Keyword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tag)
}

// PinsByTags returns the visible pins carrying every keyword. Keywords arrive comma separated,
// repeated, or both.
// GET /api/tags/filter?keywords=a,b
func (h *Handlers) PinsByTags(c *gin.Context) {
	var keywords []string
	for _, raw := range c.QueryArray("keywords") {
		keywords = append(keywords, strings.Split(raw, ",")...)
	}
	pins, err := h.pinTags.PinsByTagKeywords(c.Request.Context(), middleware.ActorFrom(c), keywords)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// @Summary      Tag pin
// @Description  Links one keyword ({"keyword"}) or several ({"keywords"}) to a pin owned by the caller.
// @Tags         Tags
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        pinId  path  int  true  "Pin ID"
// @Success      200  {object}  response.Body  "data: models.PinTag or []models.Tag"
// @Failure      404  {object}  response.Body  "TAG_PIN_NOT_FOUND"
// @Failure      409  {object}  response.Body  "TAG_ALREADY_LINKED"
// @Router       /api/pins/{pinId}/tags [post]
func (h *Handlers) AddTagToPin(c *gin.Context) {
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	var req tagPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	actor := middleware.ActorFrom(c)
	if len(req.Keywords) > 0 {
		linked, err := h.pinTags.LinkTagsToPin(c.Request.Context(), actor, pinID, req.Keywords)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, linked)
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		response.Abort(c, apperr.InvalidTagKeyword)
		return
	}
	link, err := h.pinTags.AddTagToPin(c.Request.Context(), actor, pinID, req.Keyword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// TagsByPin lists the active tags of a visible pin.
// GET /api/pins/:pinId/tags
func (h *Handlers) TagsByPin(c *gin.Context) {
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	tags, err := h.pinTags.TagsByPin(c.Request.Context(), middleware.ActorFrom(c), pinID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tags)
}

// RemoveTagFromPin soft-deletes a tag link.
// DELETE /api/pins/:pinId/tags/:tagId
func (h *Handlers) RemoveTagFromPin(c *gin.Context) {
	h.transition(c, "delete", h.pinTags.RemoveTagFromPin, "Tag removed.")
}

// RestoreTagOnPin reactivates a removed tag link.
// PATCH /api/pins/:pinId/tags/:tagId/restore
func (h *Handlers) RestoreTagOnPin(c *gin.Context) {
	h.transition(c, "restore", h.pinTags.RestoreTagOnPin, "Tag restored.")
}

func (h *Handlers) transition(c *gin.Context, name string,
	fn func(context.Context, policy.Actor, int64, int64) error, msg string) {
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	tagID, ok := response.PathID(c, "tagId")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), middleware.ActorFrom(c), pinID, tagID); err != nil {
		response.Error(c, err)
		return
	}
	telemetry.SoftDeleteTransitionsTotal.WithLabelValues("pin_tag", name).Inc()
	response.OKWithMessage(c, msg, gin.H{"pinId": pinID, "tagId": tagID})
}

// Register mounts the catalog on group (/api/tags) and pin tagging on pins (/api/pins).
func (h *Handlers) Register(group, pins *gin.RouterGroup) {
	group.GET("", h.AllTags)
	group.POST("", h.CreateTag)
	group.GET("/filter", h.PinsByTags)

	pins.POST("/:pinId/tags", h.AddTagToPin)
	pins.GET("/:pinId/tags", h.TagsByPin)
	pins.DELETE("/:pinId/tags/:tagId", h.RemoveTagFromPin)
	pins.PATCH("/:pinId/tags/:tagId/restore", h.RestoreTagOnPin)
}
