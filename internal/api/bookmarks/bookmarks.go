// Package bookmarks implements the bookmark endpoints.
package bookmarks

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/pinco/pinco-backend/internal/api/response"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

// BookmarkService is the bookmark behaviour the handlers need.
type BookmarkService interface {
	Add(ctx context.Context, actor policy.Actor, pinID int64) (*models.Bookmark, error)
	ListMine(ctx context.Context, actor policy.Actor) ([]models.Bookmark, error)
	Delete(ctx context.Context, actor policy.Actor, bookmarkID int64) error
	Restore(ctx context.Context, actor policy.Actor, bookmarkID int64) error
}

// Handlers serves bookmark creation under /api/pins and management under /api/bookmarks.
type Handlers struct {
	bookmarks BookmarkService
}

// NewHandlers creates the bookmark handlers.
func NewHandlers(bookmarks BookmarkService) *Handlers {
	return &Handlers{bookmarks: bookmarks}
}

// @Summary      Bookmark pin
// @Tags         Bookmarks
// @Security     Bearer
// @Produce      json
// @Param        pinId  path  int  true  "Pin ID"
// @Success      200  {object}  response.Body  "data: models.Bookmark"
// @Failure      404  {object}  response.Body  "PIN_NOT_FOUND / BOOKMARK_INVALID_USER_INPUT"
// @Failure      409  {object}  response.Body  "BOOKMARK_ALREADY_EXISTS"
// @Router       /api/pins/{pinId}/bookmarks [post]
func (h *Handlers) Add(c *gin.Context) {
	pinID, ok := response.PathID(c, "pinId")
	if !ok {
		return
	}
	bookmark, err := h.bookmarks.Add(c.Request.Context(), middleware.ActorFrom(c), pinID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bookmark)
}

// ListMine returns the caller's active bookmarks with their pins.
// GET /api/bookmarks
func (h *Handlers) ListMine(c *gin.Context) {
	list, err := h.bookmarks.ListMine(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"bookmarkList": list})
}

// Delete soft-deletes a bookmark. Bookmarks of other users answer BOOKMARK_NOT_FOUND.
// DELETE /api/bookmarks/:bookmarkId
func (h *Handlers) Delete(c *gin.Context) {
	h.transition(c, "delete", h.bookmarks.Delete, "Bookmark deleted.")
}

// Restore reactivates a bookmark.
// PATCH /api/bookmarks/:bookmarkId
func (h *Handlers) Restore(c *gin.Context) {
	h.transition(c, "restore", h.bookmarks.Restore, "Bookmark restored.")
}

func (h *Handlers) transition(c *gin.Context, name string,
	fn func(context.Context, policy.Actor, int64) error, msg string) {
	id, ok := response.PathID(c, "bookmarkId")
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	telemetry.SoftDeleteTransitionsTotal.WithLabelValues("bookmark", name).Inc()
	response.OKWithMessage(c, msg, gin.H{"bookmarkId": id})
}

// Register mounts the handlers. pins is the /api/pins group, group the /api/bookmarks group.
func (h *Handlers) Register(pins, group *gin.RouterGroup) {
	pins.POST("/:pinId/bookmarks", h.Add)
	group.GET("", h.ListMine)
	group.DELETE("/:bookmarkId", h.Delete)
	group.PATCH("/:bookmarkId", h.Restore)
}
