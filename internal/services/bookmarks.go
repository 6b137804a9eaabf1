package services

import (
	"context"
	"errors"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/policy"
)

// BookmarkService manages a user's saved pins.
type BookmarkService struct {
	bookmarks BookmarkStore
	pins      PinStore
	users     UserStore
	tx        db.TxRunner
}

// NewBookmarkService creates a BookmarkService.
func NewBookmarkService(bookmarks BookmarkStore, pins PinStore, users UserStore, tx db.TxRunner) *BookmarkService {
	return &BookmarkService{bookmarks: bookmarks, pins: pins, users: users, tx: tx}
}

// Add bookmarks a pin the actor can see. A previously deleted bookmark is restored in place.
func (s *BookmarkService) Add(ctx context.Context, actor policy.Actor, pinID int64) (*models.Bookmark, error) {
	userID, err := s.requireUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	pin, err := s.pins.GetVisible(ctx, pinID, actor)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return nil, apperr.New(apperr.PinNotFound)
	}

	var bookmark *models.Bookmark
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.bookmarks.GetByUserAndPin(ctx, userID, pinID)
		if err != nil {
			return apperr.Wrap(apperr.BookmarkCreateFailed, err)
		}
		if existing != nil {
			if !existing.Deleted {
				return apperr.New(apperr.BookmarkAlreadyExists)
			}
			if err := s.bookmarks.SetDeleted(ctx, existing.ID, false); err != nil {
				return apperr.Wrap(apperr.BookmarkCreateFailed, err)
			}
			existing.Deleted = false
			bookmark = existing
			return nil
		}

		bookmark = &models.Bookmark{UserID: userID, PinID: pinID}
		if err := s.bookmarks.Create(ctx, bookmark); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return apperr.New(apperr.BookmarkAlreadyExists)
			}
			return apperr.Wrap(apperr.BookmarkCreateFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bookmark.Pin = pin
	return bookmark, nil
}

// ListMine returns the actor's active bookmarks whose pins are still active and visible.
func (s *BookmarkService) ListMine(ctx context.Context, actor policy.Actor) ([]models.Bookmark, error) {
	userID, err := s.requireUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.bookmarks.ListByUser(ctx, userID, actor)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if list == nil {
		list = []models.Bookmark{}
	}
	return list, nil
}

// Delete soft-deletes one of the actor's bookmarks.
func (s *BookmarkService) Delete(ctx context.Context, actor policy.Actor, bookmarkID int64) error {
	entity, err := s.load(ctx, bookmarkID)
	if err != nil {
		return err
	}
	return policy.BookmarkLifecycle.Delete(ctx, entity, actor, func(ctx context.Context, deleted bool) error {
		return s.bookmarks.SetDeleted(ctx, bookmarkID, deleted)
	})
}

// Restore reactivates one of the actor's bookmarks.
func (s *BookmarkService) Restore(ctx context.Context, actor policy.Actor, bookmarkID int64) error {
	if _, err := s.requireUser(ctx, actor); err != nil {
		return err
	}
	entity, err := s.load(ctx, bookmarkID)
	if err != nil {
		return err
	}
	return policy.BookmarkLifecycle.Restore(ctx, entity, actor, func(ctx context.Context, deleted bool) error {
		return s.bookmarks.SetDeleted(ctx, bookmarkID, deleted)
	})
}

// load returns the bookmark as a SoftDeletable, or an untyped nil when it does not exist.
func (s *BookmarkService) load(ctx context.Context, id int64) (policy.SoftDeletable, error) {
	b, err := s.bookmarks.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if b == nil {
		return nil, nil
	}
	return b, nil
}

func (s *BookmarkService) requireUser(ctx context.Context, actor policy.Actor) (int64, error) {
	userID, ok := actor.ID()
	if !ok {
		return 0, apperr.New(apperr.AuthRequired)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil {
		return 0, apperr.New(apperr.BookmarkInvalidUserInput)
	}
	return userID, nil
}
