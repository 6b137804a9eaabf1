package policy

import (
	"context"

	"github.com/pinco/pinco-backend/internal/apperr"
)

// SoftDeletable is a row with an owner and a deleted flag.
type SoftDeletable interface {
	OwnerID() int64
	IsDeleted() bool
}

// Persist writes the new deleted flag of an entity.
type Persist func(ctx context.Context, deleted bool) error

// Lifecycle is the Active/Deleted state machine of one resource type.
type Lifecycle struct {
	NotFound      apperr.Code
	Conflict      apperr.Code
	DeleteFailed  apperr.Code
	RestoreFailed apperr.Code
	// RequireDeletedOnRestore rejects restoring an Active entity with Conflict.
	RequireDeletedOnRestore bool
}

var (
	// BookmarkLifecycle: delete and restore apply unconditionally for the owner.
	BookmarkLifecycle = Lifecycle{
		NotFound:      apperr.BookmarkNotFound,
		DeleteFailed:  apperr.BookmarkDeleteFailed,
		RestoreFailed: apperr.BookmarkRestoreFailed,
	}

	// PinTagLifecycle: the owner is the pin's owner; restoring an active link conflicts.
	PinTagLifecycle = Lifecycle{
		NotFound:                apperr.TagLinkNotFound,
		Conflict:                apperr.TagAlreadyLinked,
		DeleteFailed:            apperr.PinTagDeleteFailed,
		RestoreFailed:           apperr.PinTagRestoreFailed,
		RequireDeletedOnRestore: true,
	}
)

// Delete moves entity to Deleted. A nil entity or a non-owner gets the NotFound code, so the
// existence of another user's row is never revealed. There is no state pre-check.
func (l Lifecycle) Delete(ctx context.Context, entity SoftDeletable, actor Actor, persist Persist) error {
	if entity == nil || !CanMutate(actor, entity.OwnerID()) {
		return apperr.New(l.NotFound)
	}
	if err := persist(ctx, true); err != nil {
		return apperr.Wrap(l.DeleteFailed, err)
	}
	return nil
}

// Restore moves entity back to Active.
func (l Lifecycle) Restore(ctx context.Context, entity SoftDeletable, actor Actor, persist Persist) error {
	if entity == nil || !CanMutate(actor, entity.OwnerID()) {
		return apperr.New(l.NotFound)
	}
	if l.RequireDeletedOnRestore && !entity.IsDeleted() {
		return apperr.New(l.Conflict)
	}
	if err := persist(ctx, false); err != nil {
		return apperr.Wrap(l.RestoreFailed, err)
	}
	return nil
}
