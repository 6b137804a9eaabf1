package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/pinco/pinco-backend/internal/apperr"
)

type row struct {
	owner   int64
	deleted bool
}

func (r *row) OwnerID() int64  { return r.owner }
func (r *row) IsDeleted() bool { return r.deleted }

func persistInto(r *row) Persist {
	return func(_ context.Context, deleted bool) error {
		r.deleted = deleted
		return nil
	}
}

func failingPersist(context.Context, bool) error { return errors.New("db down") }

func codeOf(t *testing.T, err error) int {
	t.Helper()
	ae, ok := apperr.From(err)
	if !ok {
		t.Fatalf("error %v is not an apperr.Error", err)
	}
	return ae.Code.Num
}

// ---------------------------------------------------------------------------
// Bookmarks
// ---------------------------------------------------------------------------

func TestBookmarkLifecycle_HidesExistence(t *testing.T) {
	ctx := context.Background()
	others := &row{owner: 1}

	errForeign := BookmarkLifecycle.Delete(ctx, others, UserActor(2), persistInto(others))
	errMissing := BookmarkLifecycle.Delete(ctx, nil, UserActor(2), persistInto(others))

	if codeOf(t, errForeign) != codeOf(t, errMissing) {
		t.Errorf("foreign delete code %d != missing delete code %d", codeOf(t, errForeign), codeOf(t, errMissing))
	}
	if codeOf(t, errForeign) != apperr.BookmarkNotFound.Num {
		t.Errorf("code = %d, want BookmarkNotFound", codeOf(t, errForeign))
	}
	if others.deleted {
		t.Error("non-owner delete was persisted")
	}
}

func TestBookmarkLifecycle_NoStatePreconditions(t *testing.T) {
	ctx := context.Background()
	b := &row{owner: 1}
	actor := UserActor(1)

	for i := 0; i < 2; i++ {
		if err := BookmarkLifecycle.Delete(ctx, b, actor, persistInto(b)); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if !b.deleted {
		t.Error("bookmark not deleted")
	}
	for i := 0; i < 2; i++ {
		if err := BookmarkLifecycle.Restore(ctx, b, actor, persistInto(b)); err != nil {
			t.Fatalf("restore #%d: %v", i+1, err)
		}
	}
	if b.deleted {
		t.Error("bookmark not restored")
	}
}

func TestBookmarkLifecycle_PersistFailures(t *testing.T) {
	ctx := context.Background()
	b := &row{owner: 1}

	err := BookmarkLifecycle.Delete(ctx, b, UserActor(1), failingPersist)
	if codeOf(t, err) != apperr.BookmarkDeleteFailed.Num {
		t.Errorf("delete code = %d, want BookmarkDeleteFailed", codeOf(t, err))
	}
	err = BookmarkLifecycle.Restore(ctx, b, UserActor(1), failingPersist)
	if codeOf(t, err) != apperr.BookmarkRestoreFailed.Num {
		t.Errorf("restore code = %d, want BookmarkRestoreFailed", codeOf(t, err))
	}
}

// ---------------------------------------------------------------------------
// Pin-tag links
// ---------------------------------------------------------------------------

func TestPinTagLifecycle_RestoreBoundary(t *testing.T) {
	ctx := context.Background()
	link := &row{owner: 7}
	actor := UserActor(7)

	err := PinTagLifecycle.Restore(ctx, link, actor, persistInto(link))
	if codeOf(t, err) != apperr.TagAlreadyLinked.Num {
		t.Fatalf("restore active link code = %d, want TagAlreadyLinked", codeOf(t, err))
	}

	if err := PinTagLifecycle.Delete(ctx, link, actor, persistInto(link)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := PinTagLifecycle.Restore(ctx, link, actor, persistInto(link)); err != nil {
		t.Fatalf("restore deleted link: %v", err)
	}

	err = PinTagLifecycle.Restore(ctx, link, actor, persistInto(link))
	if codeOf(t, err) != apperr.TagAlreadyLinked.Num {
		t.Errorf("second restore code = %d, want TagAlreadyLinked", codeOf(t, err))
	}
}

func TestPinTagLifecycle_NonOwner(t *testing.T) {
	ctx := context.Background()
	link := &row{owner: 7, deleted: true}

	for _, actor := range []Actor{Anonymous(), UserActor(8)} {
		err := PinTagLifecycle.Restore(ctx, link, actor, persistInto(link))
		if codeOf(t, err) != apperr.TagLinkNotFound.Num {
			t.Errorf("%s restore code = %d, want TagLinkNotFound", actor, codeOf(t, err))
		}
	}
	if !link.deleted {
		t.Error("non-owner restore was persisted")
	}
}

func TestPinTagLifecycle_PersistFailureKeepsCause(t *testing.T) {
	err := PinTagLifecycle.Delete(context.Background(), &row{owner: 1}, UserActor(1), failingPersist)
	if codeOf(t, err) != apperr.PinTagDeleteFailed.Num {
		t.Errorf("code = %d, want PinTagDeleteFailed", codeOf(t, err))
	}
	if errors.Unwrap(err) == nil {
		t.Error("cause dropped")
	}
}
