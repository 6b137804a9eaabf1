package services

import (
	"context"
	"errors"
	"strings"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/policy"
)

// PinTagService links tags to pins. Only the pin's owner may change its links; to anyone else
// the pin or link does not exist.
type PinTagService struct {
	tags  TagStore
	links PinTagStore
	pins  PinStore
	tx    db.TxRunner
}

// NewPinTagService creates a PinTagService.
func NewPinTagService(tags TagStore, links PinTagStore, pins PinStore, tx db.TxRunner) *PinTagService {
	return &PinTagService{tags: tags, links: links, pins: pins, tx: tx}
}

// AddTagToPin links keyword to an owned pin, creating the tag if needed and restoring a
// previously removed link.
func (s *PinTagService) AddTagToPin(ctx context.Context, actor policy.Actor, pinID int64, keyword string) (*models.PinTag, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperr.New(apperr.InvalidTagKeyword)
	}
	if _, err := s.ownedPin(ctx, actor, pinID); err != nil {
		return nil, err
	}

	var link *models.PinTag
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		tag, err := findOrCreate(ctx, s.tags, keyword)
		if err != nil {
			return err
		}

		existing, err := s.links.Get(ctx, pinID, tag.ID)
		if err != nil {
			return apperr.Wrap(apperr.InternalError, err)
		}
		if existing != nil {
			if !existing.Deleted {
				return apperr.New(apperr.TagAlreadyLinked)
			}
			if err := s.links.SetDeleted(ctx, existing.ID, false); err != nil {
				return apperr.Wrap(apperr.PinTagRestoreFailed, err)
			}
			existing.Deleted = false
			link = existing
			return nil
		}

		link, err = s.links.Create(ctx, pinID, tag.ID)
		if errors.Is(err, repositories.ErrDuplicate) {
			return apperr.New(apperr.TagAlreadyLinked)
		}
		if err != nil {
			return apperr.Wrap(apperr.TagCreateFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// LinkTagsToPin links several keywords to an owned pin at once. Blank keywords are skipped and
// existing links are kept or restored.
func (s *PinTagService) LinkTagsToPin(ctx context.Context, actor policy.Actor, pinID int64, keywords []string) ([]models.Tag, error) {
	if len(keywords) == 0 {
		return nil, apperr.New(apperr.InvalidTagInput)
	}
	if _, err := s.ownedPin(ctx, actor, pinID); err != nil {
		return nil, err
	}

	linked := []models.Tag{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, kw := range keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			tag, err := findOrCreate(ctx, s.tags, kw)
			if err != nil {
				return err
			}
			if err := s.linkOrRestore(ctx, pinID, tag.ID); err != nil {
				return err
			}
			linked = append(linked, *tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

// TagsByPin lists the active tags of a pin the actor can see.
func (s *PinTagService) TagsByPin(ctx context.Context, actor policy.Actor, pinID int64) ([]models.Tag, error) {
	pin, err := s.pins.GetVisible(ctx, pinID, actor)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return nil, apperr.New(apperr.TagPinNotFound)
	}

	links, err := s.links.ListActiveByPin(ctx, pinID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if len(links) == 0 {
		return nil, apperr.New(apperr.PinTagListEmpty)
	}

	tags := make([]models.Tag, 0, len(links))
	for _, l := range links {
		tags = append(tags, models.Tag{ID: l.TagID, Keyword: l.Keyword})
	}
	return tags, nil
}

// RemoveTagFromPin soft-deletes a link on an owned pin.
func (s *PinTagService) RemoveTagFromPin(ctx context.Context, actor policy.Actor, pinID, tagID int64) error {
	entity, err := s.load(ctx, pinID, tagID)
	if err != nil {
		return err
	}
	return policy.PinTagLifecycle.Delete(ctx, entity, actor, s.persist(entity))
}

// RestoreTagOnPin reactivates a removed link. Restoring an active link is TAG_ALREADY_LINKED.
func (s *PinTagService) RestoreTagOnPin(ctx context.Context, actor policy.Actor, pinID, tagID int64) error {
	entity, err := s.load(ctx, pinID, tagID)
	if err != nil {
		return err
	}
	return policy.PinTagLifecycle.Restore(ctx, entity, actor, s.persist(entity))
}

// PinsByTagKeywords returns the visible pins carrying every keyword, in the order of the first
// keyword's links.
func (s *PinTagService) PinsByTagKeywords(ctx context.Context, actor policy.Actor, keywords []string) ([]models.Pin, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperr.New(apperr.InvalidTagInput)
	}

	var ids []int64
	for i, kw := range cleaned {
		tag, err := s.tags.GetByKeyword(ctx, kw)
		if err != nil {
			return nil, apperr.Wrap(apperr.InternalError, err)
		}
		if tag == nil {
			return nil, apperr.New(apperr.TagNotFound)
		}
		tagged, err := s.tags.PinIDsByTag(ctx, tag.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.InternalError, err)
		}
		if len(tagged) == 0 {
			return nil, apperr.New(apperr.PinTagListEmpty)
		}
		if i == 0 {
			ids = tagged
			continue
		}
		ids = intersect(ids, tagged)
	}

	pins, err := s.pins.ListByIDs(ctx, ids, actor)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if len(pins) == 0 {
		return nil, apperr.New(apperr.TagPostsNotFound)
	}
	return orderByIDs(pins, ids), nil
}

func (s *PinTagService) linkOrRestore(ctx context.Context, pinID, tagID int64) error {
	existing, err := s.links.Get(ctx, pinID, tagID)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, err)
	}
	if existing == nil {
		if _, err := s.links.Create(ctx, pinID, tagID); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
			return apperr.Wrap(apperr.TagCreateFailed, err)
		}
		return nil
	}
	if existing.Deleted {
		if err := s.links.SetDeleted(ctx, existing.ID, false); err != nil {
			return apperr.Wrap(apperr.PinTagRestoreFailed, err)
		}
	}
	return nil
}

// ownedPin hides pins the actor does not own behind TAG_PIN_NOT_FOUND.
func (s *PinTagService) ownedPin(ctx context.Context, actor policy.Actor, pinID int64) (*models.Pin, error) {
	if actor.IsAnonymous() {
		return nil, apperr.New(apperr.AuthRequired)
	}
	pin, err := s.pins.Find(ctx, pinID, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil || !policy.CanMutate(actor, pin.OwnerID()) {
		return nil, apperr.New(apperr.TagPinNotFound)
	}
	return pin, nil
}

func (s *PinTagService) load(ctx context.Context, pinID, tagID int64) (policy.SoftDeletable, error) {
	link, err := s.links.Get(ctx, pinID, tagID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if link == nil {
		return nil, nil
	}
	return link, nil
}

func (s *PinTagService) persist(entity policy.SoftDeletable) policy.Persist {
	return func(ctx context.Context, deleted bool) error {
		return s.links.SetDeleted(ctx, entity.(*models.PinTag).ID, deleted)
	}
}

func intersect(a, b []int64) []int64 {
	in := make(map[int64]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	out := make([]int64, 0, len(a))
	for _, id := range a {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func orderByIDs(pins []models.Pin, ids []int64) []models.Pin {
	byID := make(map[int64]models.Pin, len(pins))
	for _, p := range pins {
		byID[p.ID] = p
	}
	out := make([]models.Pin, 0, len(pins))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out
}
