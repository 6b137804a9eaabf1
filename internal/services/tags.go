package services

import (
	"context"
	"errors"
	"strings"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
)

// TagService manages the global keyword list.
type TagService struct {
	tags TagStore
}

// NewTagService creates a TagService.
func NewTagService(tags TagStore) *TagService {
	return &TagService{tags: tags}
}

// AllTags lists every tag. An empty catalog is TAG_NOT_FOUND.
func (s *TagService) AllTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.ListAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if len(tags) == 0 {
		return nil, apperr.New(apperr.TagNotFound)
	}
	return tags, nil
}

// CreateTag adds a new keyword.
func (s *TagService) CreateTag(ctx context.Context, keyword string) (*models.Tag, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperr.New(apperr.InvalidTagKeyword)
	}

	existing, err := s.tags.GetByKeyword(ctx, keyword)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if existing != nil {
		return nil, apperr.New(apperr.TagAlreadyExists)
	}

	tag, err := s.tags.Create(ctx, keyword)
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, apperr.New(apperr.TagAlreadyExists)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TagCreateFailed, err)
	}
	return tag, nil
}

// findOrCreate returns the tag for keyword, creating it when missing. A concurrent insert of the
// same keyword is resolved by reading the winner's row.
func findOrCreate(ctx context.Context, tags TagStore, keyword string) (*models.Tag, error) {
	tag, err := tags.GetByKeyword(ctx, keyword)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if tag != nil {
		return tag, nil
	}

	tag, err = tags.Create(ctx, keyword)
	if errors.Is(err, repositories.ErrDuplicate) {
		tag, err = tags.GetByKeyword(ctx, keyword)
	}
	if err != nil || tag == nil {
		return nil, apperr.Wrap(apperr.TagCreateFailed, err)
	}
	return tag, nil
}
