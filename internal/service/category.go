package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/store"
	"github.com/lanreader/lanreader/internal/validation"
)

// CategoryUpdate is the editable part of a dynamic category.
type CategoryUpdate struct {
	Name   string `json:"name" validate:"required,max=256"`
	Search string `json:"search" validate:"required,max=4096"`
	Pinned bool   `json:"pinned"`
}

// CategoryService syncs categories.
type CategoryService struct {
	store     store.Store
	remote    Remote
	tasks     *Tasks
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCategoryService creates a category service.
func NewCategoryService(store store.Store, remote Remote, tasks *Tasks, validator *validation.Validator, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		store:     store,
		remote:    remote,
		tasks:     tasks,
		validator: validator,
		logger:    logger,
	}
}

// Load returns categories, pinned first. It follows the same cache-first
// rule as archive loads.
func (s *CategoryService) Load(ctx context.Context, fromServer bool) ([]*domain.Category, error) {
	if !fromServer {
		cached, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, apperrors.Persistence("list cached categories", err)
		}
		if len(cached) > 0 {
			return cached, nil
		}
	}

	s.pushPending(ctx)

	remote, err := s.remote.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.FromRemote("list categories", err)
	}

	categories := make([]*domain.Category, 0, len(remote))
	for _, c := range remote {
		categories = append(categories, c.ToDomain())
	}
	if err := s.store.ReplaceCategories(ctx, categories); err != nil {
		return nil, apperrors.Persistence("save categories", err)
	}

	cached, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list cached categories", err)
	}
	return cached, nil
}

// UpdateDynamic edits a dynamic category locally and pushes the edit in the
// background. The edit stays pending, and wins over server data, until a
// push succeeds. Static categories are rejected.
func (s *CategoryService) UpdateDynamic(ctx context.Context, id string, update CategoryUpdate) (*domain.Category, error) {
	update.Name = strings.TrimSpace(update.Name)
	update.Search = strings.TrimSpace(update.Search)

	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, mapStoreError("get category", id, err)
	}
	if !cat.IsDynamic() {
		return nil, apperrors.Validation("only dynamic categories can be edited")
	}
	if err := s.validator.Validate(update); err != nil {
		return nil, err
	}

	cat.Name = update.Name
	cat.Search = update.Search
	cat.Pinned = update.Pinned
	cat.UpdatedAt = time.Now()
	cat.Pending = true
	if err := s.store.SaveCategory(ctx, cat); err != nil {
		return nil, apperrors.Persistence("save category", err)
	}

	pushed := *cat
	s.tasks.Go(ctx, "update category", func(ctx context.Context) error {
		return s.push(ctx, &pushed)
	})
	return cat, nil
}

// pushPending retries category edits whose earlier push failed.
func (s *CategoryService) pushPending(ctx context.Context) {
	pending, err := s.store.ListPendingCategories(ctx)
	if err != nil {
		s.logger.Warn("failed to list pending category edits", "error", err)
		return
	}
	for _, c := range pending {
		if err := s.push(ctx, c); err != nil {
			s.logger.Warn("pending category edit still not pushed", "category_id", c.ID, "error", err)
		}
	}
}

func (s *CategoryService) push(ctx context.Context, c *domain.Category) error {
	if err := s.remote.UpdateCategory(ctx, c); err != nil {
		return apperrors.FromRemote("push category edit", err)
	}
	if err := s.store.ClearCategoryPending(ctx, c); err != nil {
		return apperrors.Persistence("clear category pending", err)
	}
	return nil
}
