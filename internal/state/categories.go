package state

import (
	"context"
	"slices"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/service"
)

// CategoriesState is the category list.
type CategoriesState struct {
	Categories []*domain.Category
	Loading    bool
	Error      apperrors.Code
}

// CategoriesAction is the sealed action set of the category list.
type CategoriesAction interface {
	Action
	categoriesAction()
}

type (
	// LoadCategories starts a category load. Ignored while one is running.
	LoadCategories struct {
		FromServer bool
	}
	// CategoriesLoaded completes a category load.
	CategoriesLoaded struct {
		Categories []*domain.Category
	}
	// CategoriesFailed fails a category load.
	CategoriesFailed struct {
		Code apperrors.Code
	}
	// UpdateCategory edits a dynamic category.
	UpdateCategory struct {
		ID     string
		Update service.CategoryUpdate
	}
	// CategoryUpdated replaces a category with its saved form.
	CategoryUpdated struct {
		Category *domain.Category
	}
	// CategoryWriteFailed reports a rejected category edit.
	CategoryWriteFailed struct {
		ID   string
		Code apperrors.Code
	}
)

func (LoadCategories) action()      {}
func (CategoriesLoaded) action()    {}
func (CategoriesFailed) action()    {}
func (UpdateCategory) action()      {}
func (CategoryUpdated) action()     {}
func (CategoryWriteFailed) action() {}

func (LoadCategories) categoriesAction()      {}
func (CategoriesLoaded) categoriesAction()    {}
func (CategoriesFailed) categoriesAction()    {}
func (UpdateCategory) categoriesAction()      {}
func (CategoryUpdated) categoriesAction()     {}
func (CategoryWriteFailed) categoriesAction() {}

func reduceCategories(s CategoriesState, a CategoriesAction, env *Env) (CategoriesState, []Effect) {
	switch a := a.(type) {
	case LoadCategories:
		if s.Loading {
			return s, nil
		}
		s.Loading = true
		fromServer := a.FromServer
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			cats, err := env.Categories.Load(ctx, fromServer)
			if err != nil {
				send(CategoriesFailed{Code: apperrors.CodeOf(err)})
				return
			}
			send(CategoriesLoaded{Categories: cats})
		}}

	case CategoriesLoaded:
		s.Loading = false
		s.Categories = a.Categories
		s.Error = ""
		return s, nil

	case CategoriesFailed:
		s.Loading = false
		s.Error = a.Code
		return s, nil

	case UpdateCategory:
		id, update := a.ID, a.Update
		return s, []Effect{func(ctx context.Context, send func(Action)) {
			cat, err := env.Categories.UpdateDynamic(ctx, id, update)
			if err != nil {
				send(CategoryWriteFailed{ID: id, Code: apperrors.CodeOf(err)})
				return
			}
			send(CategoryUpdated{Category: cat})
		}}

	case CategoryUpdated:
		i := slices.IndexFunc(s.Categories, func(c *domain.Category) bool { return c.ID == a.Category.ID })
		if i < 0 {
			return s, nil
		}
		s.Categories = slices.Clone(s.Categories)
		s.Categories[i] = a.Category
		return s, nil

	case CategoryWriteFailed:
		s.Error = a.Code
		return s, nil

	default:
		panic("state: unhandled categories action")
	}
}
