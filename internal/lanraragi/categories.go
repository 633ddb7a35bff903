package lanraragi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lanreader/lanreader/internal/domain"
)

// ListCategories retrieves every category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var payload []Category
	if err := c.doJSON(ctx, "listCategories", http.MethodGet, &url.URL{Path: "api/categories"}, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = []Category{}
	}
	return payload, nil
}

// UpdateCategory pushes the name, saved search and pinned flag of a category.
func (c *Client) UpdateCategory(ctx context.Context, cat *domain.Category) error {
	values := url.Values{}
	values.Set("name", cat.Name)
	values.Set("search", cat.Search)
	if cat.Pinned {
		values.Set("pinned", "1")
	} else {
		values.Set("pinned", "0")
	}
	rel := &url.URL{Path: "api/categories/" + cat.ID, RawQuery: values.Encode()}
	return c.doOperation(ctx, "updateCategory", http.MethodPut, rel)
}
