package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

const categoryColumns = `id, name, archives, search, pinned, updated_at, pending`

const insertCategorySQL = `
	INSERT INTO categories (` + categoryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

const upsertCategorySQL = insertCategorySQL + `
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		archives = excluded.archives,
		search = excluded.search,
		pinned = excluded.pinned,
		updated_at = excluded.updated_at,
		pending = excluded.pending`

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var (
		c         domain.Category
		archives  string
		pinned    int
		pending   int
		updatedAt string
	)
	if err := scanner.Scan(&c.ID, &c.Name, &archives, &c.Search, &pinned, &updatedAt, &pending); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(archives), &c.Archives); err != nil {
		return nil, fmt.Errorf("decode category archives: %w", err)
	}
	if c.Archives == nil {
		c.Archives = []string{}
	}
	c.Pinned = pinned != 0
	c.Pending = pending != 0

	var err error
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func categoryArgs(c *domain.Category) ([]any, error) {
	ids := c.Archives
	if ids == nil {
		ids = []string{}
	}
	archives, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode category archives: %w", err)
	}
	return []any{c.ID, c.Name, string(archives), c.Search, boolToInt(c.Pinned), formatTime(c.UpdatedAt), boolToInt(c.Pending)}, nil
}

// SaveCategory upserts one category.
func (s *Store) SaveCategory(ctx context.Context, c *domain.Category) error {
	args, err := categoryArgs(c)
	if err != nil {
		return store.Wrap("save category", err)
	}
	_, err = s.exec(ctx, upsertCategorySQL, args...)
	return store.Wrap("save category", err)
}

// ReplaceCategories swaps the cached category set for categories.
// Categories are small and the server returns the full set on every fetch.
// Rows with an unpushed local edit survive and win over the server copy.
func (s *Store) ReplaceCategories(ctx context.Context, categories []*domain.Category) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE pending = 0`); err != nil {
			return err
		}
		for _, c := range categories {
			args, err := categoryArgs(c)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insertCategorySQL+` ON CONFLICT(id) DO NOTHING`, args...); err != nil {
				return err
			}
		}
		return nil
	})
	return store.Wrap("replace categories", err)
}

// GetCategory returns store.ErrNotFound on a cache miss.
func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get category", err)
	}
	return c, nil
}

// ListCategories returns pinned categories first, then by name.
func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY pinned DESC, name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, store.Wrap("list categories", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, store.Wrap("list categories", err)
		}
		categories = append(categories, c)
	}
	return categories, store.Wrap("list categories", rows.Err())
}

// ListPendingCategories returns categories with a local edit not yet pushed.
func (s *Store) ListPendingCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE pending != 0 ORDER BY id`)
	if err != nil {
		return nil, store.Wrap("list pending categories", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, store.Wrap("list pending categories", err)
		}
		categories = append(categories, c)
	}
	return categories, store.Wrap("list pending categories", rows.Err())
}

// ClearCategoryPending acknowledges the push of pushed. A row edited again
// since then keeps its mark.
func (s *Store) ClearCategoryPending(ctx context.Context, pushed *domain.Category) error {
	_, err := s.exec(ctx,
		`UPDATE categories SET pending = 0 WHERE id = ? AND updated_at = ?`,
		pushed.ID, formatTime(pushed.UpdatedAt))
	return store.Wrap("clear category pending", err)
}

// DeleteAllCategories empties the category table.
func (s *Store) DeleteAllCategories(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM categories`)
	return n, store.Wrap("delete all categories", err)
}
