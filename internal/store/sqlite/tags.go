package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

// DefaultTagSuggestLimit caps autocomplete results when the caller passes 0.
const DefaultTagSuggestLimit = 10

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ReplaceTagItems deletes every tag row and inserts items in one transaction.
// Readers see either the old set or the new one, never a mix.
func (s *Store) ReplaceTagItems(ctx context.Context, items []domain.TagItem) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_items`); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tag_items (tag, count) VALUES (?, ?)
			ON CONFLICT(tag) DO UPDATE SET count = tag_items.count + excluded.count`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.Tag, item.Count); err != nil {
				return err
			}
		}
		return nil
	})
	return store.Wrap("replace tag items", err)
}

// ListTagItems returns every tag ordered by popularity.
func (s *Store) ListTagItems(ctx context.Context) ([]domain.TagItem, error) {
	return s.queryTags(ctx, "list tag items",
		`SELECT tag, count FROM tag_items ORDER BY count DESC, tag ASC`)
}

// SearchTags returns tags containing substring, most popular first, capped at limit.
func (s *Store) SearchTags(ctx context.Context, substring string, limit int) ([]domain.TagItem, error) {
	if limit <= 0 {
		limit = DefaultTagSuggestLimit
	}
	pattern := "%" + likeEscaper.Replace(substring) + "%"
	return s.queryTags(ctx, "search tags", `
		SELECT tag, count FROM tag_items
		WHERE tag LIKE ? ESCAPE '\'
		ORDER BY count DESC, tag ASC
		LIMIT ?`, pattern, limit)
}

func (s *Store) queryTags(ctx context.Context, op, query string, args ...any) ([]domain.TagItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer rows.Close()

	items := []domain.TagItem{}
	for rows.Next() {
		var item domain.TagItem
		if err := rows.Scan(&item.Tag, &item.Count); err != nil {
			return nil, store.Wrap(op, err)
		}
		items = append(items, item)
	}
	return items, store.Wrap(op, rows.Err())
}

// DeleteAllTagItems empties the tag table.
func (s *Store) DeleteAllTagItems(ctx context.Context) (int, error) {
	n, err := s.exec(ctx, `DELETE FROM tag_items`)
	return n, store.Wrap("delete all tag items", err)
}
