// Package search provides an offline full-text index over cached archives
// using Bleve. The index lives in memory and is rebuilt from the local store.
package search

import (
	"strings"

	"github.com/lanreader/lanreader/internal/domain"
)

// ArchiveDocument is the indexed form of an archive.
type ArchiveDocument struct {
	ID        string
	Title     string
	Tags      []string
	IsNew     bool
	PageCount int
	LastRead  int64
}

// NewArchiveDocument builds a document from a cached archive.
func NewArchiveDocument(a *domain.Archive) *ArchiveDocument {
	return &ArchiveDocument{
		ID:        a.ID,
		Title:     a.Title,
		Tags:      a.TagList(),
		IsNew:     a.IsNew,
		PageCount: a.PageCount,
		LastRead:  a.LastReadTime,
	}
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *ArchiveDocument) ToMap() map[string]any {
	tags := make([]string, 0, len(d.Tags))
	values := make([]string, 0, len(d.Tags))
	namespaces := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		t = strings.ToLower(t)
		tags = append(tags, t)
		ns, value := splitNamespace(t)
		values = append(values, value)
		if ns != "" {
			namespaces = append(namespaces, ns)
		}
	}

	return map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"title_sort": strings.ToLower(d.Title),
		"tags":       tags,
		"tag_values": strings.Join(values, " "),
		"namespaces": namespaces,
		"is_new":     d.IsNew,
		"page_count": d.PageCount,
		"last_read":  d.LastRead,
	}
}

// splitNamespace splits "artist:foo" into ("artist", "foo").
func splitNamespace(tag string) (string, string) {
	if ns, value, ok := strings.Cut(tag, ":"); ok {
		return ns, value
	}
	return "", tag
}
