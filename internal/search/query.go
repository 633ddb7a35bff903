package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a local search.
type Params struct {
	Text    string   // Free text matched against titles and tag values
	Tags    []string // Exact tags that must all be present, e.g. "artist:foo"
	NewOnly bool

	Limit  int
	Offset int

	SortBy string // "relevance" (default), "title", "lastread"
	Order  string // "asc" or "desc"
}

// DefaultLimit is used when Params.Limit is not positive.
const DefaultLimit = 50

// Result is one page of local search results.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Hit is a single matching archive.
type Hit struct {
	ID    string
	Title string
	Score float64
}

// IDs returns the hit ids in result order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search executes a query against the index.
func (s *ArchiveIndex) Search(ctx context.Context, params Params) (*Result, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, max(params.Offset, 0), false)
	addSorting(req, params)
	req.Fields = []string{"title"}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Total: res.Total,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if title, ok := h.Fields["title"].(string); ok {
			hit.Title = title
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

func buildQuery(params Params) query.Query {
	var queries []query.Query

	if text := strings.TrimSpace(params.Text); text != "" {
		lower := strings.ToLower(text)

		titleMatch := bleve.NewMatchQuery(text)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		tagMatch := bleve.NewMatchQuery(text)
		tagMatch.SetField("tag_values")
		tagMatch.SetBoost(1.5)

		fuzzy := bleve.NewFuzzyQuery(lower)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, tagMatch, fuzzy}
		if len(lower) >= 2 {
			prefix := bleve.NewPrefixQuery(lower)
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	for _, tag := range params.Tags {
		tq := bleve.NewTermQuery(strings.ToLower(strings.TrimSpace(tag)))
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	if params.NewOnly {
		nq := bleve.NewBoolFieldQuery(true)
		nq.SetField("is_new")
		queries = append(queries, nq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.Order == "desc"
	switch params.SortBy {
	case "title":
		if desc {
			req.SortBy([]string{"-title_sort", "_id"})
		} else {
			req.SortBy([]string{"title_sort", "_id"})
		}
	case "lastread":
		if params.Order == "asc" {
			req.SortBy([]string{"last_read", "title_sort"})
		} else {
			req.SortBy([]string{"-last_read", "title_sort"})
		}
	default:
		if strings.TrimSpace(params.Text) == "" {
			// Every hit scores the same without text; fall back to title order.
			req.SortBy([]string{"title_sort", "_id"})
			return
		}
		req.SortBy([]string{"-_score", "title_sort"})
	}
}
