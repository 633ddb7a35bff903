package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for archive documents.
// Titles get English stemming; full tags are exact keywords so that
// "artist:foo" never matches "artist:foobar".
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// Tag values without namespace, searchable as plain words
	tagValuesFieldMapping := bleve.NewTextFieldMapping()
	tagValuesFieldMapping.Analyzer = simple.Name
	docMapping.AddFieldMappingsAt("tag_values", tagValuesFieldMapping)

	// --- Keyword fields (exact match) ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	titleSortFieldMapping := bleve.NewTextFieldMapping()
	titleSortFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("title_sort", titleSortFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	namespacesFieldMapping := bleve.NewTextFieldMapping()
	namespacesFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("namespaces", namespacesFieldMapping)

	// --- Filters and sort keys ---

	docMapping.AddFieldMappingsAt("is_new", bleve.NewBooleanFieldMapping())

	pageCountFieldMapping := bleve.NewNumericFieldMapping()
	pageCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("page_count", pageCountFieldMapping)

	docMapping.AddFieldMappingsAt("last_read", bleve.NewNumericFieldMapping())

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
