package lanraragi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// pagePrefixLen is the length of the "./" prefix the server puts in front of
// every extracted page path.
const pagePrefixLen = 2

// Info retrieves server information. It doubles as a credential check.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var payload Info
	if err := c.doJSON(ctx, "info", http.MethodGet, &url.URL{Path: "api/info"}, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ListArchives retrieves the full archive index.
func (c *Client) ListArchives(ctx context.Context) ([]ArchiveSummary, error) {
	var payload []ArchiveSummary
	if err := c.doJSON(ctx, "listArchives", http.MethodGet, &url.URL{Path: "api/archives"}, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = []ArchiveSummary{}
	}
	return payload, nil
}

// Search runs a paginated, filtered and sorted search.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	values := url.Values{}
	if params.Filter != "" {
		values.Set("filter", params.Filter)
	}
	if params.Category != "" {
		values.Set("category", params.Category)
	}
	values.Set("start", strconv.Itoa(max(params.Start, 0)))
	if params.SortBy != "" {
		values.Set("sortby", params.SortBy)
	}
	if params.Order != "" {
		values.Set("order", params.Order)
	}
	if params.NewOnly {
		values.Set("newonly", "true")
	}
	if params.UntaggedOnly {
		values.Set("untaggedonly", "true")
	}

	rel := &url.URL{Path: "api/search", RawQuery: values.Encode()}
	var payload SearchResult
	if err := c.doJSON(ctx, "search", http.MethodGet, rel, &payload); err != nil {
		return nil, err
	}
	if payload.Archives == nil {
		payload.Archives = []ArchiveSummary{}
	}
	return &payload, nil
}

// Thumbnail downloads the cover thumbnail of an archive.
func (c *Client) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, "thumbnail", classAPI, archiveURL(id, "thumbnail"), nil)
}

// Metadata retrieves one archive.
func (c *Client) Metadata(ctx context.Context, id string) (*ArchiveSummary, error) {
	var payload ArchiveSummary
	if err := c.doJSON(ctx, "metadata", http.MethodGet, archiveURL(id, "metadata"), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpdateMetadata replaces the title and tags of an archive.
func (c *Client) UpdateMetadata(ctx context.Context, id, title, tags string) error {
	rel := archiveURL(id, "metadata")
	rel.RawQuery = url.Values{"title": {title}, "tags": {tags}}.Encode()
	return c.doOperation(ctx, "updateMetadata", http.MethodPut, rel)
}

// Extract asks the server to decompress an archive and returns normalized
// page paths. An empty page list is reported as ErrEmptyPages.
func (c *Client) Extract(ctx context.Context, id string) ([]string, error) {
	var payload extractResponse
	if err := c.doJSON(ctx, "extract", http.MethodPost, archiveURL(id, "extract"), &payload); err != nil {
		return nil, err
	}
	if len(payload.Pages) == 0 {
		return nil, wrapError("extract", http.StatusOK, ErrEmptyPages)
	}

	pages := make([]string, 0, len(payload.Pages))
	for _, p := range payload.Pages {
		pages = append(pages, NormalizePagePath(p))
	}
	return pages, nil
}

// NormalizePagePath strips the two character prefix from an extracted page
// path so it resolves relative to the server base URL.
func NormalizePagePath(p string) string {
	if len(p) < pagePrefixLen {
		return p
	}
	return p[pagePrefixLen:]
}

// Page downloads one page image. path is a normalized path from Extract.
// progress, if non-nil, receives the fraction downloaded.
func (c *Client) Page(ctx context.Context, path string, progress func(float64)) ([]byte, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, wrapError("page", 0, fmt.Errorf("%w: parse page path: %w", ErrDecode, err))
	}
	return c.download(ctx, "page", classPage, rel, progress)
}

// UpdateProgress pushes the last read page.
func (c *Client) UpdateProgress(ctx context.Context, id string, page int) error {
	return c.doOperation(ctx, "updateProgress", http.MethodPut, archiveURL(id, "progress", strconv.Itoa(page)))
}

// DeleteArchive deletes an archive on the server. The boolean is the
// server's success flag; a false value is not an error at this layer.
func (c *Client) DeleteArchive(ctx context.Context, id string) (bool, error) {
	var payload operationResponse
	if err := c.doJSON(ctx, "deleteArchive", http.MethodDelete, archiveURL(id), &payload); err != nil {
		return false, err
	}
	return bool(payload.Success), nil
}

// ClearNew clears the "new" flag of an archive.
func (c *Client) ClearNew(ctx context.Context, id string) error {
	return c.doOperation(ctx, "clearNew", http.MethodDelete, archiveURL(id, "isnew"))
}

func archiveURL(id string, parts ...string) *url.URL {
	p := "api/archives/" + id
	for _, part := range parts {
		p += "/" + part
	}
	return &url.URL{Path: p}
}
