package lanraragi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
)

// Flag decodes the server's assorted boolean encodings: true/false,
// 0/1 and their quoted string forms.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %q", s)
	}
	return nil
}

// Number decodes an integer sent either as a JSON number or a string.
type Number int

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = Number(v)
	return nil
}

// Info is the /api/info payload.
type Info struct {
	Name                 string `json:"name"`
	Motd                 string `json:"motd"`
	Version              string `json:"version"`
	VersionName          string `json:"version_name"`
	HasPassword          Flag   `json:"has_password"`
	ArchivesPerPage      Number `json:"archives_per_page"`
	ServerTracksProgress Flag   `json:"server_tracks_progress"`
}

// ArchiveSummary is the archive representation shared by the index,
// search and metadata endpoints.
type ArchiveSummary struct {
	ID           string `json:"arcid"`
	Title        string `json:"title"`
	Tags         string `json:"tags"`
	PageCount    Number `json:"pagecount"`
	Progress     Number `json:"progress"`
	IsNew        Flag   `json:"isnew"`
	Extension    string `json:"extension"`
	LastReadTime Number `json:"lastreadtime"`
}

// ToDomain converts the wire form into a cached archive stamped with now.
func (a ArchiveSummary) ToDomain() *domain.Archive {
	return &domain.Archive{
		ID:           a.ID,
		Title:        a.Title,
		Tags:         a.Tags,
		PageCount:    int(a.PageCount),
		Progress:     int(a.Progress),
		IsNew:        bool(a.IsNew),
		Extension:    a.Extension,
		LastReadTime: int64(a.LastReadTime),
		UpdatedAt:    time.Now(),
	}
}

// SearchParams configures /api/search. Start is an offset, not a cursor.
type SearchParams struct {
	Filter       string
	Category     string
	Start        int
	SortBy       string // "title", "lastread" or a tag namespace
	Order        string // "asc" or "desc"
	NewOnly      bool
	UntaggedOnly bool
}

// SearchResult is one page of search results.
type SearchResult struct {
	Archives        []ArchiveSummary `json:"data"`
	RecordsTotal    Number           `json:"recordsTotal"`
	RecordsFiltered Number           `json:"recordsFiltered"`
}

// Category is the wire form of a static or dynamic category.
type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Archives []string `json:"archives"`
	Search   string   `json:"search"`
	Pinned   Flag     `json:"pinned"`
}

// ToDomain converts the wire form into a cached category.
func (c Category) ToDomain() *domain.Category {
	archives := c.Archives
	if archives == nil {
		archives = []string{}
	}
	return &domain.Category{
		ID:        c.ID,
		Name:      c.Name,
		Archives:  archives,
		Search:    c.Search,
		Pinned:    bool(c.Pinned),
		UpdatedAt: time.Now(),
	}
}

// Minion job states reported by the server.
const (
	JobQueued   = "inactive"
	JobActive   = "active"
	JobFinished = "finished"
	JobFailed   = "failed"
)

// JobResult is the outcome attached to a finished download job.
type JobResult struct {
	Success Flag   `json:"success"`
	Message string `json:"message"`
	Title   string `json:"title"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

// JobStatus is the /api/minion/{job} payload.
type JobStatus struct {
	State  string    `json:"state"`
	Error  string    `json:"error"`
	Result JobResult `json:"result"`
}

// Apply folds the polled status into job.
func (s JobStatus) Apply(job *domain.DownloadJob) {
	job.UpdatedAt = time.Now()
	switch s.State {
	case JobFinished:
		job.IsActive = false
		job.IsSuccess = bool(s.Result.Success)
		job.IsError = !job.IsSuccess
		job.Message = s.Result.Message
		if s.Result.Title != "" {
			job.Title = s.Result.Title
		}
		job.ArchiveID = s.Result.ID
	case JobFailed:
		job.IsActive = false
		job.IsSuccess = false
		job.IsError = true
		job.Message = s.Error
		if job.Message == "" {
			job.Message = s.Result.Message
		}
	default:
		job.IsActive = true
	}
}

// operationResponse is the generic reply of mutating endpoints.
type operationResponse struct {
	Operation string `json:"operation"`
	Success   Flag   `json:"success"`
	Error     string `json:"error"`
}

type extractResponse struct {
	Job   Number   `json:"job"`
	Pages []string `json:"pages"`
}

type queueResponse struct {
	operationResponse
	Job Number `json:"job"`
}

var _ json.Unmarshaler = (*Flag)(nil)
