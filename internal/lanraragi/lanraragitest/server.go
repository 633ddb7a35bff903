// Package lanraragitest provides an in-memory LANraragi server for tests.
package lanraragitest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lanreader/lanreader/internal/lanraragi"
)

// Route names accepted by FailWith, Delay and Calls.
const (
	RouteInfo           = "GET /api/info"
	RouteArchives       = "GET /api/archives"
	RouteSearch         = "GET /api/search"
	RouteThumbnail      = "GET /api/archives/{id}/thumbnail"
	RouteMetadata       = "GET /api/archives/{id}/metadata"
	RouteUpdateMetadata = "PUT /api/archives/{id}/metadata"
	RouteExtract        = "POST /api/archives/{id}/extract"
	RoutePage           = "GET /api/archives/{id}/page"
	RouteProgress       = "PUT /api/archives/{id}/progress/{page}"
	RouteDelete         = "DELETE /api/archives/{id}"
	RouteClearNew       = "DELETE /api/archives/{id}/isnew"
	RouteCategories     = "GET /api/categories"
	RouteUpdateCategory = "PUT /api/categories/{id}"
	RouteQueueDownload  = "POST /api/download_url"
	RouteJobStatus      = "GET /api/minion/{job}"
)

// Server is a fake archive server. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	apiKey     string
	archives   []*lanraragi.ArchiveSummary
	thumbnails map[string][]byte
	pages      map[string][][]byte
	categories []*lanraragi.Category
	jobs       map[int]*lanraragi.JobStatus
	nextJob    int
	calls      map[string]int
	failures   map[string]int
	delays     map[string]time.Duration
	deleteFail map[string]bool
	lastAuth   string
	pageSize   int
}

// NewServer starts a fake server that requires apiKey (empty disables auth).
// The server is closed when the test ends.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()
	s := &Server{
		apiKey:     apiKey,
		thumbnails: make(map[string][]byte),
		pages:      make(map[string][][]byte),
		jobs:       make(map[int]*lanraragi.JobStatus),
		calls:      make(map[string]int),
		failures:   make(map[string]int),
		delays:     make(map[string]time.Duration),
		deleteFail: make(map[string]bool),
		pageSize:   defaultPageSize,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.authenticate)

	r.Get("/api/info", s.wrap(RouteInfo, s.handleInfo))
	r.Get("/api/archives", s.wrap(RouteArchives, s.handleArchives))
	r.Get("/api/search", s.wrap(RouteSearch, s.handleSearch))
	r.Route("/api/archives/{id}", func(r chi.Router) {
		r.Get("/thumbnail", s.wrap(RouteThumbnail, s.handleThumbnail))
		r.Get("/metadata", s.wrap(RouteMetadata, s.handleMetadata))
		r.Put("/metadata", s.wrap(RouteUpdateMetadata, s.handleUpdateMetadata))
		r.Post("/extract", s.wrap(RouteExtract, s.handleExtract))
		r.Get("/page", s.wrap(RoutePage, s.handlePage))
		r.Put("/progress/{page}", s.wrap(RouteProgress, s.handleProgress))
		r.Delete("/isnew", s.wrap(RouteClearNew, s.handleClearNew))
		r.Delete("/", s.wrap(RouteDelete, s.handleDelete))
	})
	r.Get("/api/categories", s.wrap(RouteCategories, s.handleCategories))
	r.Put("/api/categories/{id}", s.wrap(RouteUpdateCategory, s.handleUpdateCategory))
	r.Post("/api/download_url", s.wrap(RouteQueueDownload, s.handleQueueDownload))
	r.Get("/api/minion/{job}", s.wrap(RouteJobStatus, s.handleJobStatus))
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		s.mu.Lock()
		s.lastAuth = auth
		key := s.apiKey
		s.mu.Unlock()

		if key != "" && auth != "Bearer "+base64.StdEncoding.EncodeToString([]byte(key)) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wrap counts calls and applies injected delays and failures.
func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		status := s.failures[route]
		delay := s.delays[route]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "injected failure"})
			return
		}
		h(w, r)
	}
}

// AddArchive registers an archive with the given page images.
func (s *Server) AddArchive(a lanraragi.ArchiveSummary, pages ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(pages) > 0 {
		a.PageCount = lanraragi.Number(len(pages))
	}
	s.archives = slices.DeleteFunc(s.archives, func(x *lanraragi.ArchiveSummary) bool { return x.ID == a.ID })
	s.archives = append(s.archives, &a)
	s.pages[a.ID] = pages
}

// SetThumbnail sets the thumbnail body for id.
func (s *Server) SetThumbnail(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbnails[id] = data
}

// AddCategory registers a category.
func (s *Server) AddCategory(c lanraragi.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, &c)
}

// Archive returns the server copy of an archive.
func (s *Server) Archive(id string) (lanraragi.ArchiveSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findArchive(id); a != nil {
		return *a, true
	}
	return lanraragi.ArchiveSummary{}, false
}

// Category returns the server copy of a category.
func (s *Server) Category(id string) (lanraragi.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return *c, true
		}
	}
	return lanraragi.Category{}, false
}

// FailWith makes route respond with status until cleared with status 0.
func (s *Server) FailWith(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// Delay holds every response on route for d. Zero removes the delay.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == 0 {
		delete(s.delays, route)
		return
	}
	s.delays[route] = d
}

// RefuseDelete makes deletes of id answer with success=0.
func (s *Server) RefuseDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFail[id] = true
}

// SetAPIKey changes the key the server accepts.
func (s *Server) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// LastAuthorization returns the Authorization header of the latest request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// FinishJob completes a queued job with the given outcome.
func (s *Server) FinishJob(job int, success bool, archiveID, title, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[job]
	if !ok {
		return
	}
	st.State = lanraragi.JobFinished
	st.Result = lanraragi.JobResult{
		Success: lanraragi.Flag(success),
		Message: message,
		Title:   title,
		ID:      archiveID,
	}
}

// PagePath returns the raw (unnormalized) extract path of page n of id.
func PagePath(id string, n int) string {
	return fmt.Sprintf("./api/archives/%s/page?path=%03d.jpg", id, n+1)
}

func (s *Server) findArchive(id string) *lanraragi.ArchiveSummary {
	for _, a := range s.archives {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lanraragi.Info{
		Name:            "LANraragi",
		Version:         "0.9.21",
		VersionName:     "Test",
		HasPassword:     true,
		ArchivesPerPage: 100,
	})
}

func (s *Server) handleArchives(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]lanraragi.ArchiveSummary, 0, len(s.archives))
	for _, a := range s.archives {
		out = append(out, *a)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

const defaultPageSize = 100

// SetPageSize changes how many results one search page holds.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := strings.ToLower(q.Get("filter"))
	start, _ := strconv.Atoi(q.Get("start"))
	newOnly := q.Get("newonly") == "true"

	s.mu.Lock()
	var members []string
	if catID := q.Get("category"); catID != "" {
		for _, c := range s.categories {
			if c.ID == catID {
				members = c.Archives
				if c.Search != "" {
					filter = strings.ToLower(c.Search)
				}
			}
		}
	}

	var matched []lanraragi.ArchiveSummary
	for _, a := range s.archives {
		if filter != "" &&
			!strings.Contains(strings.ToLower(a.Title), filter) &&
			!strings.Contains(strings.ToLower(a.Tags), filter) {
			continue
		}
		if members != nil && !slices.Contains(members, a.ID) {
			continue
		}
		if newOnly && !bool(a.IsNew) {
			continue
		}
		matched = append(matched, *a)
	}
	total := len(s.archives)
	pageSize := s.pageSize
	s.mu.Unlock()

	if q.Get("order") == "desc" {
		slices.Reverse(matched)
	}

	page := []lanraragi.ArchiveSummary{}
	if start < len(matched) {
		end := min(start+pageSize, len(matched))
		page = matched[start:end]
	}
	writeJSON(w, http.StatusOK, lanraragi.SearchResult{
		Archives:        page,
		RecordsTotal:    lanraragi.Number(total),
		RecordsFiltered: lanraragi.Number(len(matched)),
	})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.thumbnails[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeBinary(w, data)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a := s.findArchive(chi.URLParam(r, "id"))
	var out lanraragi.ArchiveSummary
	if a != nil {
		out = *a
	}
	s.mu.Unlock()
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findArchive(chi.URLParam(r, "id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive"})
		return
	}
	a.Title = r.URL.Query().Get("title")
	a.Tags = r.URL.Query().Get("tags")
	writeOperation(w, "update_metadata", true)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	a := s.findArchive(id)
	n := len(s.pages[id])
	s.mu.Unlock()
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive"})
		return
	}

	paths := make([]string, 0, n)
	for i := range n {
		paths = append(paths, PagePath(id, i))
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": 0, "pages": paths})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := strings.TrimSuffix(r.URL.Query().Get("path"), ".jpg")
	n, err := strconv.Atoi(name)

	s.mu.Lock()
	pages := s.pages[id]
	s.mu.Unlock()

	if err != nil || n < 1 || n > len(pages) {
		http.NotFound(w, r)
		return
	}
	writeBinary(w, pages[n-1])
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad page"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findArchive(chi.URLParam(r, "id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive"})
		return
	}
	a.Progress = lanraragi.Number(page)
	writeOperation(w, "update_progress", true)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteFail[id] || s.findArchive(id) == nil {
		writeOperation(w, "delete_archive", false)
		return
	}
	s.archives = slices.DeleteFunc(s.archives, func(a *lanraragi.ArchiveSummary) bool { return a.ID == id })
	delete(s.pages, id)
	delete(s.thumbnails, id)
	writeOperation(w, "delete_archive", true)
}

func (s *Server) handleClearNew(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findArchive(chi.URLParam(r, "id"))
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no archive"})
		return
	}
	a.IsNew = false
	writeOperation(w, "clear_new", true)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]lanraragi.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID != id {
			continue
		}
		c.Name = q.Get("name")
		c.Search = q.Get("search")
		c.Pinned = q.Get("pinned") == "1"
		writeOperation(w, "update_category", true)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no category"})
}

func (s *Server) handleQueueDownload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("url") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing url"})
		return
	}
	s.mu.Lock()
	s.nextJob++
	job := s.nextJob
	s.jobs[job] = &lanraragi.JobStatus{State: lanraragi.JobActive}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"operation": "download_url", "success": 1, "job": job})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, _ := strconv.Atoi(chi.URLParam(r, "job"))
	s.mu.Lock()
	st, ok := s.jobs[job]
	var out lanraragi.JobStatus
	if ok {
		out = *st
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no job"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/x-download")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func writeOperation(w http.ResponseWriter, op string, success bool) {
	flag := 0
	if success {
		flag = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{"operation": op, "success": flag})
}
