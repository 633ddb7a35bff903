package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lanreader/lanreader/internal/domain"
	"github.com/lanreader/lanreader/internal/store"
)

func TestDownloadJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobs := []*domain.DownloadJob{
		{ID: 1, URL: "https://example.com/g/1", IsActive: true},
		{ID: 2, URL: "https://example.com/g/2", IsSuccess: true, Title: "Done", ArchiveID: "abc"},
		{ID: 3, URL: "https://example.com/g/3", IsActive: true},
	}
	for _, j := range jobs {
		if err := s.SaveDownloadJob(ctx, j); err != nil {
			t.Fatalf("SaveDownloadJob: %v", err)
		}
	}

	active, err := s.ListActiveDownloadJobs(ctx)
	if err != nil {
		t.Fatalf("ListActiveDownloadJobs: %v", err)
	}
	if len(active) != 2 || active[0].ID != 1 || active[1].ID != 3 {
		t.Errorf("unexpected active jobs: %+v", active)
	}

	// Job 1 finishes with an error.
	jobs[0].IsActive = false
	jobs[0].IsError = true
	jobs[0].Message = "404 from source"
	jobs[0].UpdatedAt = time.Now()
	if err := s.SaveDownloadJob(ctx, jobs[0]); err != nil {
		t.Fatalf("SaveDownloadJob: %v", err)
	}

	got, err := s.GetDownloadJob(ctx, 1)
	if err != nil {
		t.Fatalf("GetDownloadJob: %v", err)
	}
	if got.IsActive || !got.IsError || got.Message != "404 from source" {
		t.Errorf("unexpected job: %+v", got)
	}

	all, err := s.ListDownloadJobs(ctx)
	if err != nil {
		t.Fatalf("ListDownloadJobs: %v", err)
	}
	if len(all) != 3 || all[0].ID != 3 {
		t.Errorf("expected newest first, got %+v", all)
	}

	if err := s.DeleteDownloadJob(ctx, 2); err != nil {
		t.Fatalf("DeleteDownloadJob: %v", err)
	}
	if _, err := s.GetDownloadJob(ctx, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory_OverwriteAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	entries := []*domain.History{
		{ArchiveID: "a", UpdatedAt: base},
		{ArchiveID: "b", UpdatedAt: base.Add(time.Minute)},
		{ArchiveID: "a", UpdatedAt: base.Add(2 * time.Minute)}, // re-open a
	}
	for _, h := range entries {
		if err := s.SaveHistory(ctx, h); err != nil {
			t.Fatalf("SaveHistory: %v", err)
		}
	}

	got, err := s.ListHistory(ctx, 10)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one row per archive, got %d", len(got))
	}
	if got[0].ArchiveID != "a" {
		t.Errorf("most recent first, got %s", got[0].ArchiveID)
	}

	limited, err := s.ListHistory(ctx, 1)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d rows", len(limited))
	}
}

func TestArchiveImagesAndCaches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, img := range []*domain.ArchiveImage{
		{ID: "api/archives/abc/page?path=001.jpg", ArchiveID: "abc", Path: "/cache/1.jpg", Compressed: true},
		{ID: "api/archives/abc/page?path=002.jpg", ArchiveID: "abc", Path: "/cache/2.jpg"},
		{ID: "api/archives/xyz/page?path=001.jpg", ArchiveID: "xyz", Path: "/cache/3.jpg"},
	} {
		if err := s.SaveArchiveImage(ctx, img); err != nil {
			t.Fatalf("SaveArchiveImage: %v", err)
		}
	}

	pages, err := s.ListArchiveImages(ctx, "abc")
	if err != nil {
		t.Fatalf("ListArchiveImages: %v", err)
	}
	if len(pages) != 2 || !pages[0].Compressed {
		t.Errorf("unexpected pages: %+v", pages)
	}

	n, err := s.DeleteArchiveImageByPath(ctx, "/cache/3.jpg")
	if err != nil || n != 1 {
		t.Fatalf("DeleteArchiveImageByPath: n=%d err=%v", n, err)
	}

	cache := &domain.ArchiveCache{ID: "abc", Title: "t", TotalPages: 2, Thumbnail: []byte{0xff}}
	if err := s.SaveArchiveCache(ctx, cache); err != nil {
		t.Fatalf("SaveArchiveCache: %v", err)
	}
	cache.Cached = true
	if err := s.SaveArchiveCache(ctx, cache); err != nil {
		t.Fatalf("SaveArchiveCache: %v", err)
	}
	got, err := s.GetArchiveCache(ctx, "abc")
	if err != nil {
		t.Fatalf("GetArchiveCache: %v", err)
	}
	if !got.Cached || got.TotalPages != 2 || len(got.Thumbnail) != 1 {
		t.Errorf("unexpected cache row: %+v", got)
	}

	removed, err := s.DeleteAllArchiveCaches(ctx)
	if err != nil || removed != 1 {
		t.Errorf("DeleteAllArchiveCaches: n=%d err=%v", removed, err)
	}
}
