package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/lanraragi/lanraragitest"
	"github.com/lanreader/lanreader/internal/logger"
	"github.com/lanreader/lanreader/internal/media/images"
	"github.com/lanreader/lanreader/internal/prefetch"
	"github.com/lanreader/lanreader/internal/search"
	"github.com/lanreader/lanreader/internal/store/sqlite"
	"github.com/lanreader/lanreader/internal/validation"
)

const testAPIKey = "secret"

type testEnv struct {
	srv      *lanraragitest.Server
	client   *lanraragi.Client
	store    *sqlite.Store
	files    *images.Storage
	index    *search.ArchiveIndex
	pipeline *prefetch.Pipeline
	tasks    *Tasks

	tags       *TagService
	archives   *ArchiveService
	search     *SearchService
	categories *CategoryService
	pages      *PageService
	downloads  *DownloadService
	cache      *CacheService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()

	srv := lanraragitest.NewServer(t, testAPIKey)
	client, err := lanraragi.New(lanraragi.Options{ServerURL: srv.URL, APIKey: testAPIKey}, log)
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := sqlite.Open(filepath.Join(dir, "cache.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	files, err := images.NewStorage(dir)
	require.NoError(t, err)

	index, err := search.NewArchiveIndex(log)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	v := validation.New()
	tasks := NewTasks(log)
	pipeline := prefetch.New(client, st, files, nil, prefetch.Options{}, log)

	// A long delay keeps rebuilds under test control via Flush.
	tags := NewTagService(st, index, time.Hour, log)
	t.Cleanup(tags.Close)

	env := &testEnv{
		srv:      srv,
		client:   client,
		store:    st,
		files:    files,
		index:    index,
		pipeline: pipeline,
		tasks:    tasks,
		tags:     tags,
	}
	env.archives = NewArchiveService(st, client, tags, files, tasks, v, log)
	env.search = NewSearchService(st, client, index, log)
	env.categories = NewCategoryService(st, client, tasks, v, log)
	env.pages = NewPageService(st, client, pipeline, files, log)
	env.downloads = NewDownloadService(st, client, env.archives, v, log)
	env.cache = NewCacheService(st, client, pipeline, files, log)
	t.Cleanup(tasks.Wait)
	return env
}

func (e *testEnv) addArchive(id, title, tags string, pages int) {
	data := make([][]byte, pages)
	for i := range data {
		data[i] = []byte(id + "-page")
	}
	e.srv.AddArchive(lanraragi.ArchiveSummary{ID: id, Title: title, Tags: tags, IsNew: true}, data...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTasks_DetachesFromCallerContext(t *testing.T) {
	tasks := NewTasks(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Bool
	tasks.Go(ctx, "test", func(ctx context.Context) error {
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ran.Store(true)
		return nil
	})
	tasks.Go(ctx, "failing", func(context.Context) error {
		return errors.New("remote down")
	})
	tasks.Wait()

	assert.True(t, ran.Load(), "task context must not inherit cancellation")
}
