package fasttext

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// modelServer serves gzipped tinyVec for every cc.<lang>.300.vec.gz.
type modelServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newModelServer(t *testing.T, body []byte) *modelServer {
	t.Helper()
	s := &modelServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.URL.Path != "/cc.en.300.vec.gz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestProvider(t *testing.T, srv *modelServer, dir string, opts ...Option) *Provider {
	t.Helper()
	p := NewProvider(domain.FastTextSettings{ModelDir: dir, BaseURL: srv.URL}, opts...)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewProvider_Defaults(t *testing.T) {
	p := NewProvider(domain.FastTextSettings{})

	assert.Equal(t, DefaultBaseURL, p.settings.BaseURL)
	assert.Equal(t, filepath.Join(DefaultModelDir, "cc.en.300.vec"), p.ModelPath("en"))
}

func TestProvider_Acquire_DownloadsAndExtracts(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	dir := t.TempDir()
	p := newTestProvider(t, srv, dir)

	e, err := p.Acquire(context.Background(), "en")

	require.NoError(t, err)
	assert.Equal(t, "cc.en.300", e.ModelName())
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.FileExists(t, filepath.Join(dir, "cc.en.300.vec"))
	assert.NoFileExists(t, filepath.Join(dir, "cc.en.300.vec.gz"))
	assert.NoFileExists(t, filepath.Join(dir, "cc.en.300.vec.gz.part"))
}

func TestProvider_Acquire_Idempotent(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	dir := t.TempDir()

	first := newTestProvider(t, srv, dir)
	e1, err := first.Acquire(context.Background(), "en")
	require.NoError(t, err)
	e2, err := first.Acquire(context.Background(), "en")
	require.NoError(t, err)
	assert.Same(t, e1, e2)

	info, err := os.Stat(first.ModelPath("en"))
	require.NoError(t, err)

	// A fresh provider finds the extracted file and neither downloads nor
	// decompresses.
	var stages []Stage
	second := newTestProvider(t, srv, dir, WithProgress(func(_ string, stage Stage, _, _ int64) {
		stages = append(stages, stage)
	}))
	_, err = second.Acquire(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.NotContains(t, stages, StageDownload)
	assert.NotContains(t, stages, StageDecompress)
	after, err := os.Stat(second.ModelPath("en"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestProvider_Acquire_Concurrent(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	p := newTestProvider(t, srv, t.TempDir())

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := p.Acquire(context.Background(), "en")
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.hits.Load())
	for _, r := range results[1:] {
		assert.Same(t, results[0], r)
	}
}

func TestProvider_Acquire_ResumesFromArchive(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cc.en.300.vec.gz"), gzipped(t, tinyVec), 0600))
	p := newTestProvider(t, srv, dir)

	_, err := p.Acquire(context.Background(), "en")

	require.NoError(t, err)
	assert.Zero(t, srv.hits.Load())
	assert.NoFileExists(t, filepath.Join(dir, "cc.en.300.vec.gz"))
}

func TestProvider_Acquire_NotFound(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	dir := t.TempDir()
	p := newTestProvider(t, srv, dir)

	_, err := p.Acquire(context.Background(), "xx")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "status 404")
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestProvider_Acquire_CorruptArchive(t *testing.T) {
	srv := newModelServer(t, []byte("definitely not gzip"))
	dir := t.TempDir()
	p := newTestProvider(t, srv, dir)

	_, err := p.Acquire(context.Background(), "en")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "corrupt archive and partial output are removed")
}

func TestProvider_Acquire_InvalidLang(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	p := newTestProvider(t, srv, t.TempDir())

	for _, lang := range []string{"", "../etc", "en/us", "e n"} {
		_, err := p.Acquire(context.Background(), lang)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable, lang)
	}
	assert.Zero(t, srv.hits.Load())
}

func TestProvider_Progress(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	var mu sync.Mutex
	last := map[Stage]int64{}
	p := newTestProvider(t, srv, t.TempDir(), WithProgress(func(lang string, stage Stage, done, _ int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "en", lang)
		assert.GreaterOrEqual(t, done, last[stage])
		last[stage] = done
	}))

	_, err := p.Acquire(context.Background(), "en")

	require.NoError(t, err)
	assert.Positive(t, last[StageDownload])
	assert.Positive(t, last[StageDecompress])
	assert.Equal(t, int64(len(tinyVec)), last[StageLoad])
}

func TestProvider_Close(t *testing.T) {
	srv := newModelServer(t, gzipped(t, tinyVec))
	p := newTestProvider(t, srv, t.TempDir())
	e, err := p.Acquire(context.Background(), "en")
	require.NoError(t, err)

	require.NoError(t, p.Close())

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Empty(t, p.models)
}
