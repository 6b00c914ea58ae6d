package fasttext

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// Default configuration values.
const (
	DefaultBaseURL  = "https://dl.fbaipublicfiles.com/fasttext/vectors-crawl"
	DefaultModelDir = "models"
)

// Stage is a step of model acquisition, reported through ProgressFunc.
type Stage string

// Acquisition stages.
const (
	StageDownload   Stage = "download"
	StageDecompress Stage = "decompress"
	StageLoad       Stage = "load"
)

// ProgressFunc reports acquisition progress in bytes.
// total is -1 when the size is unknown.
type ProgressFunc func(lang string, stage Stage, done, total int64)

// Ensure Provider implements the interface.
var _ driven.EmbedderProvider = (*Provider)(nil)

// Provider downloads, caches and loads fastText models per language.
//
// Acquisition is idempotent at three levels: a loaded model is reused from
// memory, an extracted .vec file on disk skips download and decompression,
// and concurrent acquisitions of one language share a single attempt.
type Provider struct {
	settings domain.FastTextSettings
	client   *http.Client
	progress ProgressFunc

	group  singleflight.Group
	mu     sync.Mutex
	models map[string]*Model
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Provider) { p.progress = fn }
}

// NewProvider creates a provider.
func NewProvider(settings domain.FastTextSettings, opts ...Option) *Provider {
	if settings.BaseURL == "" {
		settings.BaseURL = DefaultBaseURL
	}
	if settings.ModelDir == "" {
		settings.ModelDir = DefaultModelDir
	}
	p := &Provider{
		settings: settings,
		client:   http.DefaultClient,
		models:   make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelStem returns the file stem of a language's model, e.g. "cc.en.300".
func ModelStem(lang string) string {
	return "cc." + lang + ".300"
}

// ModelPath returns where the extracted model for lang is cached.
func (p *Provider) ModelPath(lang string) string {
	return filepath.Join(p.settings.ModelDir, ModelStem(lang)+".vec")
}

// Acquire returns the loaded model for lang, downloading it first if needed.
func (p *Provider) Acquire(ctx context.Context, lang string) (driven.Embedder, error) {
	if err := validateLang(lang); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	p.mu.Lock()
	m, ok := p.models[lang]
	p.mu.Unlock()
	if ok {
		return m, nil
	}

	v, err, _ := p.group.Do(lang, func() (any, error) {
		p.mu.Lock()
		cached, ok := p.models[lang]
		p.mu.Unlock()
		if ok {
			return cached, nil
		}

		path, err := p.Fetch(ctx, lang)
		if err != nil {
			return nil, err
		}
		model, err := p.load(ctx, lang, path)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.models[lang] = model
		p.mu.Unlock()
		return model, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingUnavailable, ModelStem(lang), err)
	}
	return v.(*Model), nil
}

// Fetch makes sure the extracted model for lang is on disk and returns its
// path. An existing file is used as is. A leftover archive from an
// interrupted run is extracted without downloading again.
func (p *Provider) Fetch(ctx context.Context, lang string) (string, error) {
	if err := validateLang(lang); err != nil {
		return "", err
	}

	path := p.ModelPath(lang)
	if _, err := os.Stat(path); err == nil {
		logger.Info("Skipping download for model %s", path)
		return path, nil
	}

	if err := os.MkdirAll(p.settings.ModelDir, 0755); err != nil {
		return "", fmt.Errorf("creating model directory: %w", err)
	}

	gzPath := path + ".gz"
	if _, err := os.Stat(gzPath); errors.Is(err, os.ErrNotExist) {
		if err := p.download(ctx, lang, gzPath); err != nil {
			return "", err
		}
	}

	if err := p.extract(lang, gzPath, path); err != nil {
		return "", err
	}
	if err := os.Remove(gzPath); err != nil {
		logger.Warn("Could not remove %s: %v", gzPath, err)
	}
	return path, nil
}

// download fetches the archive into a temporary file and renames it into
// place, so a partial download is never mistaken for a complete one.
func (p *Provider) download(ctx context.Context, lang, dest string) error {
	url := strings.TrimRight(p.settings.BaseURL, "/") + "/" + ModelStem(lang) + ".vec.gz"
	logger.Info("Downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	_, err = io.Copy(f, p.track(lang, StageDownload, resp.Body, resp.ContentLength))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download: %w", err)
	}

	return os.Rename(tmp, dest)
}

// extract gunzips src into dest through a temporary file.
func (p *Provider) extract(lang, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	var size int64 = -1
	if info, err := in.Stat(); err == nil {
		size = info.Size()
	}

	zr, err := gzip.NewReader(p.track(lang, StageDecompress, in, size))
	if err != nil {
		// A corrupt archive would fail the same way next time.
		os.Remove(src)
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	defer zr.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	_, err = io.Copy(out, zr)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		os.Remove(src)
		return fmt.Errorf("decompress %s: %w", src, err)
	}

	return os.Rename(tmp, dest)
}

func (p *Provider) load(ctx context.Context, lang, path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	var size int64 = -1
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	logger.Info("Loading model %s", path)
	model, err := LoadVec(ctx, ModelStem(lang), p.track(lang, StageLoad, f, size), p.settings.MaxWords)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	logger.Debug("Loaded %d word vectors (%d dimensions) from %s", model.Words(), model.Dimensions(), path)
	return model, nil
}

func (p *Provider) track(lang string, stage Stage, r io.Reader, total int64) io.Reader {
	if p.progress == nil {
		return r
	}
	return &progressReader{r: r, report: func(done int64) { p.progress(lang, stage, done, total) }}
}

// Close releases every loaded model.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for lang, m := range p.models {
		m.Close()
		delete(p.models, lang)
	}
	return nil
}

// validateLang rejects tags that could escape the model directory.
func validateLang(lang string) error {
	if lang == "" {
		return errors.New("empty language tag")
	}
	for _, r := range lang {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid language tag %q", lang)
		}
	}
	return nil
}

// progressReader reports the running byte count after every read.
type progressReader struct {
	r      io.Reader
	done   int64
	report func(done int64)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.done += int64(n)
		pr.report(pr.done)
	}
	return n, err
}
