package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"swrfmods/pkg/models"
)

// DatasetPath is where the dataset is served.
const DatasetPath = "/mods_data.json"

// Source fetches the whole dataset.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]models.ModRecord, error)
}

// HTTPSource GETs mods_data.json from a site.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource accepts either the dataset URL or the site base URL.
func NewHTTPSource(url string) *HTTPSource {
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, ".json") {
		url += DatasetPath
	}
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) FetchAll(ctx context.Context) ([]models.ModRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dataset: status %d: %s", resp.StatusCode, string(body))
	}
	return Decode(resp.Body)
}

// FileSource reads mods_data.json from disk on every fetch.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) FetchAll(ctx context.Context) ([]models.ModRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a JSON array of mod records.
func Decode(r io.Reader) ([]models.ModRecord, error) {
	var records []models.ModRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("dataset: decode json: %w", err)
	}
	return records, nil
}

// Loader fetches the dataset fresh on every call and degrades to an empty
// list on any failure.
type Loader struct {
	Source Source
	Logger *zap.Logger
}

func NewLoader(src Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Source: src, Logger: logger.Named("dataset")}
}

func (l *Loader) Load(ctx context.Context) []models.ModRecord {
	records, err := l.Source.FetchAll(ctx)
	if err != nil {
		l.Logger.Warn("dataset load failed", zap.String("source", l.Source.Name()), zap.Error(err))
		return nil
	}
	return records
}
