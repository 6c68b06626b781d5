// Package catalog loads the static product list and applies the category filter.
// Sources are read on every call; nothing is cached between requests.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"advisor-backend/internal/models"
)

type Source interface {
	Load(ctx context.Context) ([]models.Product, error)
}

// NewSource picks an HTTP source for http(s) URLs and a file source otherwise.
func NewSource(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location)
	}
	return NewFileSource(location)
}

// FileSource reads a JSON or YAML catalog file ({products: [...]}).
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(ctx context.Context) ([]models.Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", s.path, err)
	}

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *HTTPSource) Load(ctx context.Context) ([]models.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "yaml") {
		return decodeYAML(data)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) ([]models.Product, error) {
	var c models.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return c.Products, nil
}

func decodeYAML(data []byte) ([]models.Product, error) {
	var c models.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return c.Products, nil
}

// FilterByCategory keeps products whose category equals category exactly.
// An empty category selects nothing: no products are shown until a
// category is chosen.
func FilterByCategory(products []models.Product, category string) []models.Product {
	out := []models.Product{}
	if category == "" {
		return out
	}
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func Categories(products []models.Product) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

func Find(products []models.Product, id models.ProductID) (models.Product, bool) {
	for _, p := range products {
		if p.ID.Equal(id) {
			return p, true
		}
	}
	return models.Product{}, false
}
