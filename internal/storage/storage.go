package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// WriteJSON writes v as indented JSON through a temp file and rename.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, path)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ResultStore writes one output file per site into a directory.
type ResultStore struct {
	mu  sync.Mutex
	dir string
}

func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ResultStore{dir: dir}, nil
}

func (s *ResultStore) Path(site, backend string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", site, backend))
}

func (s *ResultStore) Save(out *models.Output) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out.Products == nil {
		out.Products = []models.Product{}
	}
	if out.Categories == nil {
		out.Categories = []models.Category{}
	}

	path := s.Path(out.Site, out.Backend)
	if err := WriteJSON(path, out); err != nil {
		return "", err
	}
	return path, nil
}

func (s *ResultStore) Load(site, backend string) (*models.Output, error) {
	var out models.Output
	if err := ReadJSON(s.Path(site, backend), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
