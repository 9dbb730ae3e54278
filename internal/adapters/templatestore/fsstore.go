package templatestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/phenrril/amzpo/internal/domain"
)

// FSStore serves per-SKU template fragments from a directory of
// <sku>.json files.
type FSStore struct {
	dir string
}

func New(dir string) *FSStore { return &FSStore{dir: dir} }

func (s *FSStore) Load(sku string) (*domain.OrderTemplate, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, sku+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read template %s: %w", sku, err)
	}
	var tpl domain.OrderTemplate
	if err := json.Unmarshal(b, &tpl); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", sku, err)
	}
	return &tpl, nil
}

// Save writes a fragment back with the same passthrough guarantees it
// was read under: unknown keys survive untouched. The write is staged
// to a temp file and renamed so a crash never leaves a torn fragment.
func (s *FSStore) Save(sku string, tpl *domain.OrderTemplate) error {
	b, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template %s: %w", sku, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	dest := filepath.Join(s.dir, sku+".json")
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
