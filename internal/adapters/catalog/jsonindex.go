package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/phenrril/amzpo/internal/domain"
)

// JSONIndex is the static mapping dataset loaded once per run: two
// immutable tables, SKU to entry and child to parent. No mutation is
// exposed after Load.
type JSONIndex struct {
	entries map[string]*domain.MappingEntry
	parents map[string]string
}

type mappingFile struct {
	Parents  map[string]parentEntry  `json:"parents"`
	Products map[string]productEntry `json:"products"`
}

type parentEntry struct {
	Name     string     `json:"name"`
	Children []childRef `json:"children"`
}

type productEntry struct {
	Name        string                 `json:"name"`
	Accessories []domain.AccessoryLink `json:"accessories"`
}

// childRef accepts both the flat form ("SKU") and the object form
// ({"sku": ..., "accessories": [...]}) that older mapping exports used.
type childRef struct {
	SKU         string
	Accessories []domain.AccessoryLink
}

func (c *childRef) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &c.SKU); err == nil {
		return nil
	}
	var obj struct {
		SKU         string                 `json:"sku"`
		Accessories []domain.AccessoryLink `json:"accessories"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.SKU = obj.SKU
	c.Accessories = obj.Accessories
	return nil
}

func Load(path string) (*JSONIndex, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	var mf mappingFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}

	idx := &JSONIndex{
		entries: make(map[string]*domain.MappingEntry),
		parents: make(map[string]string),
	}
	for sku, p := range mf.Products {
		idx.entries[sku] = &domain.MappingEntry{SKU: sku, Name: p.Name, Accessories: p.Accessories}
	}
	for psku, p := range mf.Parents {
		entry := &domain.MappingEntry{SKU: psku, Name: p.Name}
		for _, child := range p.Children {
			if child.SKU == "" {
				continue
			}
			entry.Children = append(entry.Children, child.SKU)
			idx.parents[child.SKU] = psku
			// Every listed child is a known, orderable SKU even when the
			// products table has no row for it.
			if _, ok := idx.entries[child.SKU]; !ok {
				idx.entries[child.SKU] = &domain.MappingEntry{SKU: child.SKU, Accessories: child.Accessories}
			}
		}
		idx.entries[psku] = entry
	}
	return idx, nil
}

func (x *JSONIndex) Lookup(sku string) (*domain.MappingEntry, error) {
	e, ok := x.entries[sku]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (x *JSONIndex) ParentOf(sku string) (string, bool) {
	p, ok := x.parents[sku]
	return p, ok
}
