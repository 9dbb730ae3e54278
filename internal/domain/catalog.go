package domain

// AccessoryLink ties an accessory SKU to a main product. The ratio is
// always read against the main product's requested quantity and never
// compounded across links.
type AccessoryLink struct {
	SKU            string  `json:"sku"`
	Name           string  `json:"name,omitempty"`
	RatioMain      float64 `json:"ratio_main"`
	RatioAccessory float64 `json:"ratio_accessory"`
}

// MappingEntry is one row of the static catalog. Parent entries carry
// children and are not orderable themselves; product entries carry the
// accessory links used to expand an order line.
type MappingEntry struct {
	SKU         string
	Name        string
	Children    []string
	Accessories []AccessoryLink
}

func (e *MappingEntry) IsParent() bool { return len(e.Children) > 0 }

// CatalogIndex is the read-only parent/child/accessory lookup, loaded
// once per run.
type CatalogIndex interface {
	Lookup(sku string) (*MappingEntry, error)
	ParentOf(sku string) (string, bool)
}

// TemplateStore resolves a SKU to its stored order-line template
// fragment. Load returns ErrNotFound when no fragment exists.
type TemplateStore interface {
	Load(sku string) (*OrderTemplate, error)
}
