package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Product-table keys fixed by the spreadsheet layout. They are part of
// the on-disk template contract and must never be renamed.
const (
	KeySKU         = "产品编号"
	KeyName        = "产品名称"
	KeyImage       = "产品图片"
	KeyDescription = "描述"
	KeyQuantity    = "数量/个"
	KeyUnitPrice   = "单价"
	KeyPackaging   = "包装方式"
)

// Fixed header addresses in the layout.
const (
	CellSupplier = "B3"
	CellOrderNo  = "G3"
	CellDate     = "G4"
)

// UnspecifiedSupplier groups lines whose template carries no supplier.
const UnspecifiedSupplier = "unspecified"

// CellValue is one labelled header field. Unknown sibling keys survive
// a read-modify-write cycle through Extra.
type CellValue struct {
	Key   string
	Value any
	Extra map[string]json.RawMessage
}

func (c CellValue) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for k, v := range c.Extra {
		m[k] = v
	}
	key, err := json.Marshal(c.Key)
	if err != nil {
		return nil, err
	}
	val, err := json.Marshal(c.Value)
	if err != nil {
		return nil, err
	}
	m["key"] = key
	m["value"] = val
	return json.Marshal(m)
}

func (c *CellValue) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "key":
			if err := json.Unmarshal(v, &c.Key); err != nil {
				return err
			}
		case "value":
			if err := json.Unmarshal(v, &c.Value); err != nil {
				return err
			}
		default:
			if c.Extra == nil {
				c.Extra = map[string]json.RawMessage{}
			}
			c.Extra[k] = v
		}
	}
	return nil
}

// String renders the cell value the way it would appear in a sheet.
func (c CellValue) String() string {
	return stringify(c.Value)
}

// Empty reports whether the cell carries no usable value.
func (c CellValue) Empty() bool {
	return strings.TrimSpace(c.String()) == ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// DescriptionRun is one styled fragment of a product description.
type DescriptionRun struct {
	Text       string `json:"text"`
	Bold       bool   `json:"bold,omitempty"`
	Background string `json:"background_color,omitempty"`
	FontColor  string `json:"font_color,omitempty"`
}

// Plain reports whether the run carries no styling.
func (r DescriptionRun) Plain() bool {
	return !r.Bold && r.Background == "" && r.FontColor == ""
}

// ProductRow is one line of the product table. The JSON form uses the
// fixed Chinese keys above; anything else is passed through untouched.
type ProductRow struct {
	SKU         string
	Name        string
	ImagePath   string
	Description []DescriptionRun
	Quantity    int
	UnitPrice   float64
	Packaging   string
	Extra       map[string]json.RawMessage
}

// DescriptionText flattens the styled runs into plain text.
func (p *ProductRow) DescriptionText() string {
	var b strings.Builder
	for _, r := range p.Description {
		b.WriteString(r.Text)
	}
	return b.String()
}

func (p ProductRow) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for k, v := range p.Extra {
		m[k] = v
	}
	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m[key] = b
		return nil
	}
	if err := set(KeySKU, p.SKU); err != nil {
		return nil, err
	}
	if p.Name != "" {
		if err := set(KeyName, p.Name); err != nil {
			return nil, err
		}
	}
	if p.ImagePath != "" {
		if err := set(KeyImage, p.ImagePath); err != nil {
			return nil, err
		}
	}
	// A single unstyled run keeps the original scalar form on disk.
	switch {
	case len(p.Description) == 0:
		if err := set(KeyDescription, ""); err != nil {
			return nil, err
		}
	case len(p.Description) == 1 && p.Description[0].Plain():
		if err := set(KeyDescription, p.Description[0].Text); err != nil {
			return nil, err
		}
	default:
		if err := set(KeyDescription, p.Description); err != nil {
			return nil, err
		}
	}
	if err := set(KeyQuantity, p.Quantity); err != nil {
		return nil, err
	}
	if err := set(KeyUnitPrice, p.UnitPrice); err != nil {
		return nil, err
	}
	if err := set(KeyPackaging, p.Packaging); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (p *ProductRow) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case KeySKU:
			_ = json.Unmarshal(v, &p.SKU)
		case KeyName:
			_ = json.Unmarshal(v, &p.Name)
		case KeyImage:
			_ = json.Unmarshal(v, &p.ImagePath)
		case KeyPackaging:
			_ = json.Unmarshal(v, &p.Packaging)
		case KeyDescription:
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				if s != "" {
					p.Description = []DescriptionRun{{Text: s}}
				}
				continue
			}
			_ = json.Unmarshal(v, &p.Description)
		case KeyQuantity:
			p.Quantity = toInt(v)
		case KeyUnitPrice:
			p.UnitPrice = toFloat(v)
		default:
			if p.Extra == nil {
				p.Extra = map[string]json.RawMessage{}
			}
			p.Extra[k] = v
		}
	}
	return nil
}

func toInt(raw json.RawMessage) int {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func toFloat(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

// Footer holds the buyer/supplier signature block.
type Footer struct {
	Buyer    string
	Supplier string
	Extra    map[string]json.RawMessage
}

func (f Footer) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for k, v := range f.Extra {
		m[k] = v
	}
	if f.Buyer != "" {
		b, err := json.Marshal(f.Buyer)
		if err != nil {
			return nil, err
		}
		m["buyer"] = b
	}
	if f.Supplier != "" {
		b, err := json.Marshal(f.Supplier)
		if err != nil {
			return nil, err
		}
		m["supplier"] = b
	}
	return json.Marshal(m)
}

func (f *Footer) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "buyer":
			_ = json.Unmarshal(v, &f.Buyer)
		case "supplier":
			_ = json.Unmarshal(v, &f.Supplier)
		default:
			if f.Extra == nil {
				f.Extra = map[string]json.RawMessage{}
			}
			f.Extra[k] = v
		}
	}
	return nil
}

// OrderTemplate is both the per-SKU fragment on disk and the shape of a
// merged order document.
type OrderTemplate struct {
	Cells    map[string]CellValue
	Products []ProductRow
	Footer   Footer
	Extra    map[string]json.RawMessage
}

func (t OrderTemplate) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for k, v := range t.Extra {
		m[k] = v
	}
	cells := t.Cells
	if cells == nil {
		cells = map[string]CellValue{}
	}
	products := t.Products
	if products == nil {
		products = []ProductRow{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return nil, err
	}
	m["cells"] = b
	if b, err = json.Marshal(products); err != nil {
		return nil, err
	}
	m["products"] = b
	if b, err = json.Marshal(t.Footer); err != nil {
		return nil, err
	}
	m["footer"] = b
	return json.Marshal(m)
}

func (t *OrderTemplate) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "cells":
			if err := json.Unmarshal(v, &t.Cells); err != nil {
				return err
			}
		case "products":
			if err := json.Unmarshal(v, &t.Products); err != nil {
				return err
			}
		case "footer":
			if err := json.Unmarshal(v, &t.Footer); err != nil {
				return err
			}
		default:
			if t.Extra == nil {
				t.Extra = map[string]json.RawMessage{}
			}
			t.Extra[k] = v
		}
	}
	return nil
}

// CellString returns the rendered value at addr, or "".
func (t *OrderTemplate) CellString(addr string) string {
	if t.Cells == nil {
		return ""
	}
	return t.Cells[addr].String()
}

// SupplierName resolves the supplier the template belongs to: footer
// first, then the supplier header cell.
func (t *OrderTemplate) SupplierName() string {
	if s := strings.TrimSpace(t.Footer.Supplier); s != "" {
		return s
	}
	return strings.TrimSpace(t.CellString(CellSupplier))
}

// Clone returns a deep copy so merging never aliases store data.
func (t *OrderTemplate) Clone() *OrderTemplate {
	out := &OrderTemplate{Footer: Footer{Buyer: t.Footer.Buyer, Supplier: t.Footer.Supplier}}
	if t.Cells != nil {
		out.Cells = make(map[string]CellValue, len(t.Cells))
		for addr, cv := range t.Cells {
			out.Cells[addr] = CellValue{Key: cv.Key, Value: cv.Value, Extra: copyRaw(cv.Extra)}
		}
	}
	if t.Products != nil {
		out.Products = make([]ProductRow, len(t.Products))
		for i, p := range t.Products {
			q := p
			q.Description = append([]DescriptionRun(nil), p.Description...)
			q.Extra = copyRaw(p.Extra)
			out.Products[i] = q
		}
	}
	out.Footer.Extra = copyRaw(t.Footer.Extra)
	out.Extra = copyRaw(t.Extra)
	return out
}

func copyRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// MergedOrderTemplate is one supplier group's combined document.
// Origins records which resolved SKUs fed each product row so duplicate
// collapses stay auditable; it is not serialized.
type MergedOrderTemplate struct {
	OrderTemplate
	Supplier string
	Origins  map[string][]string
}
