package usecase

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/amzpo/internal/domain"
)

// MergeUC partitions resolved lines by supplier and combines each
// group's per-SKU templates into one order document.
type MergeUC struct {
	Templates domain.TemplateStore
}

// GroupAndMerge loads each line's template, stamps the resolved
// quantity, then folds same-supplier templates together. Within a group
// the first template is authoritative: a later cell only wins when the
// earlier value is empty, and duplicate SKUs collapse into one row with
// summed quantities. Group order follows first appearance, so output is
// deterministic for a given request order.
func (uc *MergeUC) GroupAndMerge(lines []domain.ResolvedLine) ([]*domain.MergedOrderTemplate, []domain.Warning, error) {
	var warnings []domain.Warning
	groups := map[string]*domain.MergedOrderTemplate{}
	var order []string

	for _, line := range lines {
		tpl, err := uc.Templates.Load(line.SKU)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, warnings, err
			}
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarnTemplateNotFound,
				SKU:     line.SKU,
				Message: fmt.Sprintf("no template for %s, using bare row", line.SKU),
			})
			log.Warn().Str("sku", line.SKU).Msg("template not found")
			tpl = syntheticTemplate(line)
		} else {
			tpl = tpl.Clone()
		}

		for i := range tpl.Products {
			tpl.Products[i].Quantity = line.Quantity
		}

		supplier := tpl.SupplierName()
		if supplier == "" {
			supplier = domain.UnspecifiedSupplier
		}

		g, ok := groups[supplier]
		if !ok {
			g = &domain.MergedOrderTemplate{
				OrderTemplate: domain.OrderTemplate{Cells: map[string]domain.CellValue{}},
				Supplier:      supplier,
				Origins:       map[string][]string{},
			}
			groups[supplier] = g
			order = append(order, supplier)
		}
		warnings = append(warnings, mergeInto(g, tpl, line.SKU)...)
	}

	out := make([]*domain.MergedOrderTemplate, 0, len(order))
	for _, supplier := range order {
		out = append(out, groups[supplier])
	}
	return out, warnings, nil
}

func syntheticTemplate(line domain.ResolvedLine) *domain.OrderTemplate {
	return &domain.OrderTemplate{
		Cells:    map[string]domain.CellValue{},
		Products: []domain.ProductRow{{SKU: line.SKU, Name: line.Name}},
	}
}

// mergeInto folds one template into the group document. Source tracks
// the resolved SKU that contributed each row so collapses stay
// auditable.
func mergeInto(g *domain.MergedOrderTemplate, tpl *domain.OrderTemplate, source string) []domain.Warning {
	var warnings []domain.Warning

	for addr, incoming := range tpl.Cells {
		existing, ok := g.Cells[addr]
		if !ok || existing.Empty() {
			g.Cells[addr] = incoming
			continue
		}
		if !incoming.Empty() && incoming.String() != existing.String() {
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarnCellConflict,
				SKU:     source,
				Message: fmt.Sprintf("cell %s: keeping %q, ignoring %q", addr, existing.String(), incoming.String()),
			})
			log.Debug().Str("addr", addr).Str("kept", existing.String()).Str("ignored", incoming.String()).Msg("conflicting cell value")
		}
	}

	for _, row := range tpl.Products {
		if idx := findRow(g.Products, row.SKU); idx >= 0 {
			// Same SKU in one supplier group: sum quantities, keep the
			// first row's description, price and image.
			g.Products[idx].Quantity += row.Quantity
		} else {
			g.Products = append(g.Products, row)
		}
		g.Origins[row.SKU] = append(g.Origins[row.SKU], source)
	}

	if g.Footer.Buyer == "" {
		g.Footer.Buyer = tpl.Footer.Buyer
	}
	if g.Footer.Supplier == "" {
		g.Footer.Supplier = tpl.Footer.Supplier
	}
	for k, v := range tpl.Footer.Extra {
		if g.Footer.Extra == nil {
			g.Footer.Extra = map[string]json.RawMessage{}
		}
		if _, ok := g.Footer.Extra[k]; !ok {
			g.Footer.Extra[k] = v
		}
	}
	for k, v := range tpl.Extra {
		if g.Extra == nil {
			g.Extra = map[string]json.RawMessage{}
		}
		if _, ok := g.Extra[k]; !ok {
			g.Extra[k] = v
		}
	}

	return warnings
}

func findRow(rows []domain.ProductRow, sku string) int {
	for i := range rows {
		if rows[i].SKU == sku {
			return i
		}
	}
	return -1
}
