package usecase

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/amzpo/internal/domain"
)

// ResolverUC expands (SKU, quantity) requests into main lines plus
// their accessory lines using the catalog's ratio rules.
type ResolverUC struct {
	Catalog domain.CatalogIndex
}

// Resolve keeps the request order: each main line is followed by its
// accessories in the mapping's declared order. Unknown SKUs degrade to
// a bare main line with a warning; a batch spanning two parent families
// or naming a parent SKU directly is fatal.
func (uc *ResolverUC) Resolve(reqs []domain.OrderLineRequest) ([]domain.ResolvedLine, []domain.Warning, error) {
	var lines []domain.ResolvedLine
	var warnings []domain.Warning
	families := map[string][]string{}
	var familyOrder []string

	for _, req := range reqs {
		if req.SKU == "" || req.Quantity <= 0 {
			return nil, warnings, fmt.Errorf("invalid request %q: quantity must be a positive integer", req.SKU)
		}

		entry, err := uc.Catalog.Lookup(req.SKU)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, warnings, err
			}
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarnMappingNotFound,
				SKU:     req.SKU,
				Message: fmt.Sprintf("sku %s not in mapping, ordering without accessories", req.SKU),
			})
			log.Warn().Str("sku", req.SKU).Msg("mapping entry not found")
			lines = append(lines, domain.ResolvedLine{SKU: req.SKU, Quantity: req.Quantity, Role: domain.RoleMain})
			continue
		}
		if entry.IsParent() {
			return nil, warnings, &domain.NotOrderableError{SKU: req.SKU}
		}

		lines = append(lines, domain.ResolvedLine{
			SKU:      req.SKU,
			Name:     entry.Name,
			Quantity: req.Quantity,
			Role:     domain.RoleMain,
		})
		for _, acc := range entry.Accessories {
			qty := accessoryQty(req.Quantity, acc)
			if qty == 0 {
				continue
			}
			lines = append(lines, domain.ResolvedLine{
				SKU:      acc.SKU,
				Name:     acc.Name,
				Quantity: qty,
				Role:     domain.RoleAccessory,
			})
		}

		family := req.SKU
		if parent, ok := uc.Catalog.ParentOf(req.SKU); ok {
			family = parent
		}
		if _, seen := families[family]; !seen {
			familyOrder = append(familyOrder, family)
		}
		families[family] = append(families[family], req.SKU)
	}

	if len(familyOrder) > 1 {
		e := &domain.MultipleParentsError{}
		for _, parent := range familyOrder {
			for _, sku := range families[parent] {
				e.Conflicts = append(e.Conflicts, domain.ParentConflict{SKU: sku, Parent: parent})
			}
		}
		return nil, warnings, e
	}

	return lines, warnings, nil
}

// accessoryQty applies ratio_accessory/ratio_main to the main quantity,
// rounding half away from zero with a floor of one unit. A non-positive
// accessory ratio disables the link.
func accessoryQty(mainQty int, link domain.AccessoryLink) int {
	if link.RatioAccessory <= 0 || link.RatioMain <= 0 {
		return 0
	}
	q := decimal.NewFromInt(int64(mainQty)).
		Mul(decimal.NewFromFloat(link.RatioAccessory)).
		Div(decimal.NewFromFloat(link.RatioMain)).
		Round(0)
	n := int(q.IntPart())
	if n < 1 {
		n = 1
	}
	return n
}
