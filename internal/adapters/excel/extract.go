package excel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/amzpo/internal/domain"
)

// Extract reads an order artifact back into an OrderTemplate: editable
// ("yellow") header cells with their guessed labels, the product table,
// and the footer block. Formula cells are recomputed surfaces and are
// not extracted.
func Extract(path string) (*domain.OrderTemplate, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.LayoutError{Layout: path, Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	s := &sheetScan{
		values: map[string]string{},
		yellow: map[string]bool{},
	}
	for row := 1; row <= scanRows; row++ {
		for col := 1; col <= scanCols; col++ {
			addr, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return nil, err
			}
			val, _ := f.GetCellValue(sheet, addr)
			if v := strings.TrimSpace(val); v != "" {
				s.values[addr] = v
			}
			styleID, err := f.GetCellStyle(sheet, addr)
			if err == nil {
				if style, err := f.GetStyle(styleID); err == nil && style != nil && len(style.Fill.Color) > 0 {
					if yellowFill(style.Fill.Color[0]) {
						s.yellow[addr] = true
					}
				}
			}
		}
	}

	headerRow := s.findHeaderRow()
	if headerRow < 0 {
		return nil, &domain.LayoutError{Layout: path, Reason: "product table header not found"}
	}
	start := headerRow + 1

	products, lastRow := s.readProducts(start)
	extra := len(products) - defaultPlaceholderRows
	if extra < 0 {
		extra = 0
	}
	buyerRow := baseBuyerRow + extra
	buyerAddr := cell(buyerCol, buyerRow)
	supplierAddr := cell(supplierCol, buyerRow)

	tpl := &domain.OrderTemplate{
		Cells:    map[string]domain.CellValue{},
		Products: products,
		Footer: domain.Footer{
			Buyer:    s.values[buyerAddr],
			Supplier: s.values[supplierAddr],
		},
	}

	for addr := range s.yellow {
		_, row, err := excelize.CellNameToCoordinates(addr)
		if err != nil {
			continue
		}
		if row >= headerRow && row <= lastRow {
			continue
		}
		if addr == buyerAddr || addr == supplierAddr {
			continue
		}
		val, ok := s.values[addr]
		if !ok {
			continue
		}
		tpl.Cells[addr] = domain.CellValue{Key: s.guessKey(addr), Value: val}
	}
	return tpl, nil
}

type sheetScan struct {
	values map[string]string
	yellow map[string]bool
}

func (s *sheetScan) findHeaderRow() int {
	for row := 1; row < scanRows; row++ {
		qty, price := false, false
		for col := 1; col <= scanCols; col++ {
			addr, _ := excelize.CoordinatesToCellName(col, row)
			v := s.values[addr]
			if qtyHeaders[v] {
				qty = true
			}
			if priceHeaders[v] {
				price = true
			}
		}
		if qty && price {
			return row
		}
	}
	return -1
}

// readProducts walks rows from the table start until the SKU column
// runs out or the totals row begins. Returns the rows and the last row
// index consumed.
func (s *sheetScan) readProducts(start int) ([]domain.ProductRow, int) {
	var products []domain.ProductRow
	row := start
	for ; row < scanRows; row++ {
		sku := s.values[cell(colSKU, row)]
		if sku == "" || sku == "总计" || strings.HasPrefix(strings.ToUpper(sku), "TOTAL") {
			break
		}
		p := domain.ProductRow{
			SKU:       sku,
			ImagePath: s.values[cell(colImage, row)],
			Quantity:  atoiLoose(s.values[cell(colQty, row)]),
			UnitPrice: atofLoose(s.values[cell(colPrice, row)]),
			Packaging: s.values[cell(colPackaging, row)],
		}
		if desc := s.values[cell(colDesc, row)]; desc != "" {
			p.Description = []domain.DescriptionRun{{Text: desc}}
		}
		products = append(products, p)
	}
	return products, row - 1
}

// guessKey labels an editable cell from the nearest non-yellow text to
// its left on the same row, then upward in the same column.
func (s *sheetScan) guessKey(addr string) string {
	col, row, err := excelize.CellNameToCoordinates(addr)
	if err != nil {
		return ""
	}
	if col > 1 {
		left, _ := excelize.CoordinatesToCellName(col-1, row)
		if v, ok := s.values[left]; ok && !s.yellow[left] {
			return v
		}
	}
	for r := row - 1; r > 0; r-- {
		up, _ := excelize.CoordinatesToCellName(col, r)
		if v, ok := s.values[up]; ok && !s.yellow[up] {
			return v
		}
	}
	return ""
}

func atoiLoose(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func atofLoose(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
