package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/phenrril/amzpo/internal/domain"
)

type CellKind int

const (
	KindUnknown CellKind = iota
	KindEditable
	KindFormula
)

// Scan window: the fixed layout uses columns A-L and ends shortly after
// the footer block.
const (
	scanCols = 12
	scanRows = 90

	baseBuyerRow = 69
	buyerCol     = "B"
	supplierCol  = "E"

	// The shipped layout carries this many pre-styled product rows;
	// anything beyond them is inserted at render time.
	defaultPlaceholderRows = 3
)

var (
	qtyHeaders   = map[string]bool{"数量": true, "数量/个": true}
	priceHeaders = map[string]bool{"单价": true, "单价/个": true}
)

// Layout is the capability view of the fixed spreadsheet template:
// which addresses may be written ("yellow"), which compute derived
// values ("green"/formula), where the product table starts, and the
// label text used to validate cell keys.
type Layout struct {
	File  *excelize.File
	Path  string
	Sheet string

	kinds  map[string]CellKind
	values map[string]string
	labels map[string]string

	ProductStartRow int
	PlaceholderRows int
	BuyerRow        int
}

// LoadLayout opens the template and classifies every cell in the scan
// window. The source file is never written back; callers render into a
// copy via SaveAs.
func LoadLayout(path string) (*Layout, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open layout %s: %w", path, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, &domain.LayoutError{Layout: path, Reason: "workbook has no sheets"}
	}

	l := &Layout{
		File:   f,
		Path:   path,
		Sheet:  sheets[0],
		kinds:  map[string]CellKind{},
		values: map[string]string{},
		labels: map[string]string{},
	}
	if err := l.scan(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Layout) scan() error {
	for row := 1; row <= scanRows; row++ {
		for col := 1; col <= scanCols; col++ {
			addr, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return err
			}
			val, _ := l.File.GetCellValue(l.Sheet, addr)
			if v := strings.TrimSpace(val); v != "" {
				l.values[addr] = v
			}
			formula, _ := l.File.GetCellFormula(l.Sheet, addr)
			fill := l.cellFill(addr)
			switch {
			case formula != "" || greenFill(fill):
				l.kinds[addr] = KindFormula
			case yellowFill(fill):
				l.kinds[addr] = KindEditable
			default:
				if v := strings.TrimSpace(val); v != "" {
					l.labels[addr] = v
				}
			}
		}
	}

	headerRow := l.findHeaderRow()
	if headerRow < 0 {
		return &domain.LayoutError{Layout: l.Path, Reason: "product table header not found"}
	}
	l.ProductStartRow = headerRow + 1
	l.PlaceholderRows = l.countPlaceholderRows()
	if l.PlaceholderRows == 0 {
		return &domain.LayoutError{Layout: l.Path, Reason: "no editable product rows below header"}
	}
	l.BuyerRow = baseBuyerRow

	var missing []string
	for _, addr := range []string{
		domain.CellSupplier,
		domain.CellOrderNo,
		domain.CellDate,
		fmt.Sprintf("%s%d", buyerCol, l.BuyerRow),
		fmt.Sprintf("%s%d", supplierCol, l.BuyerRow),
	} {
		if l.kinds[addr] != KindEditable {
			missing = append(missing, addr)
		}
	}
	if len(missing) > 0 {
		return &domain.LayoutError{Layout: l.Path, Reason: "required editable cells missing", Missing: missing}
	}
	return nil
}

func (l *Layout) cellFill(addr string) string {
	styleID, err := l.File.GetCellStyle(l.Sheet, addr)
	if err != nil {
		return ""
	}
	style, err := l.File.GetStyle(styleID)
	if err != nil || style == nil || len(style.Fill.Color) == 0 {
		return ""
	}
	return style.Fill.Color[0]
}

func (l *Layout) findHeaderRow() int {
	for row := 1; row < scanRows; row++ {
		qty, price := false, false
		for col := 1; col <= scanCols; col++ {
			addr, _ := excelize.CoordinatesToCellName(col, row)
			v := l.values[addr]
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

// countPlaceholderRows counts the consecutive pre-styled rows below the
// header where columns A-G are all editable.
func (l *Layout) countPlaceholderRows() int {
	n := 0
	for row := l.ProductStartRow; row < scanRows; row++ {
		all := true
		for col := 1; col <= 7; col++ {
			addr, _ := excelize.CoordinatesToCellName(col, row)
			if l.kinds[addr] != KindEditable {
				all = false
				break
			}
		}
		if !all {
			break
		}
		n++
	}
	return n
}

func (l *Layout) Kind(addr string) CellKind { return l.kinds[addr] }

// KeyMatches checks a cell key against the layout label at the address
// itself or immediately to its left, the same contract the template's
// authors validate by hand.
func (l *Layout) KeyMatches(addr, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	if l.values[addr] == key {
		return true
	}
	col, row, err := excelize.CellNameToCoordinates(addr)
	if err != nil || col <= 1 {
		return false
	}
	left, err := excelize.CoordinatesToCellName(col-1, row)
	if err != nil {
		return false
	}
	return l.values[left] == key
}

func (l *Layout) Close() error { return l.File.Close() }

func yellowFill(color string) bool {
	return strings.HasSuffix(strings.ToUpper(color), "FFFF00")
}

func greenFill(color string) bool {
	c := strings.ToUpper(color)
	for _, g := range []string{"00FF00", "C6EFCE", "00B050", "92D050"} {
		if strings.HasSuffix(c, g) {
			return true
		}
	}
	return false
}
