package excel

import (
	"context"
	"fmt"
	// Decoders registered for picture auto sizing.
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/amzpo/internal/domain"
)

// Product table columns fixed by the layout.
const (
	colSKU       = "A"
	colImage     = "B"
	colDesc      = "C"
	colQty       = "D"
	colPrice     = "E"
	colAmount    = "F"
	colPackaging = "G"
)

// Writer renders merged order documents into copies of the fixed
// layout. Each Write opens the layout fresh, so concurrent group
// writers share nothing.
type Writer struct {
	LayoutPath string
	OutDir     string
	ImageDir   string
}

func NewWriter(layoutPath, outDir, imageDir string) *Writer {
	return &Writer{LayoutPath: layoutPath, OutDir: outDir, ImageDir: imageDir}
}

func (w *Writer) Write(ctx context.Context, m *domain.MergedOrderTemplate) (domain.WriteResult, error) {
	res := domain.WriteResult{Supplier: m.Supplier}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	layout, err := LoadLayout(w.LayoutPath)
	if err != nil {
		return res, err
	}
	defer layout.Close()

	if err := w.validateKeys(layout, m); err != nil {
		return res, err
	}

	w.fillCells(layout, m, &res)
	extra := w.insertProducts(layout, m, &res)
	w.fillFooter(layout, m, extra)

	dest, err := w.publish(layout.File, m)
	if err != nil {
		return res, err
	}
	res.Path = dest
	res.Rows = len(m.Products)
	log.Info().Str("supplier", m.Supplier).Str("path", dest).Int("rows", res.Rows).Msg("artifact written")
	return res, nil
}

func (w *Writer) validateKeys(layout *Layout, m *domain.MergedOrderTemplate) error {
	var bad []string
	for addr, cv := range m.Cells {
		if layout.Kind(addr) == KindEditable && !layout.KeyMatches(addr, cv.Key) {
			bad = append(bad, fmt.Sprintf("%s (%s)", addr, cv.Key))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return &domain.LayoutError{Layout: layout.Path, Reason: "cell keys do not match layout labels", Missing: bad}
}

func (w *Writer) fillCells(layout *Layout, m *domain.MergedOrderTemplate, res *domain.WriteResult) {
	addrs := make([]string, 0, len(m.Cells))
	for addr := range m.Cells {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		cv := m.Cells[addr]
		switch layout.Kind(addr) {
		case KindEditable:
			_ = layout.File.SetCellValue(layout.Sheet, addr, cv.Value)
		case KindFormula:
			// Formula cells keep computing their totals natively.
			res.Warnings = append(res.Warnings, domain.Warning{
				Code:    domain.WarnFormulaCell,
				Message: fmt.Sprintf("cell %s is a formula cell, value %q not written", addr, cv.String()),
			})
			log.Debug().Str("addr", addr).Msg("refusing to overwrite formula cell")
		default:
			res.Warnings = append(res.Warnings, domain.Warning{
				Code:    domain.WarnUnknownCell,
				Message: fmt.Sprintf("cell %s is not editable in the layout, value %q not written", addr, cv.String()),
			})
		}
	}
}

func (w *Writer) insertProducts(layout *Layout, m *domain.MergedOrderTemplate, res *domain.WriteResult) int {
	f, sheet := layout.File, layout.Sheet
	start := layout.ProductStartRow

	extra := len(m.Products) - layout.PlaceholderRows
	if extra > 0 {
		_ = f.InsertRows(sheet, start+layout.PlaceholderRows, extra)
	} else {
		extra = 0
	}

	for i := range m.Products {
		row := &m.Products[i]
		r := start + i
		_ = f.SetCellValue(sheet, cell(colSKU, r), row.SKU)
		if warn := w.placeImage(f, sheet, r, row); warn != nil {
			res.Warnings = append(res.Warnings, *warn)
		}
		w.writeDescription(f, sheet, r, row)
		_ = f.SetCellValue(sheet, cell(colQty, r), row.Quantity)
		_ = f.SetCellValue(sheet, cell(colPrice, r), row.UnitPrice)
		_ = f.SetCellValue(sheet, cell(colPackaging, r), row.Packaging)
		if row.Quantity > 0 && row.UnitPrice > 0 {
			// Amount stays a native formula so the workbook recomputes
			// it instead of carrying a baked-in number.
			_ = f.SetCellFormula(sheet, cell(colAmount, r), fmt.Sprintf("%s%d*%s%d", colQty, r, colPrice, r))
		}
	}

	rowCount := len(m.Products)
	if rowCount < layout.PlaceholderRows {
		rowCount = layout.PlaceholderRows
	}
	totalRow := start + rowCount
	_ = f.SetCellFormula(sheet, cell(colQty, totalRow), fmt.Sprintf("SUM(%s%d:%s%d)", colQty, start, colQty, totalRow-1))
	_ = f.SetCellFormula(sheet, cell(colAmount, totalRow), fmt.Sprintf("SUM(%s%d:%s%d)", colAmount, start, colAmount, totalRow-1))
	return extra
}

func (w *Writer) writeDescription(f *excelize.File, sheet string, r int, row *domain.ProductRow) {
	addr := cell(colDesc, r)
	text := row.DescriptionText()
	if row.Name != "" {
		if text != "" {
			text = row.Name + " " + text
		} else {
			text = row.Name
		}
	}

	styled := false
	for _, run := range row.Description {
		if !run.Plain() {
			styled = true
			break
		}
	}
	if !styled {
		_ = f.SetCellValue(sheet, addr, text)
		return
	}

	runs := make([]excelize.RichTextRun, 0, len(row.Description)+1)
	if row.Name != "" {
		runs = append(runs, excelize.RichTextRun{Text: row.Name + " "})
	}
	background := ""
	for _, dr := range row.Description {
		run := excelize.RichTextRun{Text: dr.Text}
		if dr.Bold || dr.FontColor != "" {
			run.Font = &excelize.Font{Bold: dr.Bold, Color: dr.FontColor}
		}
		if background == "" && dr.Background != "" {
			background = dr.Background
		}
		runs = append(runs, run)
	}
	_ = f.SetCellRichText(sheet, addr, runs)
	if background != "" {
		// Run backgrounds are a cell-level property in xlsx.
		if styleID, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{background}},
		}); err == nil {
			_ = f.SetCellStyle(sheet, addr, addr, styleID)
		}
	}
}

func (w *Writer) placeImage(f *excelize.File, sheet string, r int, row *domain.ProductRow) *domain.Warning {
	path := row.ImagePath
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path == "" {
		path = w.findImage(row.SKU)
	}
	if path == "" {
		msg := fmt.Sprintf("no image found for %s, leaving cell blank", row.SKU)
		if row.ImagePath != "" {
			msg = fmt.Sprintf("image %s not found, leaving cell blank", row.ImagePath)
		}
		return &domain.Warning{
			Code:    domain.WarnImageNotFound,
			SKU:     row.SKU,
			Message: msg,
		}
	}
	_ = f.SetRowHeight(sheet, r, 100)
	if err := f.AddPicture(sheet, cell(colImage, r), path, &excelize.GraphicOptions{AutoFit: true}); err != nil {
		return &domain.Warning{
			Code:    domain.WarnImageNotFound,
			SKU:     row.SKU,
			Message: fmt.Sprintf("embed image %s: %v", path, err),
		}
	}
	return nil
}

func (w *Writer) findImage(sku string) string {
	if w.ImageDir == "" || sku == "" {
		return ""
	}
	for _, sub := range []string{"products", "accessories"} {
		p := filepath.Join(w.ImageDir, sub, sku+".jpg")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (w *Writer) fillFooter(layout *Layout, m *domain.MergedOrderTemplate, extra int) {
	r := layout.BuyerRow + extra
	if m.Footer.Buyer != "" {
		_ = layout.File.SetCellValue(layout.Sheet, cell(buyerCol, r), m.Footer.Buyer)
	}
	if m.Footer.Supplier != "" {
		_ = layout.File.SetCellValue(layout.Sheet, cell(supplierCol, r), m.Footer.Supplier)
	}
}

// publish saves to a temp path in the destination directory and renames
// into place, so a crash mid-write never exposes a torn artifact.
func (w *Writer) publish(f *excelize.File, m *domain.MergedOrderTemplate) (string, error) {
	if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
		return "", err
	}
	tmp := filepath.Join(w.OutDir, ".tmp-"+uuid.NewString()+".xlsx")
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("save artifact: %w", err)
	}
	dest := filepath.Join(w.OutDir, m.ArtifactBase()+".xlsx")
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return dest, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
