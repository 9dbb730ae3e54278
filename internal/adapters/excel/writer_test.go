package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/amzpo/internal/domain"
)

// buildLayout writes a minimal but complete layout workbook: yellow
// editable header cells, three pre-styled product rows below the table
// header, a formula cell and the footer signature block.
func buildLayout(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]

	yellow, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
	})
	require.NoError(t, err)
	mark := func(addrs ...string) {
		for _, addr := range addrs {
			require.NoError(t, f.SetCellStyle(sheet, addr, addr, yellow))
		}
	}

	require.NoError(t, f.SetCellValue(sheet, "A3", "供货商："))
	require.NoError(t, f.SetCellValue(sheet, "F3", "订单号"))
	require.NoError(t, f.SetCellValue(sheet, "F4", "日期"))
	mark("B3", "G3", "G4")

	headers := map[string]string{
		"A6": "产品编号", "B6": "产品图片", "C6": "描述",
		"D6": "数量/个", "E6": "单价", "F6": "金额", "G6": "包装方式",
	}
	for addr, label := range headers {
		require.NoError(t, f.SetCellValue(sheet, addr, label))
	}
	for row := 7; row <= 9; row++ {
		for _, col := range []string{"A", "B", "C", "D", "E", "F", "G"} {
			mark(cell(col, row))
		}
	}

	require.NoError(t, f.SetCellFormula(sheet, "H4", "SUM(D7:D9)"))

	require.NoError(t, f.SetCellValue(sheet, "A69", "采购方："))
	require.NoError(t, f.SetCellValue(sheet, "D69", "厂商："))
	mark("B69", "E69")

	path := filepath.Join(t.TempDir(), "layout.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func sampleMerged() *domain.MergedOrderTemplate {
	m := &domain.MergedOrderTemplate{Supplier: "宁波工厂"}
	m.Cells = map[string]domain.CellValue{
		domain.CellSupplier: {Key: "供货商：", Value: "宁波工厂"},
		domain.CellOrderNo:  {Key: "订单号", Value: "PO-2025-001"},
		domain.CellDate:     {Key: "日期", Value: "2025年1月1日"},
	}
	m.Products = []domain.ProductRow{
		{
			SKU:         "48-82P3-QSFG",
			Description: []domain.DescriptionRun{{Text: "电动牙刷 青色"}},
			Quantity:    800,
			UnitPrice:   2.35,
			Packaging:   "彩盒",
		},
		{
			SKU:         "US-RB01-01",
			Description: []domain.DescriptionRun{{Text: "替换刷头"}},
			Quantity:    800,
			UnitPrice:   0.3,
			Packaging:   "opp袋",
		},
	}
	m.Footer = domain.Footer{Buyer: "深圳公司", Supplier: "宁波工厂"}
	return m
}

func TestLoadLayoutClassifiesCells(t *testing.T) {
	layout, err := LoadLayout(buildLayout(t))
	require.NoError(t, err)
	defer layout.Close()

	assert.Equal(t, 7, layout.ProductStartRow)
	assert.Equal(t, 3, layout.PlaceholderRows)
	assert.Equal(t, 69, layout.BuyerRow)

	assert.Equal(t, KindEditable, layout.Kind("B3"))
	assert.Equal(t, KindEditable, layout.Kind("D8"))
	assert.Equal(t, KindFormula, layout.Kind("H4"))
	assert.Equal(t, KindUnknown, layout.Kind("A3"))

	assert.True(t, layout.KeyMatches("B3", "供货商："))
	assert.True(t, layout.KeyMatches("G3", "订单号"))
	assert.True(t, layout.KeyMatches("B3", ""))
	assert.False(t, layout.KeyMatches("B3", "订单号"))
}

func TestLoadLayoutMissingEditableCells(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	yellow, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
	})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "D6", "数量/个"))
	require.NoError(t, f.SetCellValue(sheet, "E6", "单价"))
	for row := 7; row <= 9; row++ {
		for _, col := range []string{"A", "B", "C", "D", "E", "F", "G"} {
			require.NoError(t, f.SetCellStyle(sheet, cell(col, row), cell(col, row), yellow))
		}
	}
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err = LoadLayout(path)
	var layoutErr *domain.LayoutError
	require.ErrorAs(t, err, &layoutErr)
	assert.Contains(t, layoutErr.Missing, "B3")
	assert.Contains(t, layoutErr.Missing, "B69")
}

func TestWriteRendersArtifact(t *testing.T) {
	outDir := t.TempDir()
	w := NewWriter(buildLayout(t), outDir, "")
	m := sampleMerged()

	res, err := w.Write(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "宁波工厂", res.Supplier)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, filepath.Join(outDir, m.ArtifactBase()+".xlsx"), res.Path)

	f, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetList()[0]

	get := func(addr string) string {
		v, err := f.GetCellValue(sheet, addr)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "宁波工厂", get("B3"))
	assert.Equal(t, "PO-2025-001", get("G3"))
	assert.Equal(t, "2025年1月1日", get("G4"))

	assert.Equal(t, "48-82P3-QSFG", get("A7"))
	assert.Equal(t, "电动牙刷 青色", get("C7"))
	assert.Equal(t, "800", get("D7"))
	assert.Equal(t, "2.35", get("E7"))
	assert.Equal(t, "彩盒", get("G7"))
	assert.Equal(t, "US-RB01-01", get("A8"))

	formula := func(addr string) string {
		v, err := f.GetCellFormula(sheet, addr)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "D7*E7", formula("F7"))
	assert.Equal(t, "SUM(D7:D9)", formula("D10"))
	assert.Equal(t, "SUM(F7:F9)", formula("F10"))

	assert.Equal(t, "深圳公司", get("B69"))
	assert.Equal(t, "宁波工厂", get("E69"))

	// The source layout is never written back.
	src, err := excelize.OpenFile(w.LayoutPath)
	require.NoError(t, err)
	defer src.Close()
	v, err := src.GetCellValue(src.GetSheetList()[0], "A7")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestWriteInsertsRowsBeyondPlaceholders(t *testing.T) {
	w := NewWriter(buildLayout(t), t.TempDir(), "")
	m := sampleMerged()
	for _, sku := range []string{"SSD", "ST1122-1-2", "ST1122-5"} {
		m.Products = append(m.Products, domain.ProductRow{SKU: sku, Quantity: 800, UnitPrice: 0.05, Packaging: "散装"})
	}

	res, err := w.Write(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rows)

	f, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetList()[0]

	v, _ := f.GetCellValue(sheet, "A11")
	assert.Equal(t, "ST1122-5", v)

	// Totals and footer shift down with the two inserted rows.
	totals, _ := f.GetCellFormula(sheet, "D12")
	assert.Equal(t, "SUM(D7:D11)", totals)
	buyer, _ := f.GetCellValue(sheet, "B71")
	assert.Equal(t, "深圳公司", buyer)
	supplier, _ := f.GetCellValue(sheet, "E71")
	assert.Equal(t, "宁波工厂", supplier)
}

func TestWriteSkipsFormulaAndUnknownCells(t *testing.T) {
	w := NewWriter(buildLayout(t), t.TempDir(), "")
	m := sampleMerged()
	m.Cells["H4"] = domain.CellValue{Key: "", Value: "999"}
	m.Cells["C3"] = domain.CellValue{Key: "", Value: "stray"}

	res, err := w.Write(context.Background(), m)
	require.NoError(t, err)

	codes := map[domain.WarningCode]int{}
	for _, warn := range res.Warnings {
		codes[warn.Code]++
	}
	assert.Equal(t, 1, codes[domain.WarnFormulaCell])
	assert.Equal(t, 1, codes[domain.WarnUnknownCell])

	f, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetList()[0]

	formula, _ := f.GetCellFormula(sheet, "H4")
	assert.Equal(t, "SUM(D7:D9)", formula)
	v, _ := f.GetCellValue(sheet, "C3")
	assert.Empty(t, v)
}

func TestWriteRejectsMismatchedKeys(t *testing.T) {
	w := NewWriter(buildLayout(t), t.TempDir(), "")
	m := sampleMerged()
	m.Cells[domain.CellSupplier] = domain.CellValue{Key: "订单号", Value: "x"}

	_, err := w.Write(context.Background(), m)
	var layoutErr *domain.LayoutError
	require.ErrorAs(t, err, &layoutErr)
	assert.Contains(t, layoutErr.Missing[0], "B3")
}

func TestWriteMissingImageWarns(t *testing.T) {
	w := NewWriter(buildLayout(t), t.TempDir(), filepath.Join(t.TempDir(), "images"))
	m := sampleMerged()
	m.Products[0].ImagePath = "images/products/48-82P3-QSFG.jpg"

	res, err := w.Write(context.Background(), m)
	require.NoError(t, err)

	// Both rows warn: one carries a dead explicit path, the other has
	// no path and the directory lookup finds nothing either.
	warned := map[string]bool{}
	for _, warn := range res.Warnings {
		if warn.Code == domain.WarnImageNotFound {
			warned[warn.SKU] = true
		}
	}
	assert.True(t, warned["48-82P3-QSFG"])
	assert.True(t, warned["US-RB01-01"])
}

func TestWriteCancelledContext(t *testing.T) {
	outDir := t.TempDir()
	w := NewWriter(buildLayout(t), outDir, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, sampleMerged())
	require.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteExtractRoundTrip(t *testing.T) {
	w := NewWriter(buildLayout(t), t.TempDir(), "")
	m := sampleMerged()

	res, err := w.Write(context.Background(), m)
	require.NoError(t, err)

	got, err := Extract(res.Path)
	require.NoError(t, err)

	want := &domain.OrderTemplate{
		Cells: map[string]domain.CellValue{
			domain.CellSupplier: {Key: "供货商：", Value: "宁波工厂"},
			domain.CellOrderNo:  {Key: "订单号", Value: "PO-2025-001"},
			domain.CellDate:     {Key: "日期", Value: "2025年1月1日"},
		},
		Products: m.Products,
		Footer:   domain.Footer{Buyer: "深圳公司", Supplier: "宁波工厂"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extracted template mismatch (-want +got):\n%s", diff)
	}
}
