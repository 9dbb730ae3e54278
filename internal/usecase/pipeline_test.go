package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/amzpo/internal/domain"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []*domain.MergedOrderTemplate
	failFor map[string]error
}

func (f *fakeWriter) Write(ctx context.Context, m *domain.MergedOrderTemplate) (domain.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[m.Supplier]; ok {
		return domain.WriteResult{}, err
	}
	f.written = append(f.written, m)
	return domain.WriteResult{
		Supplier: m.Supplier,
		Path:     m.ArtifactBase() + ".xlsx",
		Rows:     len(m.Products),
	}, nil
}

func brushPipeline(writer domain.ArtifactWriter, jsonDir string) *Pipeline {
	catalog := brushCatalog()
	store := &fakeStore{templates: map[string]*domain.OrderTemplate{
		"48-82P3-QSFG": tplFor("48-82P3-QSFG", "宁波工厂", 2.35),
		"US-RB01-01":   tplFor("US-RB01-01", "宁波工厂", 0.30),
		"SSD":          tplFor("SSD", "印刷厂", 0.05),
		"ST1122-1-2":   tplFor("ST1122-1-2", "印刷厂", 0.02),
		"ST1122-5":     tplFor("ST1122-5", "印刷厂", 0.02),
	}}
	return &Pipeline{
		Resolver: &ResolverUC{Catalog: catalog},
		Merger:   &MergeUC{Templates: store},
		Writer:   writer,
		JSONDir:  jsonDir,
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	writer := &fakeWriter{}
	p := brushPipeline(writer, t.TempDir())

	report, err := p.Run(context.Background(), []domain.OrderLineRequest{
		{SKU: "48-82P3-QSFG", Quantity: 800},
	})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, report.Failed)

	// One artifact per supplier group, all five lines at the main
	// quantity since every accessory link is 1:1.
	require.Len(t, report.Outputs, 2)
	suppliers := []string{report.Outputs[0].Supplier, report.Outputs[1].Supplier}
	sort.Strings(suppliers)
	assert.Equal(t, []string{"印刷厂", "宁波工厂"}, suppliers)

	require.Len(t, writer.written, 2)
	total := 0
	for _, g := range writer.written {
		for _, row := range g.Products {
			assert.Equal(t, 800, row.Quantity, row.SKU)
			total++
		}
	}
	assert.Equal(t, 5, total)
}

func TestPipelineExportsJSONPerGroup(t *testing.T) {
	dir := t.TempDir()
	p := brushPipeline(&fakeWriter{}, dir)
	p.JSONOnly = true

	report, err := p.Run(context.Background(), []domain.OrderLineRequest{
		{SKU: "48-82P3-QSFG", Quantity: 100},
	})
	require.NoError(t, err)
	require.Len(t, report.Outputs, 2)

	names, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, names, 2)

	// Exported documents are plain order templates again: the group
	// bookkeeping fields must not leak into the JSON.
	for _, name := range names {
		b, err := os.ReadFile(name)
		require.NoError(t, err)
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &raw))
		assert.Contains(t, raw, "cells")
		assert.Contains(t, raw, "products")
		assert.NotContains(t, raw, "Supplier")
		assert.NotContains(t, raw, "Origins")
	}
}

func TestPipelineJSONOnlyWithoutExportDir(t *testing.T) {
	writer := &fakeWriter{}
	p := brushPipeline(writer, "")
	p.JSONOnly = true

	report, err := p.Run(context.Background(), []domain.OrderLineRequest{
		{SKU: "48-82P3-QSFG", Quantity: 100},
	})
	require.NoError(t, err)
	assert.Empty(t, writer.written)

	// No export directory means no file, so no path to report.
	require.Len(t, report.Outputs, 2)
	for _, out := range report.Outputs {
		assert.Empty(t, out.Path)
		assert.Positive(t, out.Rows)
	}
}

func TestPipelinePartialFailure(t *testing.T) {
	boom := errors.New("disk full")
	writer := &fakeWriter{failFor: map[string]error{"印刷厂": boom}}
	p := brushPipeline(writer, "")

	report, err := p.Run(context.Background(), []domain.OrderLineRequest{
		{SKU: "48-82P3-QSFG", Quantity: 10},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "印刷厂", report.Failed[0].Supplier)
	require.Len(t, report.Outputs, 1)
	assert.Equal(t, "宁波工厂", report.Outputs[0].Supplier)
}

func TestPipelineFatalResolveStillReturnsReport(t *testing.T) {
	p := brushPipeline(&fakeWriter{}, "")

	report, err := p.Run(context.Background(), []domain.OrderLineRequest{
		{SKU: "48-82P3", Quantity: 10},
	})
	var notOrderable *domain.NotOrderableError
	require.ErrorAs(t, err, &notOrderable)
	require.NotNil(t, report)
	assert.Empty(t, report.Outputs)
}

func TestPipelineCancelledContext(t *testing.T) {
	writer := &fakeWriter{}
	p := brushPipeline(writer, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []domain.OrderLineRequest{{SKU: "48-82P3-QSFG", Quantity: 10}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, writer.written)
}
