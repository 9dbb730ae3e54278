package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/phenrril/amzpo/internal/domain"
)

// Pipeline runs one batch end to end: resolve, merge, export the
// merged JSON documents and render one artifact per supplier group.
type Pipeline struct {
	Resolver *ResolverUC
	Merger   *MergeUC
	Writer   domain.ArtifactWriter

	// JSONDir receives the merged order documents as JSON, one per
	// group, before any spreadsheet is rendered.
	JSONDir string
	// JSONOnly stops the run after the JSON export stage.
	JSONOnly bool
}

type groupResult struct {
	supplier string
	result   domain.WriteResult
	err      error
}

// Run returns a report in every outcome. The returned error is fatal
// validation (whole batch) or the combined per-group write failures;
// groups that succeeded are still listed in the report either way.
func (p *Pipeline) Run(ctx context.Context, reqs []domain.OrderLineRequest) (*domain.Report, error) {
	report := &domain.Report{}

	lines, warns, err := p.Resolver.Resolve(reqs)
	report.Warn(warns...)
	if err != nil {
		return report, err
	}
	log.Info().Int("requests", len(reqs)).Int("lines", len(lines)).Msg("resolved order lines")

	groups, warns, err := p.Merger.GroupAndMerge(lines)
	report.Warn(warns...)
	if err != nil {
		return report, err
	}
	log.Info().Int("groups", len(groups)).Msg("merged supplier groups")

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Groups are independent from here on: one goroutine each, and a
	// failure in one write never blocks the rest.
	var wg sync.WaitGroup
	results := make(chan groupResult, len(groups))
	for _, g := range groups {
		wg.Add(1)
		go func(g *domain.MergedOrderTemplate) {
			defer wg.Done()
			if err := p.exportJSON(g); err != nil {
				results <- groupResult{supplier: g.Supplier, err: err}
				return
			}
			if p.JSONOnly {
				res := domain.WriteResult{Supplier: g.Supplier, Rows: len(g.Products)}
				if p.JSONDir != "" {
					res.Path = filepath.Join(p.JSONDir, g.ArtifactBase()+".json")
				}
				results <- groupResult{supplier: g.Supplier, result: res}
				return
			}
			res, err := p.Writer.Write(ctx, g)
			results <- groupResult{supplier: g.Supplier, result: res, err: err}
		}(g)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var writeErr error
	for r := range results {
		if r.err != nil {
			report.Failed = append(report.Failed, domain.GroupFailure{Supplier: r.supplier, Err: r.err})
			writeErr = multierr.Append(writeErr, fmt.Errorf("group %s: %w", r.supplier, r.err))
			log.Error().Err(r.err).Str("supplier", r.supplier).Msg("group write failed")
			continue
		}
		report.Outputs = append(report.Outputs, r.result)
		report.Warn(r.result.Warnings...)
	}

	log.Info().
		Int("written", len(report.Outputs)).
		Int("failed", len(report.Failed)).
		Int("warnings", len(report.Warnings)).
		Msg("run complete")
	return report, writeErr
}

func (p *Pipeline) exportJSON(g *domain.MergedOrderTemplate) error {
	if p.JSONDir == "" {
		return nil
	}
	b, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode group: %w", err)
	}
	if err := os.MkdirAll(p.JSONDir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(p.JSONDir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	dest := filepath.Join(p.JSONDir, g.ArtifactBase()+".json")
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
