package app

import (
	"context"

	"github.com/phenrril/amzpo/internal/adapters/catalog"
	"github.com/phenrril/amzpo/internal/adapters/excel"
	"github.com/phenrril/amzpo/internal/adapters/templatestore"
	"github.com/phenrril/amzpo/internal/config"
	"github.com/phenrril/amzpo/internal/domain"
	"github.com/phenrril/amzpo/internal/usecase"
)

type App struct {
	Catalog   domain.CatalogIndex
	Templates *templatestore.FSStore
	Writer    *excel.Writer
	Pipeline  *usecase.Pipeline
}

func NewApp(cfg *config.Config) (*App, error) {
	idx, err := catalog.Load(cfg.MappingPath)
	if err != nil {
		return nil, err
	}
	store := templatestore.New(cfg.TemplateDir)
	writer := excel.NewWriter(cfg.LayoutPath, cfg.OutputDir, cfg.ImageDir)

	app := &App{
		Catalog:   idx,
		Templates: store,
		Writer:    writer,
	}
	app.Pipeline = &usecase.Pipeline{
		Resolver: &usecase.ResolverUC{Catalog: idx},
		Merger:   &usecase.MergeUC{Templates: store},
		Writer:   writer,
		JSONDir:  cfg.JSONExportDir,
	}
	return app, nil
}

// Generate runs one request batch through resolve, merge and render.
func (a *App) Generate(ctx context.Context, reqs []domain.OrderLineRequest, jsonOnly bool) (*domain.Report, error) {
	a.Pipeline.JSONOnly = jsonOnly
	return a.Pipeline.Run(ctx, reqs)
}
