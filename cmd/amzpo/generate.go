package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/phenrril/amzpo/internal/app"
	"github.com/phenrril/amzpo/internal/config"
	"github.com/phenrril/amzpo/internal/domain"
)

var (
	jsonOnly  bool
	outputDir string
	layout    string
)

var generateCmd = &cobra.Command{
	Use:   "generate <sku> <qty> [<sku> <qty> ...]",
	Short: "Generate one purchase order artifact per supplier group",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := parseRequests(args)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if layout != "" {
			cfg.LayoutPath = layout
		}

		a, err := app.NewApp(cfg)
		if err != nil {
			return err
		}

		report, runErr := a.Generate(cmd.Context(), reqs, jsonOnly)
		printReport(report)
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&jsonOnly, "json-only", false, "stop after exporting merged JSON documents")
	generateCmd.Flags().StringVar(&outputDir, "output-dir", "", "override the artifact output directory")
	generateCmd.Flags().StringVar(&layout, "layout", "", "override the layout workbook path")
}

func parseRequests(args []string) ([]domain.OrderLineRequest, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("expected <sku> <qty> pairs, got %d arguments", len(args))
	}
	reqs := make([]domain.OrderLineRequest, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		qty, err := strconv.Atoi(args[i+1])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("quantity for %s must be a positive integer, got %q", args[i], args[i+1])
		}
		reqs = append(reqs, domain.OrderLineRequest{SKU: args[i], Quantity: qty})
	}
	return reqs, nil
}

func printReport(report *domain.Report) {
	if report == nil {
		return
	}
	for _, w := range report.Warnings {
		log.Warn().Str("code", string(w.Code)).Str("sku", w.SKU).Msg(w.Message)
	}
	for _, out := range report.Outputs {
		fmt.Printf("  ✓ %s -> %s (%d rows)\n", out.Supplier, out.Path, out.Rows)
	}
	for _, f := range report.Failed {
		fmt.Printf("  ✗ %s: %v\n", f.Supplier, f.Err)
	}
	fmt.Printf("groups: %d written, %d failed, %d warnings\n",
		len(report.Outputs), len(report.Failed), len(report.Warnings))
}
