package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phenrril/amzpo/internal/adapters/excel"
	"github.com/phenrril/amzpo/internal/adapters/templatestore"
	"github.com/phenrril/amzpo/internal/config"
)

var storeBySKU bool

var extractCmd = &cobra.Command{
	Use:   "extract <order.xlsx> [output.json]",
	Short: "Convert an order spreadsheet back into template JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := excel.Extract(args[0])
		if err != nil {
			return err
		}

		if storeBySKU {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store := templatestore.New(cfg.TemplateDir)
			for i := range tpl.Products {
				fragment := *tpl
				fragment.Products = tpl.Products[i : i+1]
				if err := store.Save(tpl.Products[i].SKU, &fragment); err != nil {
					return err
				}
				fmt.Printf("  ✓ %s\n", tpl.Products[i].SKU)
			}
			return nil
		}

		b, err := json.MarshalIndent(tpl, "", "  ")
		if err != nil {
			return err
		}
		b = append(b, '\n')
		if len(args) == 2 {
			return os.WriteFile(args[1], b, 0o644)
		}
		_, err = os.Stdout.Write(b)
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&storeBySKU, "store", false, "save one template fragment per SKU into the template directory")
}
