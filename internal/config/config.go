package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the run's filesystem layout. Everything has a working
// default relative to the repository root so the CLI runs unconfigured.
type Config struct {
	MappingPath   string `envconfig:"AMZPO_MAPPING_PATH" default:"docs/complete_mapping.json"`
	TemplateDir   string `envconfig:"AMZPO_TEMPLATE_DIR" default:"json_template"`
	LayoutPath    string `envconfig:"AMZPO_LAYOUT_PATH" default:"docs/empty_base_template.xlsx"`
	OutputDir     string `envconfig:"AMZPO_OUTPUT_DIR" default:"po_excel_export"`
	JSONExportDir string `envconfig:"AMZPO_JSON_EXPORT_DIR" default:"json_exports"`
	ImageDir      string `envconfig:"AMZPO_IMAGE_DIR" default:"images"`
	LogLevel      string `envconfig:"AMZPO_LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("amzpo", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
