// Package config holds the assembly settings and their YAML file form.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/takashi-oh/scankit/extractor"
)

// Config is the tunable surface of an assembly run.
type Config struct {
	// Language is the recognition language specifier, '+'-joined for
	// mixed-language scans.
	Language string `yaml:"language"`
	// TextThreshold is the fraction of pages that must carry text for an
	// input document to count as searchable.
	TextThreshold float64 `yaml:"text_threshold"`
	// OutputName is the file name of the combined document.
	OutputName string `yaml:"output_name"`
}

// Default returns the stock configuration: Japanese plus English
// recognition writing output.pdf.
func Default() Config {
	return Config{
		Language:      "jpn+eng",
		TextThreshold: extractor.DefaultTextThreshold,
		OutputName:    "output.pdf",
	}
}

// Load reads a YAML config file over the defaults. Keys absent from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language must not be empty")
	}
	if c.TextThreshold < 0 || c.TextThreshold > 1 {
		return fmt.Errorf("text_threshold %v out of range [0, 1]", c.TextThreshold)
	}
	if c.OutputName == "" {
		return fmt.Errorf("output_name must not be empty")
	}
	return nil
}
