// Package config loads, validates and dumps the engine configuration. A
// built-in YAML template supplies defaults; a user file overlays it.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	// TypeConfig declares one group type to register at startup. Behavior
	// hooks cannot come from configuration; types declared here are
	// appearance-only until code registers richer definitions.
	TypeConfig struct {
		Name              string `yaml:"name" validate:"required"`
		DisplayName       string `yaml:"display_name"`
		OutlineStyle      string `yaml:"outline_style"`
		FillStyle         string `yaml:"fill_style"`
		ImageTemplate     string `yaml:"image_template"`
		AddMenuItem       bool   `yaml:"add_menu_item"`
		AddToolbarButton  bool   `yaml:"add_toolbar_button"`
		AllowsConnections bool   `yaml:"allows_connections"`
	}

	MarkersConfig struct {
		Size   int  `yaml:"size" validate:"min=8,max=64"`
		Hidden bool `yaml:"hidden"`
	}

	EngineConfig struct {
		Markers MarkersConfig `yaml:"markers"`
		Types   []TypeConfig  `yaml:"types" validate:"dive"`
	}

	OverlayConfig struct {
		OutlinePadding float64 `yaml:"outline_padding" validate:"gte=0"`
		LabelHeight    float64 `yaml:"label_height" validate:"gte=0"`
		ArrowLift      float64 `yaml:"arrow_lift" validate:"gte=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Engine    EngineConfig   `yaml:"engine"`
		Overlay   OverlayConfig  `yaml:"overlay"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	ImageTemplateFieldName TemplateFieldName = "image_template"
)

// marker image templates are themselves Go templates; expanding them at
// configuration load would destroy them
var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(ImageTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposing its values on top of the expanded configuration template to
// provide sane defaults, and validates the result.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates a configuration file from the template and returns it as
// a byte slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

// Dump serializes the effective configuration back to YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
