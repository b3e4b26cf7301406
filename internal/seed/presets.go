package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a named seeding size.
type Preset struct {
	Description string `yaml:"description"`
	Users       int    `yaml:"users"`
	Fixes       int    `yaml:"fixes"`
	MaxDays     int    `yaml:"max_days"`
}

// Presets returns the embedded presets keyed by name.
func Presets() (map[string]Preset, error) {
	return ParsePresets(presetsYAML)
}

// ParsePresets decodes a presets document.
func ParsePresets(data []byte) (map[string]Preset, error) {
	var doc struct {
		Presets map[string]Preset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed presets: %w", err)
	}
	for name, p := range doc.Presets {
		if p.Users < 0 || p.Fixes < 0 {
			return nil, fmt.Errorf("seed preset %q: counts must not be negative", name)
		}
		if p.Fixes > 0 && p.Users == 0 {
			return nil, fmt.Errorf("seed preset %q: fixes need at least one user", name)
		}
	}
	return doc.Presets, nil
}
