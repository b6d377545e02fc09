// Package parser provides ports.SettingsParser implementations.
package parser

import (
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/pybridge/domain/ports"
)

// YamlSettingsParser implements SettingsParser for YAML.
type YamlSettingsParser struct{}

// NewYamlSettingsParser creates a new YamlSettingsParser.
func NewYamlSettingsParser() ports.SettingsParser {
	return &YamlSettingsParser{}
}

// Parse unmarshals YAML bytes into a settings map.
func (p *YamlSettingsParser) Parse(data []byte) (map[string]any, error) {
	settings := map[string]any{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
