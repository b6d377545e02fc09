package parser

import (
	"github.com/BurntSushi/toml"

	"github.com/reglet-dev/pybridge/domain/ports"
)

// TomlSettingsParser implements SettingsParser for TOML.
type TomlSettingsParser struct{}

// NewTomlSettingsParser creates a new TomlSettingsParser.
func NewTomlSettingsParser() ports.SettingsParser {
	return &TomlSettingsParser{}
}

// Parse decodes TOML bytes into a settings map.
func (p *TomlSettingsParser) Parse(data []byte) (map[string]any, error) {
	settings := map[string]any{}
	if _, err := toml.Decode(string(data), &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
