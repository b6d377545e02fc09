package ports

// SettingsParser decodes a settings file into a generic key-value map.
type SettingsParser interface {
	// Parse unmarshals raw bytes into a map keyed by setting name.
	Parse(data []byte) (map[string]any, error)
}
