// Package schema generates JSON schemas for pybridge's documents: the
// settings file and the doctor report.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/pybridge/application/config"
	"github.com/reglet-dev/pybridge/domain/entities"
)

// documents maps schema names to a zero value of the documented type.
var documents = map[string]any{
	"settings": config.Settings{},
	"report":   entities.Report{},
}

// Names lists the documents Named accepts.
func Names() []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Named returns the schema of a pybridge document by name.
func Named(name string) ([]byte, error) {
	v, ok := documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (have %v)", name, Names())
	}
	return GenerateSchema(v)
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
// Struct definitions are expanded inline and fields without omitempty are
// required.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
