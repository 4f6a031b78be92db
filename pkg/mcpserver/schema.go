package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// GenerateSchema reflects T into a tool input schema.
func GenerateSchema[T any]() (*jsonschema.Schema, error) {
	return jsonschema.For[T](nil)
}

// AddSchemaDefault sets an elicitation default on a generated schema's
// property, so clients that support it can pre-fill the common case.
func AddSchemaDefault(schema *jsonschema.Schema, field string, value any) error {
	prop, ok := schema.Properties[field]
	if !ok {
		return fmt.Errorf("schema has no property %q", field)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling default for %q: %w", field, err)
	}
	prop.Default = raw
	return nil
}
