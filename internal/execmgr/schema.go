package execmgr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateAgainstSchema validates data (already-decoded JSON) against a
// JSON-Schema-shaped map, such as a skill's declared input_schema or
// output_schema. A nil/empty schema always validates.
func validateAgainstSchema(schema map[string]any, data []byte) error {
	if len(schema) == 0 {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(schemaJSON))); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var decoded any
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return err
	}
	return nil
}
