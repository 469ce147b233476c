package execmgr

import "testing"

func TestValidateAgainstSchemaNilSchemaAlwaysValid(t *testing.T) {
	if err := validateAgainstSchema(nil, []byte(`{"anything": 1}`)); err != nil {
		t.Errorf("validateAgainstSchema(nil schema) error = %v, want nil", err)
	}
}

func TestValidateAgainstSchemaAcceptsMatchingPayload(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}
	err := validateAgainstSchema(schema, []byte(`{"path": "a.pdf"}`))
	if err != nil {
		t.Errorf("validateAgainstSchema() error = %v, want nil", err)
	}
}

func TestValidateAgainstSchemaRejectsMissingRequired(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"path"},
	}
	err := validateAgainstSchema(schema, []byte(`{}`))
	if err == nil {
		t.Error("validateAgainstSchema() error = nil, want error for missing required field")
	}
}

func TestValidateAgainstSchemaRejectsWrongType(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
	}
	err := validateAgainstSchema(schema, []byte(`{"count": "not-a-number"}`))
	if err == nil {
		t.Error("validateAgainstSchema() error = nil, want error for wrong type")
	}
}

func TestValidateAgainstSchemaTreatsEmptyDataAsEmptyObject(t *testing.T) {
	schema := map[string]any{"type": "object"}
	if err := validateAgainstSchema(schema, nil); err != nil {
		t.Errorf("validateAgainstSchema(nil data) error = %v, want nil", err)
	}
}
