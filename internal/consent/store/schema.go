package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonschema"

	"consentd/internal/consent/models"
)

// recordSchemaV1 describes the value stored under SlotKey.
const recordSchemaV1 = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["consentId", "preferences", "source", "timestamp"],
  "properties": {
    "consentId": {"type": "string", "minLength": 1},
    "preferences": {
      "type": "object",
      "required": ["essential", "functional", "analytics", "marketing"],
      "properties": {
        "essential": {"const": true},
        "functional": {"type": "boolean"},
        "analytics": {"type": "boolean"},
        "marketing": {"type": "boolean"}
      },
      "additionalProperties": false
    },
    "source": {"enum": ["banner", "preferences"]},
    "timestamp": {"type": "string", "minLength": 1},
    "region": {"type": "string"}
  }
}`

var recordSchema = mustCompileSchema(recordSchemaV1)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(raw))
	if err != nil {
		panic(fmt.Sprintf("compile consent record schema: %v", err))
	}
	return schema
}

// wireRecord is the persisted JSON shape of models.Record.
type wireRecord struct {
	ConsentID   string             `json:"consentId"`
	Preferences models.Preferences `json:"preferences"`
	Source      models.Source      `json:"source"`
	Timestamp   time.Time          `json:"timestamp"`
	Region      models.Region      `json:"region,omitempty"`
}

// Encode returns the consent.v1 value stored for r.
func Encode(r *models.Record) ([]byte, error) {
	return encodeRecord(r)
}

func encodeRecord(r *models.Record) ([]byte, error) {
	return json.Marshal(wireRecord{
		ConsentID:   r.ConsentID,
		Preferences: r.Preferences.Normalize(),
		Source:      r.Source,
		Timestamp:   r.Timestamp.UTC(),
		Region:      r.Region,
	})
}

// decodeRecord validates raw against the v1 schema before decoding, then
// re-applies the model invariants.
func decodeRecord(raw []byte) (*models.Record, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse consent value: %w", err)
	}
	if result := recordSchema.Validate(doc); !result.IsValid() {
		return nil, fmt.Errorf("consent value does not match %s schema", SlotKey)
	}
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode consent value: %w", err)
	}
	return models.NewRecord(w.ConsentID, w.Preferences, w.Source, w.Timestamp, w.Region)
}
