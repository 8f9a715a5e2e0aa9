package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"consentstate/internal/consentstate/models"
)

// ErrMalformed marks a stored record that cannot be read as a consent record.
var ErrMalformed = errors.New("malformed consent record")

// recordSchema describes the persisted record. Unknown properties are allowed
// so records written by newer front ends still resolve.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "consent": {"type": ["array", "null"]},
    "hash": {"type": ["string", "null"]}
  }
}`

const recordSchemaURL = "consent-record.json"

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(recordSchemaURL, strings.NewReader(recordSchema)); err != nil {
		panic(fmt.Sprintf("add consent record schema: %v", err))
	}
	schema, err := compiler.Compile(recordSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile consent record schema: %v", err))
	}
	return schema
}

// Decode parses a raw stored value into a StoredState.
//
// Errors: returns an error wrapping ErrMalformed when the value is not JSON,
// is JSON null, or does not match the record schema.
func Decode(raw string) (models.StoredState, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.StoredState{}, fmt.Errorf("%w: invalid json: %v", ErrMalformed, err)
	}
	if doc == nil {
		return models.StoredState{}, fmt.Errorf("%w: record is null", ErrMalformed)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var state models.StoredState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return state, nil
}
