package providers

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateToolSchemas rejects a tool whose function parameters are not a
// well-formed JSON Schema document. The gateway never sees the model's
// actual function-call arguments at request time, so this only checks that
// the schema itself compiles, not that it can later validate against a call.
func validateToolSchemas(tools []Tool) error {
	for _, t := range tools {
		if len(t.Function.Parameters) == 0 {
			continue
		}
		if _, err := compileSchema(t.Function.Name, t.Function.Parameters); err != nil {
			return fmt.Errorf("tool %q parameters: %w", t.Function.Name, err)
		}
	}
	return nil
}

// validateResponseFormatSchema rejects a json_schema response format whose
// schema document does not compile, and requires one to be present whenever
// that format is requested.
func validateResponseFormatSchema(rf *ResponseFormat) error {
	if rf == nil || rf.Type != "json_schema" {
		return nil
	}
	if len(rf.JSONSchema) == 0 {
		return fmt.Errorf("response_format: json_schema is required when type is %q", "json_schema")
	}
	if _, err := compileSchema("response_format", rf.JSONSchema); err != nil {
		return fmt.Errorf("response_format: %w", err)
	}
	return nil
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	url := "mem://" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
