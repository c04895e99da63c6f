package browseruse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outputSchemaJSON is sent to Browser Use as the structured-output contract.
//
//go:embed output_schema.json
var outputSchemaJSON string

//go:embed result_schema.json
var resultSchemaJSON string

var (
	compileOnce  sync.Once
	resultSchema *jsonschema.Schema
	compileErr   error

	outputOnce    sync.Once
	compactOutput string
)

// StructuredOutputSchema returns the compact JSON schema string placed in
// the task's structuredOutput field.
func StructuredOutputSchema() string {
	outputOnce.Do(func() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(outputSchemaJSON)); err != nil {
			compactOutput = outputSchemaJSON
			return
		}
		compactOutput = buf.String()
	})
	return compactOutput
}

// ResultSchema returns the compiled schema every normalized result must satisfy.
func ResultSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource("result_schema.json", strings.NewReader(resultSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("result_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile result schema: %w", err)
			return
		}
		resultSchema = schema
	})
	return resultSchema, compileErr
}
