package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// SchemaValidationError represents a single config validation error.
type SchemaValidationError struct {
	Path    string // Config path, e.g., "sinks[0].type"
	Message string
}

func (e SchemaValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// SchemaValidationResult contains all validation errors for a Config.
type SchemaValidationResult struct {
	Errors []SchemaValidationError
}

// IsValid returns true if there are no validation errors.
func (r *SchemaValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *SchemaValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *SchemaValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, SchemaValidationError{Path: path, Message: message})
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("capturelog.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile("capturelog.schema.json")
}

// ValidateSchema checks a decoded document (from YAML or JSON) against the
// embedded schema.
func ValidateSchema(doc any) *SchemaValidationResult {
	result := &SchemaValidationResult{}

	schemaOnce.Do(func() { schema, schemaErr = compileSchema() })
	if schemaErr != nil {
		result.AddError("", fmt.Sprintf("schema compilation error: %v", schemaErr))
		return result
	}

	// Round-trip through JSON so YAML values have JSON types.
	data, err := json.Marshal(doc)
	if err != nil {
		result.AddError("", fmt.Sprintf("unsupported document: %v", err))
		return result
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		result.AddError("", err.Error())
		return result
	}

	if err := schema.Validate(normalized); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			collectSchemaErrors(ve, result)
		} else {
			result.AddError("", err.Error())
		}
	}
	return result
}

// collectSchemaErrors flattens the leaf causes of a validation error.
func collectSchemaErrors(err *jsonschema.ValidationError, result *SchemaValidationResult) {
	if len(err.Causes) == 0 {
		result.AddError(pointerToPath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, result)
	}
}

// pointerToPath turns "/sinks/0/type" into "sinks[0].type".
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	var b strings.Builder
	for i, part := range strings.Split(pointer, "/") {
		if isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
