package tools

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/solpilot/solpilot/internal/schema"
)

// ValidateParams checks the model-supplied arguments against the tool's
// declared JSON Schema. It runs before Execute; a violation means Execute is
// never called for that invocation.
func ValidateParams(t schema.Tool, params map[string]any) error {
	schemaLoader := gojsonschema.NewBytesLoader(t.Parameters())
	docLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema check for %s: %w", t.Name(), err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", t.Name(), strings.Join(msgs, "; "))
}
