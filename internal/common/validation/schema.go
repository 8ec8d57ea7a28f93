package validation

import (
	"fmt"
	"strings"

	apperrors "loan-assistant/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for request payloads.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal and panics on a malformed schema.
func MustCompile(name, source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// ValidateBytes checks a raw JSON document. Failures come back as an
// INVALID_REQUEST StandardError listing every violation.
func (s *Schema) ValidateBytes(doc []byte) error {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue checks an already decoded document.
func (s *Schema) ValidateValue(doc interface{}) error {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) error {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("%s: malformed JSON: %v", s.name, err))
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewInvalidRequestError(fmt.Sprintf("%s: %s", s.name, strings.Join(errs, "; ")))
	}

	return nil
}
