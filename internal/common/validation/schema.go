package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"

	"github.com/xeipuuv/gojsonschema"
)

// Error codes reported per field.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeExtraField           = "EXTRA_FIELD"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidFormat        = "INVALID_FORMAT"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeMinLengthViolation   = "MIN_LENGTH_VIOLATION"
	CodeMaxLengthViolation   = "MAX_LENGTH_VIOLATION"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeMinimumViolation     = "MINIMUM_VIOLATION"
)

func init() {
	gojsonschema.FormatCheckers.Add("absolute-url", absoluteURLChecker{})
	gojsonschema.FormatCheckers.Add("non-blank", nonBlankChecker{})
}

type absoluteURLChecker struct{}

func (absoluteURLChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true // type errors are reported by the type keyword
	}
	return ValidateURL(s)
}

type nonBlankChecker struct{}

func (nonBlankChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	return strings.TrimSpace(s) != ""
}

// Schema is a compiled JSON schema plus the defaults it declares.
type Schema struct {
	Name     string
	compiled *gojsonschema.Schema
	defaults map[string]interface{}
}

// MustCompile compiles a JSON schema document. defaults are merged into the
// input for absent keys before validation; pass nil for update schemas.
func MustCompile(name, document string, defaults map[string]interface{}) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		panic(fmt.Sprintf("validation: compile schema %s: %v", name, err))
	}
	return &Schema{Name: name, compiled: compiled, defaults: defaults}
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ApplyDefaults returns a copy of input with the schema defaults filled in.
func (s *Schema) ApplyDefaults(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input)+len(s.defaults))
	for k, v := range input {
		out[k] = v
	}
	for k, v := range s.defaults {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// ValidateInput checks input against the schema and reports every violation,
// sorted by field.
func (s *Schema) ValidateInput(input map[string]interface{}) *ValidationResult {
	if input == nil {
		input = map[string]interface{}{}
	}

	res, err := s.compiled.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    CodeInvalidType,
		}}}
	}

	errs := make([]ValidationError, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldPath(desc),
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Decode applies defaults, validates, and decodes input into T. Failures are
// logged with the offending payload and returned as a VALIDATION_FAILED
// StandardError listing every field.
func Decode[T any](s *Schema, input map[string]interface{}, log logger.Logger) (*T, error) {
	withDefaults := s.ApplyDefaults(input)

	result := s.ValidateInput(withDefaults)
	if !result.Valid {
		log.Warn("payload failed validation", map[string]interface{}{
			"schema":  s.Name,
			"payload": input,
			"errors":  result.GetErrorMessages(),
		})
		return nil, apperrors.NewValidationError(result.FieldErrors())
	}

	raw, err := json.Marshal(withDefaults)
	if err != nil {
		return nil, apperrors.NewFieldError("(root)", CodeInvalidType, err.Error())
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warn("payload failed decoding", map[string]interface{}{
			"schema":  s.Name,
			"payload": input,
			"error":   err,
		})
		return nil, apperrors.NewFieldError("(root)", CodeInvalidType, err.Error())
	}
	return &out, nil
}

func fieldPath(desc gojsonschema.ResultError) string {
	field := desc.Field()
	prop, _ := desc.Details()["property"].(string)
	if prop == "" {
		return field
	}
	if field == "(root)" || field == "" {
		return prop
	}
	if field == prop || strings.HasSuffix(field, "."+prop) {
		return field
	}
	return field + "." + prop
}

func errorCode(t string) string {
	switch t {
	case "required":
		return CodeRequiredFieldMissing
	case "additional_property_not_allowed":
		return CodeExtraField
	case "invalid_type":
		return CodeInvalidType
	case "format":
		return CodeInvalidFormat
	case "enum":
		return CodeInvalidEnumValue
	case "string_gte":
		return CodeMinLengthViolation
	case "string_lte":
		return CodeMaxLengthViolation
	case "pattern":
		return CodePatternMismatch
	case "number_gte":
		return CodeMinimumViolation
	default:
		return strings.ToUpper(t)
	}
}

// FieldErrors converts the result into the shared error taxonomy.
func (vr *ValidationResult) FieldErrors() []apperrors.FieldError {
	out := make([]apperrors.FieldError, len(vr.Errors))
	for i, e := range vr.Errors {
		out[i] = apperrors.FieldError{Field: e.Field, Message: e.Message, Code: e.Code}
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// ValidateURL reports whether s is an absolute http(s) URL with a host.
func ValidateURL(s string) bool {
	if strings.TrimSpace(s) != s || s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
