package services

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"form-analytics-server/models"
)

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(key, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[key]; !exists {
		e.Fields[key] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidator returns a validator that knows the field_type rule and
// reports json names in its errors.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the custom rules on v. It is also used to
// extend gin's binding validator.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		return models.FieldType(fl.Field().String()).Valid()
	})
}

// BindingError converts a request decoding failure into field-level messages.
func BindingError(err error) *ValidationError {
	verr := &ValidationError{}
	translateValidatorErrors(err, verr)
	return verr
}

func translateValidatorErrors(err error, into *ValidationError) {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		into.add("body", err.Error())
		return
	}
	for _, fe := range errs {
		// Drop the struct name prefix: "FormInput.fields[0].type" -> "fields[0].type".
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		into.add(key, describeTag(fe))
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "field_type":
		return fmt.Sprintf("%q is not a valid field type.", fe.Value())
	}
	return fmt.Sprintf("Failed the %q rule.", fe.Tag())
}

// normalizeFields canonicalises type aliases and checks the definitions that
// struct tags cannot express.
func normalizeFields(fields []models.Field, prefix string, verr *ValidationError) []models.Field {
	out := make([]models.Field, len(fields))
	seen := make(map[string]int, len(fields))

	for i, field := range fields {
		key := fmt.Sprintf("%s[%d]", prefix, i)
		field.ID = strings.TrimSpace(field.ID)
		field.Type = field.Type.Normalize()

		if prev, dup := seen[field.ID]; dup && field.ID != "" {
			verr.add(key+".id", fmt.Sprintf("Duplicate field id %q (also used by %s[%d]).", field.ID, prefix, prev))
		}
		seen[field.ID] = i

		if field.Type.HasOptions() && len(field.Options) == 0 {
			verr.add(key+".options", "Choice fields need at least one option.")
		}
		if !field.Type.HasOptions() && len(field.Options) > 0 {
			field.Options = nil
		}
		checkRules(field, key+".validation", verr)

		out[i] = field
	}
	return out
}

func checkRules(field models.Field, key string, verr *ValidationError) {
	rules := field.Validation
	if len(rules) == 0 {
		return
	}

	minLen, hasMin, ok := ruleNumber(rules, "minLength")
	if !ok || (hasMin && minLen < 0) {
		verr.add(key+".minLength", "Must be a non-negative number.")
	}
	maxLen, hasMax, ok := ruleNumber(rules, "maxLength")
	if !ok || (hasMax && maxLen < 0) {
		verr.add(key+".maxLength", "Must be a non-negative number.")
	}
	if hasMin && hasMax && minLen > maxLen {
		verr.add(key, "minLength cannot exceed maxLength.")
	}

	if raw, present := rules["pattern"]; present {
		pattern, isString := raw.(string)
		if !isString {
			verr.add(key+".pattern", "Must be a string.")
		} else if _, err := regexp.Compile(pattern); err != nil {
			verr.add(key+".pattern", "Invalid regular expression.")
		}
	}

	lo, hasLo, okLo := ruleNumber(rules, "min")
	hi, hasHi, okHi := ruleNumber(rules, "max")
	if !okLo {
		verr.add(key+".min", "Must be a number.")
	}
	if !okHi {
		verr.add(key+".max", "Must be a number.")
	}
	if hasLo && hasHi && lo > hi {
		verr.add(key, "min cannot exceed max.")
	}
}

// ruleNumber reads a numeric rule. ok is false when the key holds a non-number.
func ruleNumber(rules map[string]any, name string) (value float64, present bool, ok bool) {
	raw, exists := rules[name]
	if !exists || raw == nil {
		return 0, false, true
	}
	n, isNum := toFloat(raw)
	if !isNum {
		return 0, true, false
	}
	return n, true, true
}

func toFloat(v any) (float64, bool) {
	switch n := models.NormalizeValue(v).(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// checkValue validates one submitted value against its field definition.
func checkValue(field models.Field, value any) string {
	switch field.Type.Normalize() {
	case models.FieldTypeText:
		s, ok := value.(string)
		if !ok {
			return "Expected a string."
		}
		if field.Required && strings.TrimSpace(s) == "" {
			return "This field is required."
		}
		length := float64(len([]rune(s)))
		if n, has, _ := ruleNumber(field.Validation, "minLength"); has && length < n {
			return fmt.Sprintf("Must be at least %d characters.", int(n))
		}
		if n, has, _ := ruleNumber(field.Validation, "maxLength"); has && length > n {
			return fmt.Sprintf("Must be at most %d characters.", int(n))
		}
		if pattern, ok := field.Validation["pattern"].(string); ok && pattern != "" && s != "" {
			re, err := regexp.Compile(pattern)
			if err == nil && !re.MatchString(s) {
				return "Does not match the required format."
			}
		}

	case models.FieldTypeMultipleChoice:
		s, ok := value.(string)
		if !ok {
			return "Expected a single option."
		}
		if !contains(field.Options, s) {
			return fmt.Sprintf("%q is not one of the available options.", s)
		}

	case models.FieldTypeCheckbox:
		items, ok := value.([]any)
		if !ok {
			return "Expected a list of options."
		}
		if field.Required && len(items) == 0 {
			return "Select at least one option."
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return "Expected a list of options."
			}
			if !contains(field.Options, s) {
				return fmt.Sprintf("%q is not one of the available options.", s)
			}
		}

	case models.FieldTypeRating:
		n, ok := toFloat(value)
		if !ok || n != math.Trunc(n) {
			return "Expected a whole number."
		}
		lo, hasLo, _ := ruleNumber(field.Validation, "min")
		if !hasLo {
			lo = 1
		}
		hi, hasHi, _ := ruleNumber(field.Validation, "max")
		if !hasHi {
			hi = 5
		}
		if n < lo || n > hi {
			return fmt.Sprintf("Must be between %d and %d.", int(lo), int(hi))
		}
	}
	return ""
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
