package models

import (
	"strings"
	"time"
)

// FieldType enumerates the input kinds a form can collect.
type FieldType string

const (
	FieldTypeText           FieldType = "text"
	FieldTypeMultipleChoice FieldType = "multiple-choice"
	FieldTypeCheckbox       FieldType = "checkbox"
	FieldTypeRating         FieldType = "rating"
)

var fieldTypeAliases = map[string]FieldType{
	"short-text":      FieldTypeText,
	"choice-single":   FieldTypeMultipleChoice,
	"choice-multiple": FieldTypeCheckbox,
}

// Normalize maps alias spellings onto the canonical type names.
func (t FieldType) Normalize() FieldType {
	lower := strings.ToLower(strings.TrimSpace(string(t)))
	if canonical, ok := fieldTypeAliases[lower]; ok {
		return canonical
	}
	return FieldType(lower)
}

func (t FieldType) Valid() bool {
	switch t.Normalize() {
	case FieldTypeText, FieldTypeMultipleChoice, FieldTypeCheckbox, FieldTypeRating:
		return true
	}
	return false
}

// HasOptions reports whether values must be drawn from Field.Options.
func (t FieldType) HasOptions() bool {
	n := t.Normalize()
	return n == FieldTypeMultipleChoice || n == FieldTypeCheckbox
}

// Field is one input slot of a form. It lives inside the form document.
type Field struct {
	ID         string         `json:"id" bson:"id" validate:"required,max=100"`
	Label      string         `json:"label" bson:"label" validate:"required,max=500"`
	Type       FieldType      `json:"type" bson:"type" validate:"required,field_type"`
	Required   bool           `json:"required" bson:"required"`
	Options    []string       `json:"options,omitempty" bson:"options,omitempty" validate:"omitempty,dive,required"`
	Validation map[string]any `json:"validation,omitempty" bson:"validation,omitempty"`
}

// Form is a titled, ordered list of fields.
type Form struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Fields      []Field   `json:"fields"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FieldByID returns the field with the given identifier.
func (f *Form) FieldByID(id string) (Field, bool) {
	for _, field := range f.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return Field{}, false
}

// FormInput is the payload for creating a form.
type FormInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Fields      []Field `json:"fields" validate:"dive"`
}

// FormPatch carries a partial update. Nil members are left untouched.
type FormPatch struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Fields      *[]Field `json:"fields,omitempty" validate:"omitempty,dive"`
}

// Apply copies the provided members onto form.
func (p FormPatch) Apply(form *Form) {
	if p.Title != nil {
		form.Title = *p.Title
	}
	if p.Description != nil {
		form.Description = *p.Description
	}
	if p.Fields != nil {
		form.Fields = *p.Fields
	}
}
