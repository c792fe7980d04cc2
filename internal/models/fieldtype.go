// Package models holds the client-side domain vocabulary: the field type
// catalog and per-type value validation. The server never imports this
// package; on the wire fieldType is an opaque string.
package models

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// FieldType enumerates the column types a client can render and edit.
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypePrice      FieldType = "price"
	FieldTypeDropdown   FieldType = "dropdown"
	FieldTypeURL        FieldType = "url"
	FieldTypeDate       FieldType = "date"
	FieldTypeTime       FieldType = "time"
	FieldTypeDateTime   FieldType = "datetime"
	FieldTypeNumber     FieldType = "number"
	FieldTypePercentage FieldType = "percentage"
	FieldTypeCheckbox   FieldType = "checkbox"
	FieldTypeEmail      FieldType = "email"
	FieldTypePhone      FieldType = "phone"
	FieldTypeRating     FieldType = "rating"
	FieldTypeColor      FieldType = "color"
)

// AllFieldTypes lists every known type, in display order.
var AllFieldTypes = []FieldType{
	FieldTypeText,
	FieldTypePrice,
	FieldTypeDropdown,
	FieldTypeURL,
	FieldTypeDate,
	FieldTypeTime,
	FieldTypeDateTime,
	FieldTypeNumber,
	FieldTypePercentage,
	FieldTypeCheckbox,
	FieldTypeEmail,
	FieldTypePhone,
	FieldTypeRating,
	FieldTypeColor,
}

// ParseFieldType validates a user-supplied type name.
func ParseFieldType(s string) (FieldType, error) {
	ft := FieldType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFieldTypes {
		if ft == known {
			return ft, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// DropdownChoices decodes the pipe-delimited option string of a dropdown
// field. Empty segments are dropped.
func DropdownChoices(fieldOptions string) []string {
	var choices []string
	for _, c := range strings.Split(fieldOptions, "|") {
		if c = strings.TrimSpace(c); c != "" {
			choices = append(choices, c)
		}
	}
	return choices
}

// ValidateValue checks a cell value against the field's type and options.
// An empty value is always accepted (cleared cell).
func (ft FieldType) ValidateValue(value, fieldOptions string) error {
	if value == "" {
		return nil
	}

	switch ft {
	case FieldTypeText, FieldTypeColor, FieldTypePhone, FieldTypeURL:
		return nil

	case FieldTypePrice, FieldTypeNumber, FieldTypePercentage:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("value %q is not numeric", value)
		}
		return nil

	case FieldTypeCheckbox:
		if value != "true" && value != "false" {
			return fmt.Errorf("checkbox value must be true or false, got %q", value)
		}
		return nil

	case FieldTypeRating:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("rating value %q is not an integer", value)
		}
		max := 5
		if fieldOptions != "" {
			if parsed, err := strconv.Atoi(fieldOptions); err == nil && parsed > 0 {
				max = parsed
			}
		}
		if n < 0 || n > max {
			return fmt.Errorf("rating %d out of range 0..%d", n, max)
		}
		return nil

	case FieldTypeDropdown:
		for _, c := range DropdownChoices(fieldOptions) {
			if value == c {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of the dropdown choices", value)

	case FieldTypeEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Errorf("invalid email address %q", value)
		}
		return nil

	case FieldTypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
		}
		return nil

	case FieldTypeTime:
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("invalid time %q, want HH:MM", value)
		}
		return nil

	case FieldTypeDateTime:
		if _, err := time.Parse("2006-01-02 15:04", value); err != nil {
			return fmt.Errorf("invalid datetime %q, want YYYY-MM-DD HH:MM", value)
		}
		return nil
	}

	// Unknown types pass through: newer clients may sync types this build
	// does not know yet, and the value must survive round trips untouched.
	return nil
}
