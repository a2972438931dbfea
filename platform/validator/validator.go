// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

const (
	// TagPersonName accepts 2-100 letters, combining marks, spaces, hyphens, apostrophes and periods.
	TagPersonName = "personname"
	// TagPostalAddress accepts 10-255 characters with at least one digit and one letter.
	TagPostalAddress = "postaladdress"
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the customer field rules registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation(TagPersonName, func(fl validator.FieldLevel) bool {
		return IsPersonName(fl.Field().String())
	})
	_ = v.RegisterValidation(TagPostalAddress, func(fl validator.FieldLevel) bool {
		return IsPostalAddress(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// ValidName reports whether input satisfies the person name contract.
func (val *Validator) ValidName(input string) bool {
	return val.v.Var(NormalizeText(input), TagPersonName) == nil
}

// ValidAddress reports whether input satisfies the postal address contract.
func (val *Validator) ValidAddress(input string) bool {
	return val.v.Var(NormalizeText(input), TagPostalAddress) == nil
}

// NormalizeText trims and composes text to NFC so that "João" typed with a
// combining tilde counts the same as the precomposed form.
func NormalizeText(input string) string {
	return norm.NFC.String(strings.TrimSpace(input))
}

// IsPersonName implements TagPersonName.
func IsPersonName(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 100 {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r):
		case r == ' ', r == '-', r == '\'', r == '.':
		default:
			return false
		}
	}
	return true
}

// IsPostalAddress implements TagPostalAddress.
func IsPostalAddress(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 10 || n > 255 {
		return false
	}
	var hasDigit, hasLetter bool
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasDigit && hasLetter
}
