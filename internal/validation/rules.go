// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strconv"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/caresync/internal/errors"
)

var (
	// documentIDRegex limits identifiers to characters safe in URLs and file
	// names. Identifiers travel as URL path segments between peers.
	documentIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// AccessCodeStrength validates an unlock code against the configured minimum
// length. Length is the only requirement: codes are numeric PINs entered on
// constrained devices, and the derivation cost carries the brute-force burden.
type AccessCodeStrength struct {
	MinLength int
}

// Validate checks if the access code meets the configured minimum length.
func (a AccessCodeStrength) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_access_code_type", "access code must be a string")
	}

	if len(s) < a.MinLength {
		return validation.NewError(
			"validation_access_code_min_length",
			"access code must be at least "+strconv.Itoa(a.MinLength)+" characters",
		)
	}

	return nil
}

// DocumentID validates a document identifier: URL- and filename-safe characters only.
var DocumentID = validation.NewStringRuleWithError(
	func(s string) bool {
		return documentIDRegex.MatchString(s)
	},
	validation.NewError(
		"validation_document_id",
		"must contain only letters, digits, dots, underscores, and hyphens",
	),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
