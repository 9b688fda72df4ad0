package core

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared: validator instances cache struct metadata and are safe
// for concurrent use.
var validate = validator.New()

// ValidateEmail checks that s is a plausible email address. Assignment
// targets are validated emails rather than analyst foreign keys so manual
// entry still works when the directory lookup has no match.
func ValidateEmail(s string) error {
	if s == "" {
		return NewValidationError("email", "must not be empty")
	}
	if err := validate.Var(s, "email"); err != nil {
		return NewValidationError("email", "must be a valid email address")
	}
	return nil
}
