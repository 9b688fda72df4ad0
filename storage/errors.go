package storage

import "errors"

// Storage sentinel errors. The service layer wraps these into the core error
// taxonomy; within this package they are returned bare.
var (
	// ErrEventNotFound is returned when a log event is not found.
	ErrEventNotFound = errors.New("event not found")

	// ErrRuleNotFound is returned when a correlation rule is not found.
	ErrRuleNotFound = errors.New("correlation rule not found")

	// ErrAlertNotFound is returned when a correlated alert is not found.
	ErrAlertNotFound = errors.New("correlated alert not found")

	// ErrTicketNotFound is returned when a ticket is not found.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrAnalystNotFound is returned when an analyst is not found.
	ErrAnalystNotFound = errors.New("analyst not found")

	// ErrDuplicateEmail is returned when creating or updating an analyst
	// with an email already present in the directory.
	ErrDuplicateEmail = errors.New("analyst email already exists")
)
