package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for ids that do not exist and for ids owned by another
	// principal. The two cases are indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrItemNotFound is returned when a line references a catalog item the caller
	// does not own. errors.Is(ErrItemNotFound, ErrNotFound) holds.
	ErrItemNotFound = fmt.Errorf("item %w", ErrNotFound)

	// ErrCustomerRequired is returned when an invoice's customer_id is missing or does
	// not name one of the caller's customers.
	ErrCustomerRequired = &ValidationError{Field: "customer_id", Message: "must reference an existing customer"}

	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// itemNotFound decorates ErrItemNotFound with the offending id.
func itemNotFound(itemID int) error {
	return fmt.Errorf("catalog item %d: %w", itemID, ErrItemNotFound)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
