package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSequenceExhausted is returned when a numbering scope has no free suffix
// left within its fixed width.
var ErrSequenceExhausted = errors.New("identifier sequence exhausted")

// ErrValidation wraps input validation failures.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateIdentifierError reports that a human-readable identifier is
// already taken by another record.
type DuplicateIdentifierError struct {
	Entity     EntityType
	Identifier string
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s number %q already in use", e.Entity, e.Identifier)
}

// IdentifierConflictError is raised by a store when a write would violate the
// uniqueness of a case or evidence number.
type IdentifierConflictError struct {
	Entity     EntityType
	Identifier string
}

func (e IdentifierConflictError) Error() string {
	return fmt.Sprintf("%s number %q violates uniqueness constraint", e.Entity, e.Identifier)
}

// InvalidDeviceAttributesError names attribute keys that are not legal for
// the record's device type.
type InvalidDeviceAttributesError struct {
	DeviceType DeviceType
	Keys       []string
}

func (e InvalidDeviceAttributesError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("unknown device type %q", e.DeviceType)
	}
	return fmt.Sprintf("attributes not allowed for device type %q: %s", e.DeviceType, strings.Join(e.Keys, ", "))
}
