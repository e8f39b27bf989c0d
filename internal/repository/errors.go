// Package repository implements the identity store.  These sentinel values
// let the service layer branch on what went wrong without inspecting driver
// errors.  ErrNotFound is a lookup miss and ErrDuplicateEmail means the
// unique email constraint rejected a write.  ErrFieldTooLong means a value
// did not fit its column.  ErrStorage wraps any failure of the datastore
// itself (connection refused, timeout, bad query).
package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrFieldTooLong   = errors.New("value too long for column")
	ErrStorage        = errors.New("storage failure")
)

// storageErr wraps a datastore error so that errors.Is(err, ErrStorage) holds
// while the original cause stays reachable for logging.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
