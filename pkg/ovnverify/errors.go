package ovnverify

import (
	"errors"
	"fmt"
)

// ConnectionError reports a failure to reach the Northbound database.
type ConnectionError struct {
	// Address is the database address that failed to connect
	Address string

	// Cause is the underlying error
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to OVN NB DB at %s: %v", e.Address, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NotFoundError reports an OVN object missing from the cache.
type NotFoundError struct {
	// ObjectType is the table the object lives in
	ObjectType string

	// Name identifies the missing object
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("OVN %s %q not found", e.ObjectType, e.Name)
}

// MismatchError reports a logical-network object that exists but does
// not match the Kubernetes resource it is derived from.
type MismatchError struct {
	// ObjectType is the table the object lives in
	ObjectType string

	// Name identifies the object
	Name string

	// Field is the field that disagrees
	Field string

	// Want and Got are the expected and actual values
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("OVN %s %q: %s is %q, want %q",
		e.ObjectType, e.Name, e.Field, e.Got, e.Want)
}

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsMismatch returns true if err is a MismatchError.
func IsMismatch(err error) bool {
	var mm *MismatchError
	return errors.As(err, &mm)
}
