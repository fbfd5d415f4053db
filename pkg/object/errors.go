package object

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrMissingObject = errors.New("missing object")
	ErrTypeMismatch  = errors.New("object type mismatch")
	ErrInvalidData   = errors.New("invalid data")
)

// ValidationError reports a malformed hash, ref name or path. It is always
// produced locally, before any storage access.
type ValidationError struct {
	Kind   string // "hash", "ref", "path", ...
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MissingObjectError reports that a content-addressed object is absent.
// It is distinct from corruption, which is reported as InvalidDataError.
type MissingObjectError struct {
	Hash Hash
}

func (e *MissingObjectError) Error() string {
	return fmt.Sprintf("missing object %s", e.Hash)
}

func (e *MissingObjectError) Is(target error) bool { return target == ErrMissingObject }

// ObjectTypeMismatchError reports a decoded object of an unexpected variant.
type ObjectTypeMismatchError struct {
	Hash Hash
	Want ObjectType
	Got  ObjectType
}

func (e *ObjectTypeMismatchError) Error() string {
	return fmt.Sprintf("object %s: type mismatch: got %q, want %q", e.Hash, e.Got, e.Want)
}

func (e *ObjectTypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// InvalidDataError reports bytes that should have been well-formed but could
// not be decoded.
type InvalidDataError struct {
	What string
	Err  error
}

func (e *InvalidDataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s", e.What)
	}
	return fmt.Sprintf("invalid %s: %v", e.What, e.Err)
}

func (e *InvalidDataError) Unwrap() error { return e.Err }

func (e *InvalidDataError) Is(target error) bool { return target == ErrInvalidData }

func invalidf(what, format string, args ...any) error {
	return &InvalidDataError{What: what, Err: fmt.Errorf(format, args...)}
}

// IsMissing reports whether err (or anything it wraps) is a MissingObjectError
// and returns the missing hash.
func IsMissing(err error) (Hash, bool) {
	var m *MissingObjectError
	if errors.As(err, &m) {
		return m.Hash, true
	}
	return "", false
}
