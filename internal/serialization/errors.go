package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("file is truncated")
	ErrBodyTooLarge       = errors.New("body exceeds maximum size")
)

// FormatError describes a body that decodes but does not describe a valid graph.
type FormatError struct {
	Type    string // Type of error (e.g., "malformed", "unknown_kind", "value_size")
	Name    string // Variable or op name involved, if any
	Details string // Additional details
	Err     error  // Underlying error, if any
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := e.Type
	if e.Name != "" {
		msg += fmt.Sprintf(": %q", e.Name)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error { return e.Err }
