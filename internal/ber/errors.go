package ber

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	// ErrUnexpectedEOF is returned when an element is truncated.
	ErrUnexpectedEOF = errors.New("ber: unexpected end of data")

	// ErrInvalidLength is returned when length octets are malformed or exceed MaxLength.
	ErrInvalidLength = errors.New("ber: invalid length encoding")

	// ErrIndefiniteLength is returned for the indefinite length form, which
	// LDAP forbids (RFC 4511 Section 5.1).
	ErrIndefiniteLength = errors.New("ber: indefinite length not supported")

	// ErrInvalidBoolean is returned when a boolean value has a length other than 1.
	ErrInvalidBoolean = errors.New("ber: invalid boolean encoding")

	// ErrInvalidInteger is returned when an integer value is empty or too wide.
	ErrInvalidInteger = errors.New("ber: invalid integer encoding")

	// ErrInvalidNull is returned when a null value carries content.
	ErrInvalidNull = errors.New("ber: invalid null encoding")

	// ErrTagMismatch is returned when the element tag differs from the expected tag.
	ErrTagMismatch = errors.New("ber: tag mismatch")

	// ErrLengthOverflow is returned by the encoder for lengths it cannot represent.
	ErrLengthOverflow = errors.New("ber: length value overflow")
)

// SyntaxError reports a decoding failure with the offset where it occurred.
type SyntaxError struct {
	Offset  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: offset %d: %s", e.Offset, e.Message)
}

// Unwrap returns the underlying error.
func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func syntaxErr(offset int, message string, err error) *SyntaxError {
	return &SyntaxError{Offset: offset, Message: message, Err: err}
}
