package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies the failures the ingester can encounter
type ErrorType string

const (
	ErrorTypeTransport ErrorType = "transport" // connect/login/navigate/retrieve
	ErrorTypeArchive   ErrorType = "archive"   // open/extract
	ErrorTypeDecode    ErrorType = "decode"    // parse failed under every scheme
	ErrorTypeStorage   ErrorType = "storage"   // durable copy/write
	ErrorTypeConfig    ErrorType = "config"    // invalid configuration
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error carries the failure class plus the operation and remote/local path
// that produced it.
type Error struct {
	Type ErrorType
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s %q: %v", e.Type, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Type, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps a remote session failure.
func Transport(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeTransport, Op: op, Path: path, Err: err}
}

// Archive wraps a failure to open or extract an archive.
func Archive(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeArchive, Op: op, Path: path, Err: err}
}

// Decode wraps a tabular parse failure.
func Decode(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeDecode, Op: op, Path: path, Err: err}
}

// Storage wraps a durable write/copy failure.
func Storage(op, path string, err error) *Error {
	return &Error{Type: ErrorTypeStorage, Op: op, Path: path, Err: err}
}

// TypeOf reports the classification of err, or ErrorTypeUnknown for errors
// that did not originate in this package.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is classified as t.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
