package atcmd

import (
	"errors"
	"fmt"
)

// Error codes reported as +CME ERROR:<code>.
const (
	ErrnoNoSupport   = 1
	ErrnoNoAllow     = 2
	ErrnoParamValue  = 5
	ErrnoParamNumber = 6
	ErrnoExecFail    = 7
	ErrnoSystem      = 8
)

// Error is a command failure carrying a result code.
type Error struct {
	Code int
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("+CME ERROR:%d", e.Code)
}

// Predefined errors.
var (
	ErrNoSupport   = &Error{Code: ErrnoNoSupport}
	ErrNoAllow     = &Error{Code: ErrnoNoAllow}
	ErrParamValue  = &Error{Code: ErrnoParamValue}
	ErrParamNumber = &Error{Code: ErrnoParamNumber}
	ErrExecFail    = &Error{Code: ErrnoExecFail}
	ErrSystem      = &Error{Code: ErrnoSystem}
)

// CodeOf maps any error to a result code, 0 for nil. Errors not wrapping
// an *Error are execution failures.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrExecFail.Code
}
