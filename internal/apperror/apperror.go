// Package apperror defines the failure classes of a fixture generation run.
// Every error that aborts the run carries one of these stable codes so that
// main can log it once and map it to a process exit status.
package apperror

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure classification string.
type Code string

// Failure codes. Scripts wrapping fixturegen may match on these; do not
// rename existing codes.
const (
	MissingConfiguration Code = "MISSING_CONFIGURATION"
	InvalidConfiguration Code = "INVALID_CONFIGURATION"
	SigningFailure       Code = "SIGNING_FAILURE"
	FileWriteFailure     Code = "FILE_WRITE_FAILURE"
	VerificationFailure  Code = "VERIFICATION_FAILURE"
	Internal             Code = "INTERNAL"
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given code and operation name.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Missing reports an absent required configuration value.
func Missing(name string) *Error {
	return New(MissingConfiguration, "load config", fmt.Errorf("no %s in environment or .env file", name))
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// Internal when err is not classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

var exitCodes = map[Code]int{
	MissingConfiguration: 2,
	InvalidConfiguration: 2,
	SigningFailure:       3,
	FileWriteFailure:     4,
	VerificationFailure:  5,
	Internal:             1,
}

// ExitCode maps err to the process exit status. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return exitCodes[CodeOf(err)]
}
