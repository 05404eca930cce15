package scanio

import (
	"errors"
	"fmt"
)

// Fatal preprocessing errors, wrapped by Error.
var (
	ErrIncludeDepth     = errors.New("maximum include depth exceeded")
	ErrIncludeArgument  = errors.New("illegal include macro argument")
	ErrMissingEndif     = errors.New("missing endif")
	ErrMismatchedMacro  = errors.New("mismatched macro")
	ErrMissingTarget    = errors.New("missing macro target")
	ErrMissingCondition = errors.New("missing ifeval condition")
	ErrUnsafeIfeval     = errors.New("ifeval invalid safe document")
	ErrIfevalEvaluation = errors.New("error evaluating ifeval condition")
)

// Error is a fatal input error positioned at the cursor where it happened.
type Error struct {
	Cursor Cursor
	Err    error
}

func (e *Error) Error() string {
	if e.Cursor.File == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %v", e.Cursor, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func errorf(cur Cursor, sentinel error, format string, args ...interface{}) error {
	return &Error{
		Cursor: cur,
		Err:    fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}
