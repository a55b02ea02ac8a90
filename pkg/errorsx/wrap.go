package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError wraps an error with a reason code and a caller message.
type ReasonedError struct {
	Err    error
	Msg    string
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
	}
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// Wrap attaches a message and reason code to an error. An already reasoned
// error keeps its original code so the first classification wins.
func Wrap(err error, msg string, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return ReasonedError{Err: err, Msg: msg, Reason: reason}
}

// New creates a reasoned error from a message.
func New(msg string, reason ReasonCode) error {
	return ReasonedError{Msg: msg, Reason: reason}
}

// Reason extracts the reason code from an error. Unreasoned errors report
// ReasonUnknown.
func Reason(err error) ReasonCode {
	if err == nil {
		return ReasonUnknown
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
