package execution

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrProtocolViolation marks programming errors: a cursor used out of its lifecycle,
// a corrupted bindings stream or an unsupported operation. They abort the query.
var ErrProtocolViolation = errors.New("cursor protocol violation")

var (
	ErrCursorLifecycle      = &protocolError{msg: "cursor used in wrong state"}
	ErrUnsupportedOperation = &protocolError{msg: "unsupported operation"}
	ErrBindingsTooDeep      = &protocolError{msg: "bindings too deep"}
)

type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return e.msg
}

func (e *protocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// ErrInvalidInput marks failures caused by query input, such as a negative limit.
var ErrInvalidInput = errors.New("invalid input")

// NegativeLimitError is returned when a resolved OFFSET or LIMIT is negative.
type NegativeLimitError struct {
	Parameter string
	Value     int
}

func (e *NegativeLimitError) Error() string {
	return fmt.Sprintf("invalid %s value %d: must not be negative", e.Parameter, e.Value)
}

func (e *NegativeLimitError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ErrQueryCanceled is returned from every cursor after the query has been canceled.
var ErrQueryCanceled = errors.New("query canceled")
