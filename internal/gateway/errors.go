package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind string

const (
	// KindNetwork: the request could not be completed or returned non-2xx.
	KindNetwork ErrorKind = "network"
	// KindProtocol: success=false or a malformed payload.
	KindProtocol ErrorKind = "protocol"
)

// Error is the single error type returned by the gateway. Message carries
// the server-supplied error text when there is one.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s error: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func protocolError(op, msg string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: msg, Err: err}
}

// IsNetwork reports whether err is a gateway network error.
func IsNetwork(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindNetwork
}

// IsProtocol reports whether err is a gateway protocol error.
func IsProtocol(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindProtocol
}

// ServerMessage extracts the server-supplied message from err, if any.
func ServerMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	return ""
}
