package transmission

import (
	"errors"
	"fmt"
)

// ErrorKind classifies RPC failures for the presenter.
type ErrorKind int

const (
	// KindConnection covers unreachable hosts and unexpected HTTP statuses.
	// Callers keep polling.
	KindConnection ErrorKind = iota
	// KindAuthentication is a 401. It stays terminal until credentials or
	// the connection change.
	KindAuthentication
	// KindProtocol is a malformed or unsuccessful reply.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindProtocol:
		return "protocol"
	default:
		return "connection"
	}
}

// Messages shown for authentication failures.
const (
	MsgMissingCredentials = "Missing user or password"
	MsgAuthFailed         = "Authentication failed"
	MsgCannotConnect      = "Can't connect to Transmission"
	MsgInvalidResponse    = "Invalid response from Transmission"
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind       ErrorKind
	Method     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Errors that did not come from this package
// count as connection failures.
func KindOf(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return KindConnection
}

// MessageOf returns the human readable part of err without wrapping detail.
func MessageOf(err error) string {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsAuthentication reports whether err is a 401 rejection.
func IsAuthentication(err error) bool {
	return err != nil && KindOf(err) == KindAuthentication
}
