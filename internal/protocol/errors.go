package protocol

import (
	"errors"
	"fmt"
)

// FaultKind classifies a transport-level failure of a socket call.
type FaultKind string

const (
	FaultSocketAbsent      FaultKind = "socket_absent"
	FaultConnectFailed     FaultKind = "connect_failed"
	FaultWriteFailed       FaultKind = "write_failed"
	FaultReadTimeout       FaultKind = "read_timeout"
	FaultNoResponse        FaultKind = "no_response"
	FaultMalformedResponse FaultKind = "malformed_response"
)

// TransportError is any failure to complete a socket exchange with the
// engine. The gateway converts every TransportError into a fallback
// invocation; it is never shown to an end caller.
type TransportError struct {
	Kind FaultKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with a fault classification.
func NewTransportError(kind FaultKind, err error) *TransportError {
	return &TransportError{Kind: kind, Err: err}
}

// ServerError is a well-formed error payload produced by the engine
// itself. Unlike a TransportError it is user-facing: the gateway
// surfaces it, prefixed, as the answer text.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// AsTransport returns the TransportError in err's chain, if any.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// AsServer returns the ServerError in err's chain, if any.
func AsServer(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Supervisor-level failures. These are reported to the operator and
// never retried automatically.
var (
	// ErrAlreadyRunning means a live engine is already serving the socket.
	ErrAlreadyRunning = errors.New("engine already running")
	// ErrStartTimeout means the readiness marker never appeared in time.
	ErrStartTimeout = errors.New("engine start timed out waiting for readiness marker")
	// ErrNotRunning means no engine process could be located.
	ErrNotRunning = errors.New("engine not running")
	// ErrLockBusy means another lifecycle operation holds the lock.
	ErrLockBusy = errors.New("another lifecycle operation is in progress")
)
