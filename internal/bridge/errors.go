package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateConnector = errors.New("bridge: duplicate connector id")
	ErrInvalidConnectorID = errors.New("bridge: invalid connector id")
	ErrFunctionNotFound   = errors.New("bridge: function not found on peer")
	ErrPeerDisconnected   = errors.New("bridge: peer disconnected")
	ErrConnectorClosed    = errors.New("bridge: connector closed")
)

// RemoteError carries a peer-reported failure verbatim.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge: peer error %s", e.Kind)
	}
	return fmt.Sprintf("bridge: peer error %s: %s", e.Kind, e.Message)
}

// TransportError wraps a send-time link failure surfaced to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bridge: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
