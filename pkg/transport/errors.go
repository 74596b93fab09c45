package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindResolution indicates the host or service could not be resolved.
	KindResolution Kind = iota

	// KindConnection indicates every resolved endpoint refused the connection.
	KindConnection

	// KindHandshakeProtocol indicates the server sent an unrecognized
	// handshake token.
	KindHandshakeProtocol

	// KindEncryption indicates the TLS handshake failed (certificate or
	// cipher negotiation). Fatal only when fallback is disallowed.
	KindEncryption

	// KindSizeLimit indicates the peer advertised a frame larger than the
	// configured maximum. Always fatal; no buffer is allocated for the claim.
	KindSizeLimit

	// KindIO indicates a generic transport failure during a read or write.
	KindIO

	// KindAborted is the result of an explicit Cancel. Not a true failure.
	KindAborted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "RESOLUTION"
	case KindConnection:
		return "CONNECTION"
	case KindHandshakeProtocol:
		return "HANDSHAKE_PROTOCOL"
	case KindEncryption:
		return "ENCRYPTION"
	case KindSizeLimit:
		return "SIZE_LIMIT"
	case KindIO:
		return "IO"
	case KindAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Error is the single tagged error value every transport failure surfaces
// as. Raw net/tls errors never cross the package boundary outside an
// Error's wrap chain.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error returns the kind-tagged message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a transport Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// newError builds a tagged error with an optional cause.
func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// errAborted is the uniform completion result after Cancel.
func errAborted(op string) *Error {
	return newError(KindAborted, op+" aborted", nil)
}

// IsKind reports whether err is a transport Error with the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// mapIOError converts a low-level read/write failure into the taxonomy.
// Cancellation shows up either as context.Canceled or as an error on a
// connection we closed ourselves; both map to Aborted.
func mapIOError(op string, err error, cancelled bool) *Error {
	if cancelled || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return errAborted(op)
	}
	return newError(KindIO, op+" failed", err)
}
