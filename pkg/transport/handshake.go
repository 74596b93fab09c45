package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Handshake tokens. Immediately after the TCP connect the client writes
// one 4-byte big-endian token; the server answers with one. The values
// are fixed protocol constants both ends of a deployment must agree on.
const (
	// TokenPlaintext is sent by a client that does not request
	// encryption, and by a server to select (or insist on) a plaintext
	// session.
	TokenPlaintext uint32 = 0x00000000

	// TokenRequestTLS is sent by a client requesting encryption, and by
	// a server accepting the upgrade.
	TokenRequestTLS uint32 = 0x00000001
)

// TokenSize is the size of a handshake token in bytes.
const TokenSize = 4

// handshakeDecision is the negotiated outcome.
type handshakeDecision int

const (
	// decisionPlaintext activates the plaintext variant over the
	// already-open stream.
	decisionPlaintext handshakeDecision = iota

	// decisionUpgradeTLS runs the TLS handshake over the already-open
	// stream and activates the encrypted variant.
	decisionUpgradeTLS
)

// writeToken writes a 4-byte big-endian handshake token.
func writeToken(w io.Writer, token uint32) error {
	var buf [TokenSize]byte
	binary.BigEndian.PutUint32(buf[:], token)
	_, err := w.Write(buf[:])
	return err
}

// readToken reads a 4-byte big-endian handshake token.
func readToken(r io.Reader) (uint32, error) {
	var buf [TokenSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// negotiator decides the client token to send and interprets the
// server's reply.
type negotiator struct {
	// requestTLS selects the capability token the client offers.
	requestTLS bool
}

// clientToken returns the capability token to send after connect.
func (n negotiator) clientToken() uint32 {
	if n.requestTLS {
		return TokenRequestTLS
	}
	return TokenPlaintext
}

// interpret maps the server's reply token to a decision. An unrecognized
// token is a protocol violation and fails the connection. A server
// answering TokenRequestTLS to a client that never asked for encryption
// is equally out of protocol.
func (n negotiator) interpret(reply uint32) (handshakeDecision, error) {
	switch reply {
	case TokenPlaintext:
		return decisionPlaintext, nil
	case TokenRequestTLS:
		if !n.requestTLS {
			return 0, newError(KindHandshakeProtocol,
				"server accepted encryption that was never requested", nil)
		}
		return decisionUpgradeTLS, nil
	default:
		return 0, newError(KindHandshakeProtocol,
			fmt.Sprintf("unrecognized handshake token 0x%08x", reply), nil)
	}
}
