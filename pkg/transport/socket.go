package transport

import (
	"crypto/tls"
	"io"
	"net"
)

// socket is the tagged choice of active transport mode. Exactly one
// variant is populated once the handshake completes; the choice is fixed
// for the life of the connection. The unexported marker method seals the
// set of variants to this package.
type socket interface {
	io.ReadWriteCloser

	// encrypted reports whether the variant carries TLS.
	encrypted() bool

	// variant seals the interface.
	variant()
}

// plainSocket is the unencrypted variant over the raw TCP stream.
type plainSocket struct {
	net.Conn
}

func (plainSocket) encrypted() bool { return false }
func (plainSocket) variant()        {}

// tlsSocket is the encrypted variant layered over the already-open
// TCP stream after a successful upgrade.
type tlsSocket struct {
	*tls.Conn
}

func (tlsSocket) encrypted() bool { return true }
func (tlsSocket) variant()        {}

// Compile-time variant checks.
var (
	_ socket = plainSocket{}
	_ socket = tlsSocket{}
)
