// Package transport implements the QuestNet client transport: the
// network path a game client uses to reach a remote server.
//
// A Connection resolves its target, connects over TCP, negotiates
// optional TLS with graceful fallback to plaintext, and then carries
// framed request/response exchanges.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      Opaque payloads           │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   TLS (negotiated, optional)   │
//	├────────────────────────────────┤
//	│   Capability token handshake   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Handshake
//
// Immediately after connect the client writes a 4-byte big-endian
// capability token (TokenRequestTLS or TokenPlaintext) and the server
// answers with one. TokenRequestTLS back means the TLS handshake runs
// over the already-open stream; TokenPlaintext means the session stays
// plaintext on the same stream, without reconnecting. Any other reply is
// a protocol violation.
//
// # Driving the loop
//
// Every network operation is asynchronous. Completions are delivered
// only while Poll (non-blocking) or Run (blocking until idle) advances
// the connection's event loop, and exactly one operation is outstanding
// at a time. A Connection must be driven from a single goroutine.
//
// There are no internal timeouts or retries: deadlines are enforced by
// the caller via Cancel, and a failed or cancelled connection is
// replaced, not reused.
package transport
