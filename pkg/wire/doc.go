// Package wire provides the optional payload envelope for QuestNet
// transfers.
//
// The transport treats payloads as opaque bytes; this package gives
// callers a structured request/response encoding to put inside them:
// CBOR with integer keys, deterministically encoded, with transparent
// gzip compression for large bodies. Servers that redirect clients to
// another host do so with StatusRedirect and host/port response fields.
package wire
