// Package log provides structured protocol event logging for QuestNet.
//
// Events capture what happened on a connection (frames on the wire,
// state machine transitions, the handshake outcome, errors), tagged with
// a connection ID so multi-connection captures can be untangled later.
//
// Events are encoded as CBOR with integer keys, which keeps long
// captures compact and machine-readable. FileLogger writes a capture,
// Reader replays one (optionally filtered), SlogAdapter mirrors events
// into a development console, and MultiLogger fans out to several sinks.
//
// Applications hand a Logger to transport.Config; nil disables logging
// entirely.
package log
