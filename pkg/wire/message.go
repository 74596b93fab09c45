package wire

import "fmt"

// Request is the envelope a client sends in one transfer.
type Request struct {
	// Action names the operation, e.g. "login" or "join_lobby".
	Action string `cbor:"1,keyasint"`

	// Data carries action-specific fields.
	Data map[string]any `cbor:"2,keyasint,omitempty"`
}

// Validate checks the request is well-formed.
func (r *Request) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("request action is required")
	}
	return nil
}

// Status is the result code of a response.
type Status uint8

const (
	// StatusOK indicates the action succeeded.
	StatusOK Status = 0

	// StatusError indicates the action failed; Message explains why.
	StatusError Status = 1

	// StatusRedirect tells the client to reconnect to Host:Port.
	StatusRedirect Status = 2
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusRedirect:
		return "REDIRECT"
	default:
		return "UNKNOWN"
	}
}

// Response is the envelope a server returns in one transfer.
type Response struct {
	// Status is the result code.
	Status Status `cbor:"1,keyasint"`

	// Data carries action-specific fields.
	Data map[string]any `cbor:"2,keyasint,omitempty"`

	// Message is a human-readable explanation, set on errors.
	Message string `cbor:"3,keyasint,omitempty"`

	// Host and Port are set with StatusRedirect.
	Host string `cbor:"4,keyasint,omitempty"`
	Port uint16 `cbor:"5,keyasint,omitempty"`
}
