package api

import "encoding/json"

// Websocket message types. The realtime transport frames the exact same
// SyncRequest/SyncResponse payloads that travel over POST /api/sync.
const (
	MessageTypeSync         = "sync"
	MessageTypeSyncResponse = "syncResponse"
	MessageTypeError        = "error"
)

// ClosePolicyViolation is the close code the server uses to reject a
// connection whose password does not match (RFC 6455 policy violation).
const ClosePolicyViolation = 1008

// Envelope frames one websocket message. ID correlates a syncResponse with
// the sync that triggered it; error frames may omit it.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload of an error-typed envelope.
type ErrorPayload struct {
	Message string `json:"message"`
}
