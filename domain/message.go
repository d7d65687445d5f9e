package domain

import "encoding/json"

const EnvelopeTypeMessage = "message"

// Envelope wraps every routed payload on its way to a subscriber.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type HandshakeRequest struct {
	Role  string `json:"role"`
	Token string `json:"token"`
}

type RouteRequest struct {
	Roles   []string `json:"roles,omitempty"`
	Message any      `json:"message"`
}
