package domain

import "errors"

// Client-input errors. They are reported to the sending connection only.
var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrInvalidToken     = errors.New("invalid token")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnauthorized     = errors.New("only controllers can send messages")
)

// ErrorText maps a client-input error to the text sent back on the wire.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrUnknownRole):
		return "Unknown role"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, ErrUnauthorized):
		return "Only controllers can send messages"
	default:
		return "Invalid JSON"
	}
}

// ErrorReason is a short label for metrics and logs.
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "malformed_payload"
	}
}
