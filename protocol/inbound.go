package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/LocoMH/wwtbam-server/domain"
)

type Kind int

const (
	KindMalformed Kind = iota
	KindHandshake
	KindRoute
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindRoute:
		return "route"
	default:
		return "malformed"
	}
}

type Handshake struct {
	Role  string
	Token string
}

type Route struct {
	Targets []domain.Role
	Message json.RawMessage
	err     error
}

// Err reports why the route request cannot be dispatched, if it cannot.
func (r Route) Err() error {
	return r.err
}

// Inbound is one decoded client frame. Handshake is filled from whatever
// role and token fields are present, even when Kind is KindRoute.
type Inbound struct {
	Kind      Kind
	Handshake Handshake
	Route     Route
}

// Decode classifies a frame: an object carrying both role and token is a
// handshake, any other object is a route request, anything else is malformed.
func Decode(data []byte) Inbound {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Inbound{Kind: KindMalformed}
	}

	rawRole, hasRole := fields["role"]
	rawToken, hasToken := fields["token"]
	in := Inbound{
		Handshake: Handshake{
			Role:  stringField(rawRole),
			Token: stringField(rawToken),
		},
	}
	if hasRole && hasToken {
		in.Kind = KindHandshake
		return in
	}

	in.Kind = KindRoute
	in.Route = decodeRoute(fields)
	return in
}

func decodeRoute(fields map[string]json.RawMessage) Route {
	var r Route

	message, ok := fields["message"]
	if !ok {
		r.err = fmt.Errorf("missing message field: %w", domain.ErrMalformedPayload)
		return r
	}
	r.Message = message

	rawRoles, ok := fields["roles"]
	if !ok || string(rawRoles) == "null" {
		return r
	}
	var names []string
	if err := json.Unmarshal(rawRoles, &names); err != nil {
		r.err = fmt.Errorf("roles must be a list of strings: %w", domain.ErrMalformedPayload)
		return r
	}
	for _, name := range names {
		r.Targets = append(r.Targets, domain.Role(name))
	}
	return r
}

// stringField returns the JSON string in raw, or "" for absent or non-string values.
func stringField(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
