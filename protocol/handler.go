// Package protocol runs the per-connection session logic: handshake,
// reassignment, and controller routing.
//
// A session is Authenticating until a handshake succeeds and Active while the
// connection is registered. An Active session stays Active through further
// handshakes, which reassign its role.
package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/LocoMH/wwtbam-server/domain"
	"github.com/LocoMH/wwtbam-server/metrics"
)

type Policy struct {
	// CloseOnAuthFailure closes an unauthenticated connection after a failed
	// handshake instead of waiting for a corrected one.
	CloseOnAuthFailure bool
}

type Handler struct {
	relay   domain.Relay
	auth    domain.Authenticator
	policy  Policy
	metrics *metrics.Relay
}

func NewHandler(r domain.Relay, a domain.Authenticator, p Policy, m *metrics.Relay) *Handler {
	return &Handler{relay: r, auth: a, policy: p, metrics: m}
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	in := Decode(data)

	if _, active := h.relay.RoleOf(conn); !active {
		h.authenticate(conn, in)
		return
	}

	switch in.Kind {
	case KindMalformed:
		h.reject(conn, domain.ErrMalformedPayload)
	case KindHandshake:
		h.reassign(conn, in.Handshake)
	case KindRoute:
		h.route(conn, in.Route)
	}
}

func (h *Handler) authenticate(conn domain.Connection, in Inbound) {
	if in.Kind == KindMalformed {
		h.reject(conn, domain.ErrMalformedPayload)
		return
	}

	role, err := h.auth.Authenticate(in.Handshake.Role, in.Handshake.Token)
	if err != nil {
		slog.Warn("handshake rejected", "clientId", conn.ID(), "role", in.Handshake.Role, "error", err)
		h.reject(conn, err)
		if h.policy.CloseOnAuthFailure {
			if err := conn.Close(); err != nil {
				slog.Debug("close error", "clientId", conn.ID(), "error", err)
			}
		}
		return
	}

	h.relay.Register(conn, role)
}

func (h *Handler) reassign(conn domain.Connection, hs Handshake) {
	role, err := h.auth.Authenticate(hs.Role, hs.Token)
	if err != nil {
		slog.Warn("reassignment rejected", "clientId", conn.ID(), "role", hs.Role, "error", err)
		h.reject(conn, err)
		return
	}

	h.relay.Register(conn, role)
}

func (h *Handler) route(conn domain.Connection, req Route) {
	role, ok := h.relay.RoleOf(conn)
	if !ok || role != domain.RoleController {
		h.reject(conn, domain.ErrUnauthorized)
		return
	}
	if err := req.Err(); err != nil {
		slog.Warn("invalid route request", "clientId", conn.ID(), "error", err)
		h.reject(conn, err)
		return
	}

	delivered := h.relay.Route(req.Message, req.Targets)
	slog.Debug("controller message relayed", "clientId", conn.ID(), "targets", req.Targets, "delivered", delivered)
}

func (h *Handler) reject(conn domain.Connection, err error) {
	h.metrics.ClientError(domain.ErrorReason(err))

	resp, merr := json.Marshal(domain.ErrorReply{Error: domain.ErrorText(err)})
	if merr != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", merr)
		return
	}
	if serr := conn.Send(resp); serr != nil {
		slog.Debug("error reply not delivered", "clientId", conn.ID(), "error", serr)
	}
}
