package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/LocoMH/wwtbam-server/domain"
)

type target struct {
	conn domain.Connection
	role domain.Role
}

// Route wraps payload in an envelope and queues it on every connection of the
// target roles. No targets means every role. It returns the number of
// connections that accepted the envelope.
func (h *Hub) Route(payload json.RawMessage, roles []domain.Role) int {
	if payload == nil {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(domain.Envelope{Type: domain.EnvelopeTypeMessage, Message: payload})
	if err != nil {
		slog.Warn("marshal error", "error", err)
		return 0
	}

	targets := h.resolve(roles)
	h.metrics.Routed()

	delivered := 0
	for _, t := range targets {
		if err := t.conn.Send(data); err != nil {
			slog.Warn("send failed, dropping client", "clientId", t.conn.ID(), "role", t.role, "error", err)
			h.metrics.DeliveryFailed(string(t.role))
			go h.evict(t.conn)
			continue
		}
		h.metrics.Delivered(string(t.role))
		delivered++
	}

	slog.Debug("message routed", "targets", roles, "delivered", delivered, "failed", len(targets)-delivered)
	return delivered
}

// resolve snapshots the members of every target role under one read lock.
func (h *Hub) resolve(roles []domain.Role) []target {
	if len(roles) == 0 {
		roles = domain.Roles()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[domain.Role]struct{}, len(roles))
	var targets []target
	for _, role := range roles {
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}

		clients, ok := h.byRole[role]
		if !ok {
			slog.Debug("ignoring unknown target role", "role", role)
			continue
		}
		for _, conn := range clients {
			targets = append(targets, target{conn: conn, role: role})
		}
	}
	return targets
}

func (h *Hub) evict(conn domain.Connection) {
	h.Unregister(conn)
	if err := conn.Close(); err != nil {
		slog.Debug("close error", "clientId", conn.ID(), "error", err)
	}
}
