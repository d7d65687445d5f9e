package hub

import (
	"log/slog"
	"sync"

	"github.com/LocoMH/wwtbam-server/domain"
	"github.com/LocoMH/wwtbam-server/metrics"
)

// Hub is the role registry. byRole and roleOf are only touched under mu, so
// a reassignment is never observed half done by a dispatch.
type Hub struct {
	byRole  map[domain.Role]map[string]domain.Connection
	roleOf  map[string]domain.Role
	mu      sync.RWMutex
	metrics *metrics.Relay
}

func New(m *metrics.Relay) *Hub {
	byRole := make(map[domain.Role]map[string]domain.Connection)
	for _, role := range domain.Roles() {
		byRole[role] = make(map[string]domain.Connection)
	}
	return &Hub{
		byRole:  byRole,
		roleOf:  make(map[string]domain.Role),
		metrics: m,
	}
}

func (h *Hub) Register(conn domain.Connection, role domain.Role) {
	if !role.Valid() {
		slog.Warn("refusing to register unknown role", "clientId", conn.ID(), "role", role)
		return
	}

	h.mu.Lock()
	previous, had := h.roleOf[conn.ID()]
	if had {
		delete(h.byRole[previous], conn.ID())
		h.metrics.RoleLeft(string(previous))
	}
	h.byRole[role][conn.ID()] = conn
	h.roleOf[conn.ID()] = role
	h.metrics.RoleJoined(string(role))
	count := len(h.byRole[role])
	h.mu.Unlock()

	if had {
		slog.Info("client reassigned", "clientId", conn.ID(), "from", previous, "role", role, "clients", count)
		return
	}
	slog.Info("client registered", "clientId", conn.ID(), "role", role, "clients", count)
}

func (h *Hub) Unregister(conn domain.Connection) {
	h.mu.Lock()
	role, exists := h.roleOf[conn.ID()]
	if !exists {
		h.mu.Unlock()
		return
	}
	delete(h.byRole[role], conn.ID())
	delete(h.roleOf, conn.ID())
	h.metrics.RoleLeft(string(role))
	count := len(h.byRole[role])
	h.mu.Unlock()

	slog.Info("client unregistered", "clientId", conn.ID(), "role", role, "clients", count)
}

func (h *Hub) RoleOf(conn domain.Connection) (domain.Role, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	role, ok := h.roleOf[conn.ID()]
	return role, ok
}

func (h *Hub) MembersOf(role domain.Role) []domain.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]domain.Connection, 0, len(h.byRole[role]))
	for _, conn := range h.byRole[role] {
		members = append(members, conn)
	}
	return members
}

func (h *Hub) Stats() map[domain.Role]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make(map[domain.Role]int, len(h.byRole))
	for role, clients := range h.byRole {
		stats[role] = len(clients)
	}
	return stats
}
