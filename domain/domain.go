package domain

import "encoding/json"

type Role string

const (
	RoleController Role = "controller"
	RoleContestant Role = "contestant"
	RoleHost       Role = "host"
	RoleTVScreen   Role = "tvscreen"
	RoleAudience   Role = "audience"
)

var roles = []Role{RoleController, RoleContestant, RoleHost, RoleTVScreen, RoleAudience}

// Roles returns every known role in a fixed order.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

type Registry interface {
	Register(conn Connection, role Role)
	Unregister(conn Connection)
	RoleOf(conn Connection) (Role, bool)
	MembersOf(role Role) []Connection
	Stats() map[Role]int
}

type Router interface {
	Route(payload json.RawMessage, targets []Role) int
}

// Relay is the registry and router behind a single lock.
type Relay interface {
	Registry
	Router
}

type Authenticator interface {
	Authenticate(role, token string) (Role, error)
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
}
