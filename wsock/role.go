package wsock

// Role identifies which side of a connection a Conn represents.
//
// RFC 6455 Section 5.3 ties masking rules to role, not to any per-message
// choice: clients always mask outgoing frames and reject masked incoming
// frames, servers do the opposite. Role replaces a plain isServer bool so
// every masking decision in the package reads as a single switch instead of
// a negation that is easy to get backwards (one of the fragmentation
// helpers in the wider WebSocket ecosystem has exactly this bug: it swaps
// NewClientFrame/NewServerFrame depending on isServer).
type Role int

const (
	// RoleServer is the accepting side of a connection, produced by Upgrade.
	// RoleServer frames are never masked.
	RoleServer Role = iota

	// RoleClient is the connecting side, produced by Dial.
	// RoleClient frames must always be masked.
	RoleClient
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// masksOutgoing reports whether frames sent by this role must carry a mask.
func (r Role) masksOutgoing() bool {
	return r == RoleClient
}

// peerRole returns the role expected on frames arriving from the other side.
func (r Role) peerRole() Role {
	if r == RoleServer {
		return RoleClient
	}
	return RoleServer
}
