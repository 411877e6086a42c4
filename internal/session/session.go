package session

import "strings"

// Roles a session can act under when listing inquiry threads.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// Session carries the authenticated identity the chat subsystem acts as.
// It is constructed once at app start (after login) and torn down at logout;
// no component reads ambient global auth state.
type Session struct {
	UserID string
	Role   string
	Token  string
}

// New builds a session, normalising the role to a known value.
func New(userID, role, token string) Session {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleSeller {
		role = RoleBuyer
	}
	return Session{
		UserID: strings.TrimSpace(userID),
		Role:   role,
		Token:  strings.TrimSpace(token),
	}
}

// Valid reports whether the session can authenticate transport calls.
func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}
