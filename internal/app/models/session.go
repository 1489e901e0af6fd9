package models

import "time"

// Role is the authorization role of an authenticated identity.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// SessionPhase distinguishes the optimistic pre-render session from the
// server-confirmed one. A Provisional session is enough to render screens
// but not enough to run the background security check.
type SessionPhase int

const (
	PhaseNone SessionPhase = iota
	PhaseProvisional
	PhaseConfirmed
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseProvisional:
		return "provisional"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// ScreenSet is the allow-list of screen ids an identity may open.
// A nil ScreenSet means unrestricted; an empty one means no screens
// except the denial screen.
type ScreenSet map[string]struct{}

// NewScreenSet builds a ScreenSet from a list of screen ids.
// A nil slice yields a nil (unrestricted) set.
func NewScreenSet(ids []string) ScreenSet {
	if ids == nil {
		return nil
	}
	s := make(ScreenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Unrestricted reports whether the set places no restriction at all.
func (s ScreenSet) Unrestricted() bool { return s == nil }

// Has reports membership. Always false on an empty (non-nil) set.
func (s ScreenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Session is the authenticated state of this client process.
// Invariant: Role is empty iff Identity is empty. Only the session store
// mutates Session values; everyone else reads snapshots.
type Session struct {
	Identity         string
	Role             Role
	PermittedScreens ScreenSet
	Phase            SessionPhase
}

// IsAuthenticated reports whether an identity is set, provisional or not.
func (s Session) IsAuthenticated() bool { return s.Identity != "" }

// IsAdmin reports whether the session carries the admin role.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// ScreenDescriptor describes one named, access-controlled section of the
// application. Immutable after startup.
type ScreenDescriptor struct {
	ID    string
	Path  string
	Label string
}

// SecurityCheckRecord caches whether an identity has completed the
// security-recovery setup step. Records older than the verification TTL
// are treated as absent.
type SecurityCheckRecord struct {
	Identity            string
	HasRecoveryQuestion bool
	CheckedAt           time.Time
}
