package session

import (
	"time"

	"github.com/mehmetcc/cmsgate/internal/person"
)

// Payload is what the identity provider hands over at sign-in.
type Payload struct {
	Email        string      `json:"email"`
	Role         person.Role `json:"role"`
	ID           int64       `json:"id"`
	SessionToken string      `json:"session_token,omitempty"`
	Capabilities []string    `json:"caps,omitempty"`
}

// Session is a decoded and verified Payload. It lives for a single request.
type Session struct {
	Payload
	Caps      CapabilitySet
	IssuedAt  int64
	ExpiresAt int64
}

// ExpiredAt reports whether the session is no longer valid at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s.Role == person.RoleAdmin
}

type CapabilitySet map[string]struct{}

func NewCapabilitySet(caps ...string) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

func (c CapabilitySet) Has(capability string) bool {
	_, ok := c[capability]
	return ok
}
