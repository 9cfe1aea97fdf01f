// Package authz decides whether a session may pass a protected route.
package authz

import (
	"time"

	"github.com/mehmetcc/cmsgate/internal/session"
)

type Reason string

const (
	ReasonOk                Reason = "ok"
	ReasonNoSession         Reason = "no_session"
	ReasonExpired           Reason = "expired"
	ReasonMissingPermission Reason = "missing_permission"
)

// Decision is computed per request and must not be cached.
type Decision struct {
	Allow          bool
	Reason         Reason
	RedirectTarget string
}

// Evaluate is pure. An empty required capability marks a public route.
func Evaluate(sess *session.Session, required string, now time.Time) Decision {
	switch {
	case required == "":
		return Decision{Allow: true, Reason: ReasonOk}
	case sess == nil:
		return Decision{Reason: ReasonNoSession}
	case sess.ExpiredAt(now):
		return Decision{Reason: ReasonExpired}
	case !sess.Caps.Has(required):
		return Decision{Reason: ReasonMissingPermission}
	default:
		return Decision{Allow: true, Reason: ReasonOk}
	}
}
