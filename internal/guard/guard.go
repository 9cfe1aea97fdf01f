// Package guard re-checks the session inside admin page handlers. It does
// not rely on the edge gateway having run: every call decodes the cookie
// again and any failure looks like a missing page.
package guard

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mehmetcc/cmsgate/internal/audit"
	"github.com/mehmetcc/cmsgate/internal/authz"
	"github.com/mehmetcc/cmsgate/internal/httpx"
	"github.com/mehmetcc/cmsgate/internal/metrics"
	"github.com/mehmetcc/cmsgate/internal/session"
	"github.com/mehmetcc/cmsgate/internal/token"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("page not found")

type Option func(*Guard)

func WithHook(h audit.Hook) Option {
	return func(g *Guard) {
		g.hook = h
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

type Guard struct {
	store   session.Store
	codec   token.Codec
	hook    audit.Hook
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func New(store session.Store, codec token.Codec, logger *zap.Logger, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		codec:  codec,
		hook:   audit.NopHook{},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAdmin returns the caller's session if it is valid and belongs to an
// admin. Otherwise it returns ErrNotFound.
func (g *Guard) RequireAdmin(r *http.Request) (*session.Session, error) {
	sess, err := token.FromRequest(r, g.store, g.codec)
	if err != nil {
		g.metrics.DecodeFailure(token.FailureKind(err))
	}

	reason := authz.ReasonOk
	switch {
	case sess == nil && errors.Is(err, token.ErrExpired):
		reason = authz.ReasonExpired
	case sess == nil:
		reason = authz.ReasonNoSession
	case sess.ExpiredAt(g.now()):
		reason = authz.ReasonExpired
	case !sess.IsAdmin():
		reason = authz.ReasonMissingPermission
	}

	g.record(r, reason, sess)
	if reason != authz.ReasonOk {
		g.logger.Debug("page guard refused",
			zap.String("path", r.URL.Path),
			zap.String("reason", string(reason)),
		)
		return nil, ErrNotFound
	}
	return sess, nil
}

// AdminPage wraps a page handler so it only runs for admins. Everyone else
// gets the application's ordinary 404.
func (g *Guard) AdminPage(page func(w http.ResponseWriter, r *http.Request, sess *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.RequireAdmin(r)
		if err != nil {
			httpx.NotFound(w, r)
			return
		}
		page(w, r, sess)
	}
}

func (g *Guard) record(r *http.Request, reason authz.Reason, sess *session.Session) {
	g.metrics.Decision(audit.LayerPage, string(reason))
	e := audit.Event{
		Time:    g.now().UTC(),
		Layer:   audit.LayerPage,
		Method:  r.Method,
		Path:    r.URL.Path,
		Allowed: reason == authz.ReasonOk,
		Reason:  string(reason),
		IP:      r.RemoteAddr,
	}
	if sess != nil {
		e.UserID = sess.ID
		e.Email = sess.Email
	}

	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("audit hook panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()
	g.hook.Record(e)
}
