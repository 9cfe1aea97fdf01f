// Package gateway is the first enforcement point: a chi middleware that
// classifies every request and turns away callers whose session does not
// carry the capability the route requires.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mehmetcc/cmsgate/internal/audit"
	"github.com/mehmetcc/cmsgate/internal/authz"
	"github.com/mehmetcc/cmsgate/internal/config"
	"github.com/mehmetcc/cmsgate/internal/httpx"
	"github.com/mehmetcc/cmsgate/internal/metrics"
	"github.com/mehmetcc/cmsgate/internal/route"
	"github.com/mehmetcc/cmsgate/internal/session"
	"github.com/mehmetcc/cmsgate/internal/token"
	"go.uber.org/zap"
)

var ErrLoginPathProtected = errors.New("login path is covered by a protected pattern")

type Option func(*Gateway)

func WithHook(h audit.Hook) Option {
	return func(g *Gateway) {
		g.hook = h
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

type Gateway struct {
	matcher *route.Matcher
	store   session.Store
	codec   token.Codec
	cfg     config.GateConfig
	hook    audit.Hook
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func New(matcher *route.Matcher, store session.Store, codec token.Codec, cfg *config.GateConfig, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		matcher: matcher,
		store:   store,
		codec:   codec,
		cfg:     *cfg,
		hook:    audit.NopHook{},
		logger:  logger,
		now:     time.Now,
	}
	if g.cfg.ReturnToParam == "" {
		g.cfg.ReturnToParam = "returnTo"
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.cfg.LoginPath != "" {
		loginPath, _, _ := strings.Cut(g.cfg.LoginPath, "?")
		if rule, ok := matcher.Classify(loginPath); ok {
			logger.Error("login path would redirect to itself",
				zap.String("login_path", g.cfg.LoginPath),
				zap.String("pattern", rule.Pattern),
			)
			return nil, ErrLoginPathProtected
		}
	}
	return g, nil
}

// Decide runs the full edge evaluation for r without writing a response.
func (g *Gateway) Decide(r *http.Request) authz.Decision {
	d, _, _ := g.decide(r)
	return d
}

func (g *Gateway) decide(r *http.Request) (authz.Decision, *session.Session, bool) {
	rule, ok := g.matcher.Classify(r.URL.Path)
	if !ok {
		return authz.Decision{Allow: true, Reason: authz.ReasonOk}, nil, false
	}

	sess, err := token.FromRequest(r, g.store, g.codec)
	if err != nil {
		kind := token.FailureKind(err)
		g.metrics.DecodeFailure(kind)
		g.logger.Debug("session rejected at edge",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind),
		)
		sess = nil
	}

	decision := authz.Evaluate(sess, rule.Capability, g.now())
	if !decision.Allow && g.cfg.LoginPath != "" {
		decision.RedirectTarget = g.loginURL(r)
	}
	return decision, sess, true
}

func (g *Gateway) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, sess, protected := g.decide(r)
		if !protected {
			g.metrics.Decision(audit.LayerEdge, "public")
			next.ServeHTTP(w, r)
			return
		}
		g.record(r, decision, sess)

		if decision.Allow {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.Warn("request denied at edge",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("reason", string(decision.Reason)),
		)
		g.deny(w, r, decision)
	})
}

func (g *Gateway) deny(w http.ResponseWriter, r *http.Request, d authz.Decision) {
	if d.RedirectTarget != "" {
		w.Header().Set("Cache-Control", "no-store")
		if r.Header.Get("HX-Request") == "true" {
			// htmx follows HX-Redirect client side; a 302 would be swapped into the page.
			w.Header().Set("HX-Redirect", d.RedirectTarget)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, d.RedirectTarget, http.StatusFound)
		return
	}

	if d.Reason == authz.ReasonMissingPermission {
		httpx.WriteError(w, http.StatusForbidden, httpx.ErrorResponse[any]{
			Code:    httpx.ErrForbidden,
			Message: "forbidden",
		})
		return
	}
	httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
		Code:    httpx.ErrUnauthorized,
		Message: "authentication required",
	})
}

func (g *Gateway) loginURL(r *http.Request) string {
	if !g.cfg.ReturnToCurrentPage {
		return g.cfg.LoginPath
	}
	original := r.URL.Path
	if r.URL.RawQuery != "" {
		original += "?" + r.URL.RawQuery
	}
	sep := "?"
	if strings.Contains(g.cfg.LoginPath, "?") {
		sep = "&"
	}
	return g.cfg.LoginPath + sep + url.QueryEscape(g.cfg.ReturnToParam) + "=" + escapeReturnTo(original)
}

// escapeReturnTo query-escapes v but keeps slashes readable; "/" is legal
// inside a query component.
func escapeReturnTo(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "%2F", "/")
}

func (g *Gateway) record(r *http.Request, d authz.Decision, sess *session.Session) {
	g.metrics.Decision(audit.LayerEdge, string(d.Reason))
	e := audit.Event{
		Time:    g.now().UTC(),
		Layer:   audit.LayerEdge,
		Method:  r.Method,
		Path:    r.URL.Path,
		Allowed: d.Allow,
		Reason:  string(d.Reason),
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
