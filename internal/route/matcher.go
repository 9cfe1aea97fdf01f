// Package route classifies request paths against an ordered list of
// protected patterns. Patterns use chi routing syntax: "/admin" matches
// exactly, "/admin/*" matches everything below /admin/, and "{param}"
// segments match a single path segment.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mehmetcc/cmsgate/internal/config"
)

// Rule maps a pattern to the capability needed to pass it.
type Rule struct {
	Pattern    string
	Capability string
}

var (
	ErrEmptyPattern    = errors.New("route pattern is empty")
	ErrRelativePattern = errors.New("route pattern must start with /")
	ErrEmptyCapability = errors.New("route capability is empty")
)

type compiledRule struct {
	Rule
	mux *chi.Mux
}

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	rules []compiledRule
}

// FromConfig builds a matcher from the configured rules, keeping their order.
func FromConfig(cfg *config.GateConfig) (*Matcher, error) {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		rules = append(rules, Rule{Pattern: rc.Pattern, Capability: rc.Capability})
	}
	return NewMatcher(rules)
}

func NewMatcher(rules []Rule) (*Matcher, error) {
	m := &Matcher{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		r.Pattern = strings.TrimSpace(r.Pattern)
		r.Capability = strings.TrimSpace(r.Capability)
		mux, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.Pattern, err)
		}
		m.rules = append(m.rules, compiledRule{Rule: r, mux: mux})
	}
	return m, nil
}

func compile(r Rule) (mux *chi.Mux, err error) {
	switch {
	case r.Pattern == "":
		return nil, ErrEmptyPattern
	case !strings.HasPrefix(r.Pattern, "/"):
		return nil, ErrRelativePattern
	case r.Capability == "":
		return nil, ErrEmptyCapability
	}

	// chi panics on patterns it cannot parse.
	defer func() {
		if p := recover(); p != nil {
			mux, err = nil, fmt.Errorf("invalid pattern: %v", p)
		}
	}()
	mux = chi.NewRouter()
	mux.Handle(r.Pattern, http.NotFoundHandler())
	return mux, nil
}

// Classify returns the first rule, in configured order, whose pattern
// matches path. ok is false for public paths.
func (m *Matcher) Classify(requestPath string) (rule Rule, ok bool) {
	p := normalize(requestPath)
	for _, r := range m.rules {
		if r.mux.Match(chi.NewRouteContext(), http.MethodGet, p) {
			return r.Rule, true
		}
	}
	return Rule{}, false
}

// normalize collapses dot segments and duplicate slashes so that
// "/p/../admin" is classified as "/admin". A trailing slash is kept.
func normalize(requestPath string) string {
	if requestPath == "" {
		return "/"
	}
	if !strings.HasPrefix(requestPath, "/") {
		requestPath = "/" + requestPath
	}
	cleaned := path.Clean(requestPath)
	if cleaned != "/" && strings.HasSuffix(requestPath, "/") {
		cleaned += "/"
	}
	return cleaned
}

func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.Rule
	}
	return out
}

// Shadow describes a rule that can never govern because an earlier rule
// with a different capability already matches its paths.
type Shadow struct {
	Rule       Rule
	ShadowedBy Rule
}

func (s Shadow) String() string {
	return fmt.Sprintf("%s (%s) is shadowed by %s (%s)",
		s.Rule.Pattern, s.Rule.Capability, s.ShadowedBy.Pattern, s.ShadowedBy.Capability)
}

var paramSegment = regexp.MustCompile(`\{[^/]*\}`)

// Shadowed reports rules whose representative path is claimed by an earlier
// rule requiring a different capability. The check is a heuristic: each
// wildcard or parameter is replaced by a sample segment.
func (m *Matcher) Shadowed() []Shadow {
	var out []Shadow
	for i := 1; i < len(m.rules); i++ {
		sample := samplePath(m.rules[i].Pattern)
		for j := 0; j < i; j++ {
			earlier := m.rules[j]
			if earlier.Capability == m.rules[i].Capability {
				continue
			}
			if earlier.mux.Match(chi.NewRouteContext(), http.MethodGet, sample) {
				out = append(out, Shadow{Rule: m.rules[i].Rule, ShadowedBy: earlier.Rule})
				break
			}
		}
	}
	return out
}

func samplePath(pattern string) string {
	p := paramSegment.ReplaceAllString(pattern, "x")
	return strings.ReplaceAll(p, "*", "x")
}
