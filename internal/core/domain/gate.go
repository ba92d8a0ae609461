package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Decision is the outcome of admitting one candidate query.
type Decision struct {
	// Query is the accepted text: the input with surrounding whitespace removed.
	// Empty when the query was rejected.
	Query  string
	Reason Reason
	Rule   string
}

// Accepted reports whether the query may be executed.
func (d Decision) Accepted() bool {
	return d.Reason == ReasonNone
}

// Err returns a *RejectionError for rejected decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Accepted() {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Rule: d.Rule}
}

// InjectionPattern is a named regular expression matched against the
// lower-cased query text.
type InjectionPattern struct {
	Name    string
	Pattern string
}

// DefaultDestructiveVerbs are the leading keywords rejected as destructive.
var DefaultDestructiveVerbs = []string{
	"drop", "delete", "truncate", "alter", "create",
	"update", "insert", "replace", "attach", "detach",
}

// DefaultInjectionPatterns are matched in order; the first hit names the rule.
var DefaultInjectionPatterns = []InjectionPattern{
	{Name: "line_comment", Pattern: `--`},
	{Name: "block_comment_open", Pattern: `/\*`},
	{Name: "block_comment_close", Pattern: `\*/`},
	{Name: "tautology", Pattern: `\bor\s+1\s*=\s*1\b`},
	{Name: "union_select", Pattern: `\bunion\s+select\b`},
}

var verbPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type injectionMatcher struct {
	name string
	re   *regexp.Regexp
}

// rule inspects the normalized query and reports the matcher that fired.
type rule struct {
	reason Reason
	match  func(inspect, token string) (string, bool)
}

// Gate decides whether candidate SQL may reach the database. Its rule tables
// are built by NewGate and never change afterwards, so a Gate is safe for
// concurrent use.
type Gate struct {
	injection   []injectionMatcher
	destructive map[string]struct{}
	rules       []rule
}

// GateOption extends the built-in rule tables.
type GateOption func(*gateConfig)

type gateConfig struct {
	verbs    []string
	patterns []InjectionPattern
}

// WithDestructiveVerbs adds leading keywords to reject as destructive.
func WithDestructiveVerbs(verbs ...string) GateOption {
	return func(c *gateConfig) { c.verbs = append(c.verbs, verbs...) }
}

// WithInjectionPatterns adds patterns to reject as injection attempts.
func WithInjectionPatterns(patterns ...InjectionPattern) GateOption {
	return func(c *gateConfig) { c.patterns = append(c.patterns, patterns...) }
}

// NewGate builds a gate from the default tables plus any extensions.
// Extensions can only add rules.
func NewGate(opts ...GateOption) (*Gate, error) {
	cfg := gateConfig{
		verbs:    append([]string(nil), DefaultDestructiveVerbs...),
		patterns: append([]InjectionPattern(nil), DefaultInjectionPatterns...),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Gate{destructive: make(map[string]struct{}, len(cfg.verbs))}

	for _, v := range cfg.verbs {
		v = strings.ToLower(strings.TrimSpace(v))
		if !verbPattern.MatchString(v) {
			return nil, fmt.Errorf("invalid destructive verb %q: must be a single SQL keyword", v)
		}
		if v == "select" {
			return nil, fmt.Errorf("invalid destructive verb %q: select is the only allowed statement", v)
		}
		g.destructive[v] = struct{}{}
	}

	for _, p := range cfg.patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("injection pattern %q has no name", p.Pattern)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling injection pattern %q: %w", p.Name, err)
		}
		g.injection = append(g.injection, injectionMatcher{name: p.Name, re: re})
	}

	g.rules = []rule{
		{reason: ReasonMultiStatement, match: matchSemicolon},
		{reason: ReasonInjectionPattern, match: g.matchInjection},
		{reason: ReasonDestructiveOperation, match: g.matchDestructive},
		{reason: ReasonNotSelect, match: matchNotSelect},
	}
	return g, nil
}

var defaultGate = mustDefaultGate()

func mustDefaultGate() *Gate {
	g, err := NewGate()
	if err != nil {
		panic(err)
	}
	return g
}

// Admit runs raw through the default gate.
func Admit(raw string) Decision {
	return defaultGate.Admit(raw)
}

// Admit applies the rules in order and returns the first rejection, or an
// accepted decision carrying the trimmed input.
func (g *Gate) Admit(raw string) Decision {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Decision{Reason: ReasonEmptyQuery}
	}

	// One trailing terminator is tolerated; any other ';' is a second statement.
	inspect := strings.TrimSuffix(strings.ToLower(trimmed), ";")
	token := leadingToken(inspect)

	for _, r := range g.rules {
		if name, hit := r.match(inspect, token); hit {
			return Decision{Reason: r.reason, Rule: name}
		}
	}
	return Decision{Query: trimmed}
}

func matchSemicolon(inspect, _ string) (string, bool) {
	if strings.Contains(inspect, ";") {
		return "semicolon", true
	}
	return "", false
}

func (g *Gate) matchInjection(inspect, _ string) (string, bool) {
	for _, m := range g.injection {
		if m.re.MatchString(inspect) {
			return m.name, true
		}
	}
	return "", false
}

func (g *Gate) matchDestructive(_, token string) (string, bool) {
	if _, ok := g.destructive[token]; ok {
		return token, true
	}
	return "", false
}

func matchNotSelect(_, token string) (string, bool) {
	if token != "select" {
		return "leading_token", true
	}
	return "", false
}

// leadingToken returns the identifier at the start of s. "dropped_items" is a
// single token, so it never matches "drop".
func leadingToken(s string) string {
	end := 0
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return s[:end]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
