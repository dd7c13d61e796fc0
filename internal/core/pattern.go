package core

import "strings"

// Pattern is a sealed claim pattern. The only variants are ExactPattern
// and GlobPattern; keeping the matching semantics in two small types makes
// them auditable in isolation.
type Pattern interface {
	// Match reports whether the claim value satisfies the pattern.
	Match(value string) bool
	// String returns the original pattern text.
	String() string

	sealed()
}

// CompilePattern builds a Pattern from raw text. In MatchExact mode, or
// when the text contains no '*', the result is an ExactPattern.
func CompilePattern(raw string, mode MatchMode) Pattern {
	if mode == MatchExact || !strings.Contains(raw, "*") {
		return ExactPattern(raw)
	}
	return GlobPattern{raw: raw, parts: strings.Split(raw, "*")}
}

// ExactPattern matches byte-equal values only.
type ExactPattern string

func (p ExactPattern) Match(value string) bool {
	return string(p) == value
}

func (p ExactPattern) String() string {
	return string(p)
}

func (p ExactPattern) sealed() {}

// GlobPattern matches with '*' as a wildcard for any run of characters,
// including the empty run. "refs/heads/*" matches "refs/heads/main" and
// "refs/heads/"; "org/*-infra" matches "org/net-infra".
type GlobPattern struct {
	raw   string
	parts []string // literal runs between wildcards, in order
}

func (p GlobPattern) Match(value string) bool {
	parts := p.parts
	if len(parts) == 0 {
		return value == ""
	}

	// anchor the leading literal
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]

	// anchor the trailing literal
	last := parts[len(parts)-1]
	if !strings.HasSuffix(value, last) {
		return false
	}
	value = value[:len(value)-len(last)]

	// middle literals must appear in order
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(value, part)
		if idx < 0 {
			return false
		}
		value = value[idx+len(part):]
	}
	return true
}

func (p GlobPattern) String() string {
	return p.raw
}

func (p GlobPattern) sealed() {}
