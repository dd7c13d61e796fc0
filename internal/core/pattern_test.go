package core

import "testing"

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		mode    MatchMode
		input   string
		want    bool
	}{
		{
			name:    "Exact Mode - Match",
			pattern: "refs/heads/main",
			mode:    MatchExact,
			input:   "refs/heads/main",
			want:    true,
		},
		{
			name:    "Exact Mode - Star Is Literal",
			pattern: "refs/heads/*",
			mode:    MatchExact,
			input:   "refs/heads/main",
			want:    false,
		},
		{
			name:    "Exact Mode - Star Matches Itself",
			pattern: "refs/heads/*",
			mode:    MatchExact,
			input:   "refs/heads/*",
			want:    true,
		},
		{
			name:    "Glob - No Star Behaves Exact",
			pattern: "org/repo",
			mode:    MatchGlob,
			input:   "org/repo",
			want:    true,
		},
		{
			name:    "Glob - No Star Rejects Prefix",
			pattern: "org/repo",
			mode:    MatchGlob,
			input:   "org/repo-2",
			want:    false,
		},
		{
			name:    "Glob - Trailing Star",
			pattern: "refs/heads/*",
			mode:    MatchGlob,
			input:   "refs/heads/feature/x",
			want:    true,
		},
		{
			name:    "Glob - Trailing Star Matches Empty",
			pattern: "refs/heads/*",
			mode:    MatchGlob,
			input:   "refs/heads/",
			want:    true,
		},
		{
			name:    "Glob - Trailing Star Needs Prefix",
			pattern: "refs/heads/*",
			mode:    MatchGlob,
			input:   "refs/tags/v1",
			want:    false,
		},
		{
			name:    "Glob - Leading Star",
			pattern: "*@company.com",
			mode:    MatchGlob,
			input:   "ci@company.com",
			want:    true,
		},
		{
			name:    "Glob - Leading Star Rejects Other Suffix",
			pattern: "*@company.com",
			mode:    MatchGlob,
			input:   "ci@other.com",
			want:    false,
		},
		{
			name:    "Glob - Middle Star",
			pattern: "org/*/deploy",
			mode:    MatchGlob,
			input:   "org/service-a/deploy",
			want:    true,
		},
		{
			name:    "Glob - Middle Star Needs Both Ends",
			pattern: "org/*/deploy",
			mode:    MatchGlob,
			input:   "org/service-a/test",
			want:    false,
		},
		{
			name:    "Glob - Multiple Stars",
			pattern: "repo:*:ref:refs/heads/*",
			mode:    MatchGlob,
			input:   "repo:org/app:ref:refs/heads/main",
			want:    true,
		},
		{
			name:    "Glob - Single Star Matches Everything",
			pattern: "*",
			mode:    MatchGlob,
			input:   "anything at all",
			want:    true,
		},
		{
			name:    "Glob - Single Star Matches Empty",
			pattern: "*",
			mode:    MatchGlob,
			input:   "",
			want:    true,
		},
		{
			name:    "Glob - Empty Pattern Only Matches Empty",
			pattern: "",
			mode:    MatchGlob,
			input:   "x",
			want:    false,
		},
		{
			name:    "Glob - Overlapping Anchors",
			pattern: "aa*aa",
			mode:    MatchGlob,
			input:   "aaa",
			want:    false,
		},
		{
			name:    "Glob - Anchors Back To Back",
			pattern: "aa*aa",
			mode:    MatchGlob,
			input:   "aaaa",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := CompilePattern(tt.pattern, tt.mode)
			if got := p.Match(tt.input); got != tt.want {
				t.Errorf("CompilePattern(%q, %q).Match(%q) = %v, want %v",
					tt.pattern, tt.mode, tt.input, got, tt.want)
			}
		})
	}
}

func TestPatternString(t *testing.T) {
	p := CompilePattern("refs/heads/*", MatchGlob)
	if p.String() != "refs/heads/*" {
		t.Errorf("String() = %q, want raw pattern back", p.String())
	}
}
