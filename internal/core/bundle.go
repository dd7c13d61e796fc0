package core

import "fmt"

// Capability is one of the closed set of operations a policy bundle can
// grant on a resource path.
type Capability string

const (
	CapRead   Capability = "read"
	CapUpdate Capability = "update"
	CapList   Capability = "list"
	CapDelete Capability = "delete"
	// CapDeny vetoes every capability on the matched path, regardless of
	// other grants.
	CapDeny Capability = "deny"
)

func (c Capability) IsValid() bool {
	switch c {
	case CapRead, CapUpdate, CapList, CapDelete, CapDeny:
		return true
	default:
		return false
	}
}

// PathGrant pairs a resource path pattern with the capabilities allowed
// on it. The path may contain '*' wildcards.
type PathGrant struct {
	Path         string       `yaml:"path" json:"path"`
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`

	pattern Pattern
}

// PolicyBundle is a named set of path grants, evaluated deny-by-default:
// any path not explicitly granted is denied.
type PolicyBundle struct {
	Name   string      `yaml:"name" json:"name"`
	Grants []PathGrant `yaml:"grants" json:"grants"`
}

// Compile prepares the path patterns and rejects unknown capabilities.
func (b *PolicyBundle) Compile() error {
	for i := range b.Grants {
		g := &b.Grants[i]
		if g.Path == "" {
			return fmt.Errorf("policy '%s' grant #%d has empty path", b.Name, i)
		}
		if len(g.Capabilities) == 0 {
			return fmt.Errorf("policy '%s' grant on '%s' has no capabilities", b.Name, g.Path)
		}
		for _, c := range g.Capabilities {
			if !c.IsValid() {
				return fmt.Errorf("policy '%s' grant on '%s' has unknown capability '%s'", b.Name, g.Path, c)
			}
		}
		g.pattern = CompilePattern(g.Path, MatchGlob)
	}
	return nil
}

// Allows reports whether the bundle grants the capability on the path.
// A matching grant carrying CapDeny vetoes, even if another grant allows.
func (b *PolicyBundle) Allows(path string, capability Capability) bool {
	allowed := false
	for i := range b.Grants {
		g := &b.Grants[i]
		if g.pattern == nil || !g.pattern.Match(path) {
			continue
		}
		for _, c := range g.Capabilities {
			if c == CapDeny {
				return false
			}
			if c == capability {
				allowed = true
			}
		}
	}
	return allowed
}
