package validation

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/keylease/keylease/internal/core"
)

// PolicySet is a validated, compiled set of bindings, policies and roles.
type PolicySet struct {
	Bindings []core.RoleBinding
	Policies []core.PolicyBundle
	Roles    []core.CredentialRole
}

// ValidatePolicySet cross-checks the reloadable policy data and compiles
// patterns and expressions. It fails on the first problem; a partially
// valid set is never returned.
func ValidatePolicySet(
	bindings []core.RoleBinding,
	policies []core.PolicyBundle,
	roles []core.CredentialRole,
	knownIssuers, knownSources map[string]struct{},
) (*PolicySet, error) {
	policyNames := make(map[string]struct{})
	var validPolicies []core.PolicyBundle
	for i, bundle := range policies {
		if bundle.Name == "" {
			return nil, fmt.Errorf("policy #%d missing name", i)
		}
		if _, dup := policyNames[bundle.Name]; dup {
			return nil, fmt.Errorf("policy name '%s' is not unique", bundle.Name)
		}
		policyNames[bundle.Name] = struct{}{}
		if err := bundle.Compile(); err != nil {
			return nil, err
		}
		validPolicies = append(validPolicies, bundle)
	}

	roleNames := make(map[string]struct{})
	var validRoles []core.CredentialRole
	for i, role := range roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role #%d missing name", i)
		}
		if _, dup := roleNames[role.Name]; dup {
			return nil, fmt.Errorf("role name '%s' is not unique", role.Name)
		}
		roleNames[role.Name] = struct{}{}

		if role.Source == "" {
			return nil, fmt.Errorf("role '%s' missing source", role.Name)
		}
		if knownSources != nil {
			if _, known := knownSources[role.Source]; !known {
				return nil, fmt.Errorf("role '%s' references unknown source '%s'", role.Name, role.Source)
			}
		}
		if !role.Kind.IsValid() {
			return nil, fmt.Errorf("role '%s' has unknown kind '%s'", role.Name, role.Kind)
		}
		if role.DefaultTTL <= 0 {
			return nil, fmt.Errorf("role '%s' missing default_ttl", role.Name)
		}
		if role.MaxTTL <= 0 {
			return nil, fmt.Errorf("role '%s' missing max_ttl", role.Name)
		}
		if role.DefaultTTL > role.MaxTTL {
			return nil, fmt.Errorf("role '%s' default_ttl exceeds max_ttl", role.Name)
		}
		validRoles = append(validRoles, role)
	}

	seenNames := make(map[string]struct{})
	var validBindings []core.RoleBinding
	for i, binding := range bindings {
		if binding.Name == "" {
			return nil, fmt.Errorf("binding #%d missing name", i)
		}
		if _, dup := seenNames[binding.Name]; dup {
			return nil, fmt.Errorf("binding name '%s' is not unique", binding.Name)
		}
		seenNames[binding.Name] = struct{}{}

		if binding.Issuer == "" {
			return nil, fmt.Errorf("binding '%s' missing issuer", binding.Name)
		}
		if knownIssuers != nil {
			if _, known := knownIssuers[binding.Issuer]; !known {
				return nil, fmt.Errorf("binding '%s' references unknown issuer '%s'", binding.Name, binding.Issuer)
			}
		}

		if len(binding.BoundClaims) == 0 && binding.Expr == "" {
			return nil, fmt.Errorf("binding '%s' has neither bound_claims nor expr; refusing unrestricted binding", binding.Name)
		}
		if binding.BoundClaimsType != "" && !binding.BoundClaimsType.IsValid() {
			return nil, fmt.Errorf("binding '%s' has unknown bound_claims_type '%s'", binding.Name, binding.BoundClaimsType)
		}
		binding.CompilePatterns()

		if binding.Expr != "" {
			prog, err := expr.Compile(binding.Expr, expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("compiling expr for binding '%s': %w", binding.Name, err)
			}
			binding.CompiledExpr = prog
		}

		if len(binding.Policies) == 0 {
			return nil, fmt.Errorf("binding '%s' grants no policies", binding.Name)
		}
		for _, p := range binding.Policies {
			if _, known := policyNames[p]; !known {
				return nil, fmt.Errorf("binding '%s' references unknown policy '%s'", binding.Name, p)
			}
		}

		if binding.TTL < 0 || binding.MaxTTL < 0 {
			return nil, fmt.Errorf("binding '%s' has negative ttl", binding.Name)
		}
		if binding.MaxTTL > 0 && binding.TTL > binding.MaxTTL {
			return nil, fmt.Errorf("binding '%s' ttl exceeds max_ttl", binding.Name)
		}

		validBindings = append(validBindings, binding)
	}

	return &PolicySet{
		Bindings: validBindings,
		Policies: validPolicies,
		Roles:    validRoles,
	}, nil
}
