package match

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/core"
)

// Match evaluates the bindings in configuration order and returns the
// first one whose conditions the principal fully satisfies. Every
// bound_claims entry must match (logical AND); an absent claim rejects
// the binding. Only the list ordering breaks ties.
func Match(bindings []core.RoleBinding, principal *core.Principal) (*core.RoleBinding, error) {
	for i := range bindings {
		binding := &bindings[i]
		if checkBinding(binding, principal, nil) {
			return binding, nil
		}
	}
	return nil, core.ErrNoMatchingPolicy
}

// Trace evaluates every binding and records why each matched or failed.
func Trace(bindings []core.RoleBinding, principal *core.Principal) core.MatchTrace {
	trace := core.MatchTrace{
		Principal:      principal,
		BindingResults: make([]core.BindingResult, 0, len(bindings)),
	}
	for i := range bindings {
		binding := &bindings[i]
		result := core.BindingResult{
			BindingName: binding.Name,
			Description: binding.Description,
		}
		result.Matched = checkBinding(binding, principal, &result.Checks)
		trace.BindingResults = append(trace.BindingResults, result)

		if result.Matched && !trace.Matched {
			trace.Matched = true
			trace.MatchedBinding = binding.Name
		}
	}
	return trace
}

// checkBinding evaluates one binding. When checks is non-nil every
// condition outcome is appended to it (trace mode); evaluation then
// continues past the first failure so the trace is complete.
func checkBinding(binding *core.RoleBinding, principal *core.Principal, checks *[]core.CheckResult) bool {
	matched := true

	record := func(expression string, passed bool, reason string) bool {
		if !passed {
			matched = false
		}
		if checks != nil {
			*checks = append(*checks, core.CheckResult{
				Expression: expression,
				Matched:    passed,
				Reason:     reason,
			})
		}
		return passed || checks != nil
	}

	if binding.Issuer != principal.Issuer {
		if !record(fmt.Sprintf("issuer == '%s'", binding.Issuer), false,
			fmt.Sprintf("principal verified by '%s'", principal.Issuer)) {
			return false
		}
	} else {
		record(fmt.Sprintf("issuer == '%s'", binding.Issuer), true, "")
	}

	if len(binding.BoundAudiences) > 0 {
		ok := audienceOverlap(principal.Claims["aud"], binding.BoundAudiences)
		reason := ""
		if !ok {
			reason = "no bound audience present in token"
		}
		if !record(fmt.Sprintf("aud in %v", binding.BoundAudiences), ok, reason) {
			return false
		}
	}

	// deterministic check order for traces
	claims := make([]string, 0, len(binding.BoundClaims))
	for claim := range binding.BoundClaims {
		claims = append(claims, claim)
	}
	sort.Strings(claims)

	patterns := binding.Patterns()
	for _, claim := range claims {
		pattern := patterns[claim]
		expression := fmt.Sprintf("%s ~ '%s'", claim, pattern.String())

		value, present := principal.Claims[claim]
		if !present {
			// absent claims are never treated as a wildcard match
			if !record(expression, false, fmt.Sprintf("claim '%s' absent", claim)) {
				return false
			}
			continue
		}
		if !claimMatches(value, pattern) {
			if !record(expression, false, "value does not match pattern") {
				return false
			}
			continue
		}
		record(expression, true, "")
	}

	if binding.CompiledExpr != nil {
		out, err := expr.Run(binding.CompiledExpr, map[string]any{
			"binding":   binding,
			"principal": principal,
		})
		if err != nil {
			log.Warn().Err(err).Msgf("error evaluating expression for binding '%s'", binding.Name)
			if !record(binding.Expr, false, fmt.Sprintf("expression error: %v", err)) {
				return false
			}
		} else if b, ok := out.(bool); !ok || !b {
			if !record(binding.Expr, false, "expression evaluated to false") {
				return false
			}
		} else {
			record(binding.Expr, true, "")
		}
	}

	return matched
}

// claimMatches matches a claim value against a pattern. List-valued
// claims match when any element does.
func claimMatches(value any, pattern core.Pattern) bool {
	switch v := value.(type) {
	case string:
		return pattern.Match(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && pattern.Match(s) {
				return true
			}
		}
		return false
	case []string:
		for _, s := range v {
			if pattern.Match(s) {
				return true
			}
		}
		return false
	default:
		return pattern.Match(fmt.Sprint(v))
	}
}

func audienceOverlap(audClaim any, bound []string) bool {
	contains := func(s string) bool {
		for _, b := range bound {
			if s == b {
				return true
			}
		}
		return false
	}
	switch aud := audClaim.(type) {
	case string:
		return contains(aud)
	case []any:
		for _, item := range aud {
			if s, ok := item.(string); ok && contains(s) {
				return true
			}
		}
	case []string:
		for _, s := range aud {
			if contains(s) {
				return true
			}
		}
	}
	return false
}
