package policy

// ResultType indicates whether both match axes were probed.
type ResultType int

const (
	// Partial means one axis (action or resource) was left unresolved.
	Partial ResultType = iota
	// Full means both axes were probed.
	Full
)

// ResultOutcome is the yes/no verdict of a single policy match, prior to
// the ternary allowed-result algebra.
type ResultOutcome int

const (
	// Match means the probed axes all matched.
	Match ResultOutcome = iota
	// NotMatch means at least one probed axis failed to match.
	NotMatch
)

// MatchResult is the outcome of matching one policy against one
// (action, resource) probe. When Type is Partial, Residual carries the
// still-unresolved portion of the policy.
type MatchResult struct {
	Type     ResultType
	Outcome  ResultOutcome
	Residual *PartialPolicy
}

// Match probes a Policy against an optional action and an optional
// resource. Either argument may be nil to mean "not supplied for this
// probe" (the corresponding axis is then left unresolved and the result is
// Partial, unless the policy matches every resource).
func (p *Policy) Match(action, resource *string) (MatchResult, error) {
	compiled, err := p.compile()
	if err != nil {
		return MatchResult{}, err
	}

	actionProbed := action != nil
	resourceProbed := false

	if actionProbed {
		if !compiled.MatchAction(*action) {
			return MatchResult{Type: Full, Outcome: NotMatch}, nil
		}
	}

	if matched, ok := compiled.MatchResource(resource); ok {
		resourceProbed = true
		if !matched {
			return MatchResult{Type: Full, Outcome: NotMatch}, nil
		}
	}

	// Every probed axis matched (mismatches short-circuit above), so the
	// verdict here is Match even when no axis was probed at all.
	if actionProbed && resourceProbed {
		return MatchResult{Type: Full, Outcome: Match}, nil
	}

	residual := PartialPolicy{Version: p.version, Effect: p.effect}
	if !actionProbed {
		residual.Actions = p.actions
	}
	if !resourceProbed {
		residual.Resources = p.resources
	}

	return MatchResult{Type: Partial, Outcome: Match, Residual: &residual}, nil
}
