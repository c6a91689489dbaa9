package policy

import "encoding/json"

// AllowedOutcome is the ternary authorization verdict.
type AllowedOutcome int

const (
	// Denied means the request is refused.
	Denied AllowedOutcome = -1
	// Abstain means no policy took a position; observed externally this
	// collapses to Denied when there are no residual partials (see
	// Observed).
	Abstain AllowedOutcome = 0
	// Allowed means the request is permitted.
	Allowed AllowedOutcome = 1
)

// String renders the outcome the way it is serialized on the decision
// response wire format: title case, e.g. "Allowed", not "ALLOWED".
func (o AllowedOutcome) String() string {
	switch o {
	case Allowed:
		return "Allowed"
	case Denied:
		return "Denied"
	default:
		return "Abstain"
	}
}

// AllowedResult is the running decision accumulated while evaluating a
// subject (and, across a request, its groups) against an (action,
// resource) probe.
type AllowedResult struct {
	outcome  AllowedOutcome
	partials []PartialPolicy
}

// NewAllowedResult constructs a result with no partials.
func NewAllowedResult(outcome AllowedOutcome) AllowedResult {
	return AllowedResult{outcome: outcome}
}

// NewAllowedResultWithPartials constructs a result carrying the given
// partial policies.
func NewAllowedResultWithPartials(outcome AllowedOutcome, partials []PartialPolicy) AllowedResult {
	return AllowedResult{outcome: outcome, partials: partials}
}

// Outcome returns the raw internal outcome, prior to the Abstain-with-no-
// partials collapse that Observed performs.
func (r AllowedResult) Outcome() AllowedOutcome { return r.outcome }

// Partials returns the accumulated residual partial policies.
func (r AllowedResult) Partials() []PartialPolicy { return r.partials }

// Observed returns the externally reported outcome: Abstain with no
// partials is reported as Denied; every other outcome is reported as-is.
func (r AllowedResult) Observed() AllowedOutcome {
	if r.outcome == Abstain && len(r.partials) == 0 {
		return Denied
	}
	return r.outcome
}

// Merge folds other into r in place, applying the allowed-result algebra:
//
//  1. If other is Denied, r becomes {Denied, no partials}. Denied is
//     absorbing and no further rule in this call mutates r.
//  2. Otherwise, if r is already Denied, r is left unchanged.
//  3. Otherwise, if other is Allowed, r becomes Allowed.
//  4. other's partials are appended to r's partials.
//  5. If r is now Allowed, partials whose effect is not Deny are dropped
//     (an ALLOW partial is subsumed by the concrete allow; a DENY partial
//     remains as a residual conditional denial).
//
// The algebra is associative and commutative with respect to the final
// outcome, but the retained partials list reflects merge order.
func (r *AllowedResult) Merge(other AllowedResult) {
	if other.outcome == Denied {
		r.outcome = Denied
		r.partials = nil
		return
	}

	if r.outcome == Denied {
		return
	}

	if other.outcome == Allowed {
		r.outcome = Allowed
	}

	r.partials = append(r.partials, other.partials...)

	if r.outcome == Allowed {
		kept := r.partials[:0:0]
		for _, p := range r.partials {
			if p.Effect == Deny {
				kept = append(kept, p)
			}
		}
		r.partials = kept
	}
}

type allowedResultJSON struct {
	Outcome  string          `json:"outcome"`
	Partials []PartialPolicy `json:"partials"`
}

// MarshalJSON emits {"outcome": "Allowed"|"Denied"|"Abstain", "partials": [...]}
// using the externally Observed outcome.
func (r AllowedResult) MarshalJSON() ([]byte, error) {
	partials := r.partials
	if partials == nil {
		partials = []PartialPolicy{}
	}
	return json.Marshal(allowedResultJSON{
		Outcome:  r.Observed().String(),
		Partials: partials,
	})
}
