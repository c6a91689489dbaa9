package policy

import "testing"

func TestObservedAbstainWithNoPartialsIsDenied(t *testing.T) {
	r := NewAllowedResult(Abstain)
	if r.Observed() != Denied {
		t.Fatalf("Observed() = %v, want Denied", r.Observed())
	}
}

func TestObservedOtherwiseMatchesInternal(t *testing.T) {
	for _, outcome := range []AllowedOutcome{Allowed, Denied} {
		r := NewAllowedResult(outcome)
		if r.Observed() != outcome {
			t.Errorf("Observed() = %v, want %v", r.Observed(), outcome)
		}
	}

	withPartials := NewAllowedResultWithPartials(Abstain, []PartialPolicy{{Version: V1, Effect: Deny}})
	if withPartials.Observed() != Abstain {
		t.Errorf("Observed() = %v, want Abstain (partials present)", withPartials.Observed())
	}
}

func TestMergeDeniedIsAbsorbing(t *testing.T) {
	r := NewAllowedResultWithPartials(Allowed, []PartialPolicy{{Version: V1, Effect: Deny}})
	r.Merge(NewAllowedResult(Denied))

	if r.Outcome() != Denied {
		t.Fatalf("Outcome() = %v, want Denied", r.Outcome())
	}
	if len(r.Partials()) != 0 {
		t.Fatalf("Partials() = %v, want empty after DENIED absorption", r.Partials())
	}
}

func TestMergeStaysDeniedOnceDenied(t *testing.T) {
	r := NewAllowedResult(Denied)
	r.Merge(NewAllowedResult(Allowed))

	if r.Outcome() != Denied {
		t.Fatalf("Outcome() = %v, want Denied (DENIED must not be un-absorbed)", r.Outcome())
	}
}

func TestMergePromotesAbstainToAllowedAndDropsNonDenyPartials(t *testing.T) {
	r := NewAllowedResultWithPartials(Abstain, []PartialPolicy{{Version: V1, Effect: Allow}})
	r.Merge(NewAllowedResult(Allowed))

	if r.Outcome() != Allowed {
		t.Fatalf("Outcome() = %v, want Allowed", r.Outcome())
	}
	if len(r.Partials()) != 0 {
		t.Fatalf("Partials() = %v, want empty (ALLOW partial must be dropped once outcome is Allowed)", r.Partials())
	}
}

// Start Abstain; merge a partial DENY, then ALLOWED, then another partial
// DENY, then a partial ALLOW. The outcome promotes to Allowed and only the
// two DENY residuals survive.
func TestMergeSequenceRetainsOnlyDenyResiduals(t *testing.T) {
	r := NewAllowedResult(Abstain)

	r.Merge(NewAllowedResultWithPartials(Abstain, []PartialPolicy{{Version: V1, Effect: Deny, Resources: []string{"r1"}}}))
	r.Merge(NewAllowedResult(Allowed))
	r.Merge(NewAllowedResultWithPartials(Abstain, []PartialPolicy{{Version: V1, Effect: Deny, Resources: []string{"r2"}}}))
	r.Merge(NewAllowedResultWithPartials(Abstain, []PartialPolicy{{Version: V1, Effect: Allow, Resources: []string{"r4"}}}))

	if r.Outcome() != Allowed {
		t.Fatalf("Outcome() = %v, want Allowed", r.Outcome())
	}
	if len(r.Partials()) != 2 {
		t.Fatalf("Partials() = %v, want 2 DENY residuals", r.Partials())
	}
	for _, p := range r.Partials() {
		if p.Effect != Deny {
			t.Errorf("retained partial %+v has non-DENY effect", p)
		}
	}
}

func TestAllowedResultMarshalJSON(t *testing.T) {
	r := NewAllowedResult(Allowed)
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}
	got := string(data)
	want := `{"outcome":"Allowed","partials":[]}`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
