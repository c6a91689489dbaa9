package policy

import "encoding/json"

// PartialPolicy is the residual of a match where one of the two axes
// (action, resource) was not supplied. A nil Actions or Resources slice
// means "unknown / not yet resolved along that axis", as opposed to a
// non-nil empty slice, which never occurs for a well-formed partial.
// PartialPolicy is not independently identifiable: it carries no id and
// appears only as a residual after a partial match or inside an
// AllowedResult's partials list.
type PartialPolicy struct {
	Version   Version
	Effect    Effect
	Actions   []string
	Resources []string
}

// NewPartialPolicy validates version and constructs a PartialPolicy. Actions
// and Resources may each be nil to mean "axis unresolved".
func NewPartialPolicy(version Version, effect Effect, actions, resources []string) (PartialPolicy, error) {
	if version != V1 {
		return PartialPolicy{}, &ErrUnknownVersion{Version: int(version)}
	}
	return PartialPolicy{Version: version, Effect: effect, Actions: actions, Resources: resources}, nil
}

// Complete reports whether this value carries a full policy body. A bare
// PartialPolicy is never complete.
func (p PartialPolicy) Complete() bool { return false }

type partialPolicyJSON struct {
	Version   int      `json:"version"`
	Effect    string   `json:"effect"`
	Actions   []string `json:"actions,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// MarshalJSON emits {version, effect, actions?, resources?}, omitting
// whichever axis is unresolved (nil). This is the shape asserted by the
// partial-round-trip property: a partial with only a resolved resource axis
// must serialize "resources" and must not emit "actions" at all.
func (p PartialPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(partialPolicyJSON{
		Version:   int(p.Version),
		Effect:    p.Effect.String(),
		Actions:   p.Actions,
		Resources: p.Resources,
	})
}

// UnmarshalJSON parses the shape produced by MarshalJSON. A missing
// "actions" or "resources" key leaves the corresponding field nil.
func (p *PartialPolicy) UnmarshalJSON(data []byte) error {
	var raw partialPolicyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Version = Version(raw.Version)
	p.Effect = Allow
	if raw.Effect == "DENY" {
		p.Effect = Deny
	}
	p.Actions = raw.Actions
	p.Resources = raw.Resources

	return nil
}
