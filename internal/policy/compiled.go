package policy

import "regexp"

// CompiledPolicy holds the compiled action/resource regex sets for a
// policy. It is immutable once built and safe to share by pointer across
// goroutines and across Policy instances that happen to carry the same id.
type CompiledPolicy struct {
	actions      []*regexp.Regexp
	resources    []*regexp.Regexp
	allResources bool
}

// MatchAction reports whether action matches any compiled action regex.
func (c *CompiledPolicy) MatchAction(action string) bool {
	for _, re := range c.actions {
		if re.MatchString(action) {
			return true
		}
	}
	return false
}

// MatchResource reports whether resource matches. If the policy's resource
// list contained a literal "*" (allResources), every resource matches and
// the ok return is always true. If resource is nil, the axis is
// unresolved and ok is false.
func (c *CompiledPolicy) MatchResource(resource *string) (matched bool, ok bool) {
	if c.allResources {
		return true, true
	}
	if resource == nil {
		return false, false
	}
	for _, re := range c.resources {
		if re.MatchString(*resource) {
			return true, true
		}
	}
	return false, true
}
