// Package schema embeds the draft-07 JSON Schema documents for ironclad's
// HTTP request bodies at build time (no schema files read from disk at
// runtime) and validates each incoming request body against them.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed allowed.json policy.json identity.json group.json group_member.json
var schemaFiles embed.FS

// Name identifies one of the embedded request schemas.
type Name string

const (
	Allowed     Name = "allowed.json"
	Policy      Name = "policy.json"
	Identity    Name = "identity.json"
	Group       Name = "group.json"
	GroupMember Name = "group_member.json"
)

var compiled map[Name]*jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	compiled = make(map[Name]*jsonschema.Schema)

	for _, name := range []Name{Allowed, Policy, Identity, Group, GroupMember} {
		raw, err := schemaFiles.ReadFile(string(name))
		if err != nil {
			panic(fmt.Sprintf("schema: embedded file %q missing: %v", name, err))
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("schema: %q: invalid JSON schema: %v", name, err))
		}

		url := "mem://" + string(name)
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("schema: %q: add resource: %v", name, err))
		}

		sch, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("schema: %q: compile: %v", name, err))
		}
		compiled[name] = sch
	}
}

// ValidationError lists the individual schema-violation descriptions for a
// request body, surfaced to HTTP clients as a 400 response.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// Validate decodes body as JSON and checks it against the named schema. A
// malformed JSON body or a schema violation both return a *ValidationError.
func Validate(name Name, body []byte) error {
	sch, ok := compiled[name]
	if !ok {
		return fmt.Errorf("schema: unknown schema %q", name)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &ValidationError{Violations: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	if err := sch.Validate(instance); err != nil {
		return &ValidationError{Violations: flatten(err)}
	}
	return nil
}

// flatten walks a jsonschema.ValidationError's Causes tree into a flat list
// of "<instance path>: <message>" descriptions.
func flatten(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			path := strings.Join(v.InstanceLocation, "/")
			if path == "" {
				path = "(root)"
			}
			out = append(out, fmt.Sprintf("%s: %s", path, v.Error()))
			return
		}
		for _, cause := range v.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
