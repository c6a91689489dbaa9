// Package glob compiles the glob dialect used by policy actions and
// resources into anchored regular expressions.
//
// The dialect treats ':' as a reserved segment separator: an unescaped '*'
// stops at a colon, so a glob like "s3:Get*" never accidentally matches
// across "s3:GetObject:extra". A glob that is exactly "*" is the one
// exception and matches everything, including colons. ":**" is a deliberate
// cross-segment wildcard.
package glob

import (
	"regexp"
	"strings"
)

// metaChars are regex metacharacters that must be escaped when they appear
// literally in a glob.
const metaChars = ".()|+^$"

// Compile translates a glob string into a regular expression matching the
// same set of strings using full-string (anchored) semantics.
func Compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^" + toRegexSource(pattern) + "$")
}

// MustCompile is like Compile but panics on error. Callers that have already
// validated the glob syntax (e.g. at policy construction time) may prefer
// it for brevity.
func MustCompile(pattern string) *regexp.Regexp {
	re, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

func toRegexSource(pattern string) string {
	if pattern == "*" {
		// Short-circuit: the only case where "*" crosses colon segments.
		return ".*"
	}

	var b strings.Builder
	escaping := false
	inCurlies := 0

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if c == ':' && i+2 < len(runes) && runes[i+1] == '*' && runes[i+2] == '*' {
			b.WriteString(".*")
			i += 2
			continue
		}

		switch {
		case strings.ContainsRune(metaChars, c):
			b.WriteByte('\\')
			b.WriteRune(c)
		case c == '*':
			if escaping {
				b.WriteString(`\*`)
			} else {
				b.WriteString("[^:]*")
			}
		case c == '?':
			if escaping {
				b.WriteString(`\?`)
			} else {
				b.WriteString("[^:]")
			}
		case c == '{':
			if escaping {
				b.WriteString(`\{`)
			} else {
				b.WriteByte('(')
				inCurlies++
			}
		case c == '}' && inCurlies > 0:
			if escaping {
				b.WriteByte('}')
			} else {
				b.WriteByte(')')
				inCurlies--
			}
		case c == ',' && inCurlies > 0:
			if escaping {
				b.WriteByte(',')
			} else {
				b.WriteByte('|')
			}
		case c == '\\':
			if escaping {
				b.WriteString(`\\`)
			}
			escaping = !escaping
			continue
		default:
			b.WriteRune(c)
		}

		escaping = false
	}

	return b.String()
}
