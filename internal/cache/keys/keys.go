// Package keys builds the deterministic keys under which MOCs are cached
// and stored.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxNameLen = 120

// Query returns the key of the MOC of a region query. region is the
// canonical description of the region, as returned by its String method,
// e.g. "cone(1.2,0.3,0.01)". The region kind stays readable; the full
// description is hashed.
func Query(prefix, region string, depth uint8) string {
	region = strings.TrimSpace(region)
	kind := region
	if i := strings.IndexByte(region, '('); i >= 0 {
		kind = region[:i]
	}
	return fmt.Sprintf("%s:q:%s:d%d:h=%016x", sanitize(prefix), sanitize(kind), depth, xxhash.Sum64String(region))
}

// Named returns the key of a MOC stored under a user-chosen name. Names
// differing only by characters that are not allowed in keys are kept apart
// by the hash suffix.
func Named(prefix, name string) string {
	name = strings.TrimSpace(name)
	safe := sanitize(name)
	if len(safe) > maxNameLen {
		safe = safe[:maxNameLen]
	}
	return fmt.Sprintf("%s:n:%s:h=%016x", sanitize(prefix), safe, xxhash.Sum64String(name))
}

// NamedPattern matches every named MOC key of the prefix.
func NamedPattern(prefix string) string {
	return sanitize(prefix) + ":n:*"
}

// sanitize keeps ASCII letters, digits, '_', '-' and '.', maps whitespace
// to '_' and any other rune to '-', collapsing repeats.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
