package schema

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLen is the longest identifier emitted. It matches the
// PostgreSQL limit, the strictest of the supported destinations.
const MaxIdentifierLen = 63

// SanitizeIdentifier turns an arbitrary display string into a lower-case SQL
// identifier: accents are folded, whitespace becomes "_", every other
// character outside [a-z0-9_] is dropped. For example "Calls to 9-1-1"
// becomes "calls_to_911".
func SanitizeIdentifier(raw string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		raw,
	)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}

	id := b.String()
	if id == "" {
		id = "column"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return ShortenIdentifier(id)
}

// ShortenIdentifier caps id at MaxIdentifierLen bytes. Long names keep a
// readable prefix followed by a hash of the full name, so two long names that
// share a prefix stay distinct.
func ShortenIdentifier(id string) string {
	if len(id) <= MaxIdentifierLen {
		return id
	}
	suffix := fmt.Sprintf("_%08x", uint32(xxh3.HashString(id)))
	return id[:MaxIdentifierLen-len(suffix)] + suffix
}
