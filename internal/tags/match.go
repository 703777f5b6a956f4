package tags

import "strings"

// MatchKind describes how a query resolved to a tag.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
	MatchNone    MatchKind = "none"
)

// Normalize lowercases and trims a tag or query.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether tag name and query match case-insensitively, either
// exactly or by one containing the other. Short names match broadly ("сыр"
// matches "сырники"); ingredient lookups rely on that.
func Matches(name, query string) MatchKind {
	n, q := Normalize(name), Normalize(query)
	if n == "" || q == "" {
		return MatchNone
	}
	if n == q {
		return MatchExact
	}
	if strings.Contains(n, q) || strings.Contains(q, n) {
		return MatchPartial
	}
	return MatchNone
}

// Best picks the tag a query resolves to: the first exact match, otherwise the
// first partial match, in the order given.
func Best(query string, candidates []Tag) (Tag, MatchKind) {
	var (
		partial Tag
		found   bool
	)
	for _, t := range candidates {
		switch Matches(t.Name, query) {
		case MatchExact:
			return t, MatchExact
		case MatchPartial:
			if !found {
				partial, found = t, true
			}
		}
	}
	if found {
		return partial, MatchPartial
	}
	return Tag{}, MatchNone
}
