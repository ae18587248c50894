package extract

import (
	"net/url"
	"strings"
)

// ResolveURL resolves raw against base and never fails: every input maps to
// either a usable URL string or "" (empty/blank input only).
//
// Branches, in order:
//   - already absolute (has a scheme): kept as-is
//   - scheme-relative ("//host/..."): base scheme prepended
//   - rooted path ("/..."): base origin prepended
//   - anything else: resolved as a relative reference against base; if that
//     is impossible the value is concatenated onto the base origin
//
// With an empty or unparsable base, relative values are returned unchanged
// rather than dropped, so a later consumer can still inspect them.
func ResolveURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if hasScheme(raw) {
		return raw
	}

	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || b.Scheme == "" || b.Host == "" {
		return raw
	}
	origin := b.Scheme + "://" + b.Host

	if strings.HasPrefix(raw, "//") {
		return b.Scheme + ":" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return origin + "/" + raw
	}
	return b.ResolveReference(ref).String()
}

// hasScheme reports whether s starts with a recognizable "scheme:" prefix.
func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}
