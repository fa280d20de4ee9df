// Package urlnorm canonicalizes raw URLs into the join key shared by
// classification, attribution and merged-signal records.
package urlnorm

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultScheme is used when the input carries no scheme.
const DefaultScheme = "https"

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

// Normalize returns the canonical form of raw:
//   - a missing scheme defaults to https; a dotted first segment is the host
//   - scheme and host are lowercased, path case is kept
//   - query and fragment are dropped
//   - trailing slashes are stripped unless the path is exactly "/"
//
// Normalize(Normalize(s)) == Normalize(s) for every s. Input that fails to
// parse falls back to its trimmed lowercase form. Empty input yields "".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if !schemeRe.MatchString(s) {
		if strings.HasPrefix(s, "//") {
			s = DefaultScheme + ":" + s
		} else if looksLikeHost(firstSegment(s)) {
			s = DefaultScheme + "://" + s
		} else {
			s = DefaultScheme + ":///" + strings.TrimLeft(s, "/")
		}
	}

	u, err := url.Parse(s)
	if err != nil || u.Opaque != "" {
		return fallback(raw)
	}

	path := u.EscapedPath()
	if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}

// Equal reports whether two raw URLs share a canonical form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func looksLikeHost(seg string) bool {
	return strings.Contains(seg, ".") && !strings.ContainsAny(seg, " \t")
}

func fallback(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
