// Package validate holds the RFC 6749 appendix A character-class checks used
// to syntax-validate request parameters before they reach the model.
package validate

import "net/url"

// VSChar reports whether s is non-empty and composed only of visible ASCII
// characters plus space (%x20-7E). Used for code, state, client_id,
// client_secret and refresh_token values.
func VSChar(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// NQSChar reports whether s contains only characters permitted in a scope
// value: visible ASCII excluding the double quote and backslash. An empty
// string is valid (scope is optional).
func NQSChar(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

// NChar reports whether s is a non-empty name token: ALPHA / DIGIT /
// "-" / "." / "_". grant_type values are name tokens or absolute URIs.
func NChar(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_':
		default:
			return false
		}
	}
	return true
}

// URI reports whether s parses as an absolute URI with a scheme and an
// authority. Redirect URIs must name a host.
func URI(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// AbsoluteURI reports whether s parses as an absolute URI with a scheme.
// Unlike URI it accepts opaque forms without an authority, such as
// urn:ietf:params:oauth:grant-type:jwt-bearer (RFC 6749 §4.5 extension
// grant names).
func AbsoluteURI(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && (u.Opaque != "" || u.Host != "" || u.Path != "")
}
