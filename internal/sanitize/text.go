// Package sanitize normalizes text blobs before hashing and before
// old/new comparison (spec section 4.3): strip CR, ensure a single
// trailing LF on non-empty content. Sanitization is idempotent.
package sanitize

import "strings"

// Text normalizes s per spec section 4.3.
func Text(s string) string {
	if strings.IndexByte(s, '\r') != -1 {
		s = strings.ReplaceAll(s, "\r", "")
	}
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// Equal reports whether two texts are equal once sanitized.
func Equal(a, b string) bool {
	return Text(a) == Text(b)
}
