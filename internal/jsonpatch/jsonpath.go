package jsonpatch

import (
	"fmt"
	"strconv"
	"strings"
)

// EvaluateFirst evaluates a small JSON-path subset ("$.a.b[0].c" style,
// with an optional leading "$") and returns the first matching value.
// Full JSONPath (unions, filters, recursive descent) is out of scope;
// the spec only requires "the first result" for an entry's content.
func EvaluateFirst(doc any, expr string) (any, bool) {
	tokens, err := tokenizeJSONPath(expr)
	if err != nil {
		return nil, false
	}
	cur := doc
	for _, tok := range tokens {
		next, ok := descend(cur, tok)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func descend(cur any, tok string) (any, bool) {
	if idx, err := strconv.Atoi(tok); err == nil {
		arr, ok := cur.([]any)
		if !ok || idx < 0 || idx >= len(arr) {
			return nil, false
		}
		return arr[idx], true
	}
	obj, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[tok]
	return v, ok
}

// tokenizeJSONPath splits "$.a.b[0].c" / "a.b[0]" into ["a","b","0","c"].
func tokenizeJSONPath(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "$")
	expr = strings.TrimPrefix(expr, ".")
	if expr == "" {
		return nil, nil
	}
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			j := strings.IndexByte(expr[i:], ']')
			if j < 0 {
				return nil, fmt.Errorf("jsonpatch: unterminated '[' in %q", expr)
			}
			tokens = append(tokens, strings.Trim(expr[i+1:i+j], "'\""))
			i += j
		default:
			b.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}
