package sanitize

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// CanonicalJSON re-serializes an already-parsed JSON value into the form
// stored in the object store: compact, map keys sorted (encoding/json's
// default), newline-terminated like a sanitized text blob.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseJSON decodes raw JSON bytes into a generic tree (map/slice/scalar)
// usable with JSONEqual. Numbers decode to float64, encoding/json's
// default, so callers comparing or re-marshaling parsed values see the
// same representation the rest of the standard library does.
func ParseJSON(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// JSONEqual compares two JSON values for equality on the parsed tree, not
// on byte representation (spec section 4.3: whitespace/key-order must not
// count as a change).
func JSONEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
