package jsonpatch

import "github.com/retzger/centraldogma/internal/sanitize"

// Op is one RFC-6902 patch operation.
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Mode selects how a value replacement is expressed in a generated patch
// (spec section 4.4).
type Mode int

const (
	// Safe emits a "test" immediately before every "replace", so applying
	// the patch against an unexpectedly different document fails loudly
	// instead of silently overwriting it.
	Safe Mode = iota
	// RFC emits a bare "replace" with no preceding "test".
	RFC
)

// Generate produces a minimal patch transforming old into new.
func Generate(old, new any, mode Mode) []Op {
	var ops []Op
	diffValue("", old, new, mode, &ops)
	return ops
}

func diffValue(path string, old, new any, mode Mode, ops *[]Op) {
	if sanitize.JSONEqual(old, new) {
		return
	}
	oldMap, oldIsMap := old.(map[string]any)
	newMap, newIsMap := new.(map[string]any)
	if oldIsMap && newIsMap {
		diffObjects(path, oldMap, newMap, mode, ops)
		return
	}
	oldArr, oldIsArr := old.([]any)
	newArr, newIsArr := new.([]any)
	if oldIsArr && newIsArr {
		diffArrays(path, oldArr, newArr, mode, ops)
		return
	}
	replaceScalar(path, old, new, mode, ops)
}

func diffObjects(path string, old, new map[string]any, mode Mode, ops *[]Op) {
	for k := range old {
		if _, present := new[k]; !present {
			*ops = append(*ops, Op{Op: "remove", Path: joinPointer(path, k)})
		}
	}
	for k, nv := range new {
		ov, present := old[k]
		childPath := joinPointer(path, k)
		if !present {
			*ops = append(*ops, Op{Op: "add", Path: childPath, Value: nv})
			continue
		}
		diffValue(childPath, ov, nv, mode, ops)
	}
}

func diffArrays(path string, old, new []any, mode Mode, ops *[]Op) {
	n := len(old)
	if len(new) < n {
		n = len(new)
	}
	for i := 0; i < n; i++ {
		diffValue(indexPointer(path, i), old[i], new[i], mode, ops)
	}
	switch {
	case len(new) > len(old):
		for i := len(old); i < len(new); i++ {
			*ops = append(*ops, Op{Op: "add", Path: indexPointer(path, i), Value: new[i]})
		}
	case len(old) > len(new):
		// Remove from the tail backward so earlier indices stay valid as
		// each "remove" is applied in sequence.
		for i := len(old) - 1; i >= len(new); i-- {
			*ops = append(*ops, Op{Op: "remove", Path: indexPointer(path, i)})
		}
	}
}

func indexPointer(path string, i int) string {
	return path + "/" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	n := i
	for n > 0 {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[pos:])
}

func replaceScalar(path string, old, new any, mode Mode, ops *[]Op) {
	if path == "" {
		// Whole-document replacement: RFC 6902 has no root "replace" with
		// an empty path in strict readings, but this engine treats the
		// empty pointer "" as addressable like any other pointer for a
		// single scalar document.
		path = ""
	}
	if mode == Safe {
		*ops = append(*ops, Op{Op: "test", Path: path, Value: old})
	}
	*ops = append(*ops, Op{Op: "replace", Path: path, Value: new})
}
