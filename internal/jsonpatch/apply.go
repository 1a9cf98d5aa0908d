package jsonpatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/retzger/centraldogma/internal/sanitize"
)

// Apply runs an RFC-6902 patch against doc, returning the resulting
// document. doc is never mutated; every container on the path to a
// change is shallow-cloned, Clojure-persistent-map style, so the caller's
// original tree remains valid.
func Apply(doc any, ops []Op) (any, error) {
	cur := doc
	for i, op := range ops {
		next, err := applyOne(cur, op)
		if err != nil {
			return nil, fmt.Errorf("jsonpatch: op %d (%s %s): %w", i, op.Op, op.Path, err)
		}
		cur = next
	}
	return cur, nil
}

func applyOne(doc any, op Op) (any, error) {
	switch op.Op {
	case "add", "replace":
		return setAtPointer(doc, splitPointer(op.Path), op.Value)
	case "remove":
		return removeAtPointer(doc, splitPointer(op.Path))
	case "test":
		got, err := Pointer(doc, op.Path)
		if err != nil {
			return nil, err
		}
		if !sanitize.JSONEqual(got, op.Value) {
			return nil, fmt.Errorf("test failed at %q", op.Path)
		}
		return doc, nil
	case "move":
		val, err := Pointer(doc, op.From)
		if err != nil {
			return nil, err
		}
		removed, err := removeAtPointer(doc, splitPointer(op.From))
		if err != nil {
			return nil, err
		}
		return setAtPointer(removed, splitPointer(op.Path), val)
	case "copy":
		val, err := Pointer(doc, op.From)
		if err != nil {
			return nil, err
		}
		return setAtPointer(doc, splitPointer(op.Path), val)
	default:
		return nil, fmt.Errorf("unsupported op %q", op.Op)
	}
}

func splitPointer(pointer string) []string {
	if pointer == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, p := range parts {
		parts[i] = unescapeToken(p)
	}
	return parts
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	copy(out, s)
	return out
}

func setAtPointer(doc any, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	tok := tokens[0]
	rest := tokens[1:]
	switch v := doc.(type) {
	case map[string]any:
		out := cloneMap(v)
		if len(rest) == 0 {
			out[tok] = value
			return out, nil
		}
		child, ok := out[tok]
		if !ok {
			return nil, fmt.Errorf("no such member %q", tok)
		}
		newChild, err := setAtPointer(child, rest, value)
		if err != nil {
			return nil, err
		}
		out[tok] = newChild
		return out, nil
	case []any:
		out := cloneSlice(v)
		if len(rest) == 0 {
			if tok == "-" {
				return append(out, value), nil
			}
			idx, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q", tok)
			}
			switch {
			case idx == len(out):
				return append(out, value), nil
			case idx >= 0 && idx < len(out):
				grown := make([]any, len(out)+1)
				copy(grown, out[:idx])
				grown[idx] = value
				copy(grown[idx+1:], out[idx:])
				return grown, nil
			default:
				return nil, fmt.Errorf("array index %q out of range", tok)
			}
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("array index %q out of range", tok)
		}
		newChild, err := setAtPointer(out[idx], rest, value)
		if err != nil {
			return nil, err
		}
		out[idx] = newChild
		return out, nil
	default:
		return nil, fmt.Errorf("cannot descend into scalar at %q", tok)
	}
}

func removeAtPointer(doc any, tokens []string) (any, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	tok := tokens[0]
	rest := tokens[1:]
	switch v := doc.(type) {
	case map[string]any:
		out := cloneMap(v)
		if len(rest) == 0 {
			if _, ok := out[tok]; !ok {
				return nil, fmt.Errorf("no such member %q", tok)
			}
			delete(out, tok)
			return out, nil
		}
		child, ok := out[tok]
		if !ok {
			return nil, fmt.Errorf("no such member %q", tok)
		}
		newChild, err := removeAtPointer(child, rest)
		if err != nil {
			return nil, err
		}
		out[tok] = newChild
		return out, nil
	case []any:
		out := cloneSlice(v)
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("array index %q out of range", tok)
		}
		if len(rest) == 0 {
			return append(out[:idx], out[idx+1:]...), nil
		}
		newChild, err := removeAtPointer(out[idx], rest)
		if err != nil {
			return nil, err
		}
		out[idx] = newChild
		return out, nil
	default:
		return nil, fmt.Errorf("cannot descend into scalar at %q", tok)
	}
}
