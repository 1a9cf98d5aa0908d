// Package change implements the change applicator (spec component C7):
// it applies an ordered sequence of logical Changes to a working-tree
// cache seeded from a base tree, reusing the object store for blob/tree
// writes, and reports the count of effective edits.
package change

import "github.com/retzger/centraldogma/internal/jsonpatch"

// Kind tags which variant a Change is (spec section 3).
type Kind int

const (
	UpsertJSON Kind = iota + 1
	UpsertText
	Remove
	Rename
	ApplyJSONPatch
	ApplyTextPatch
)

// Change is one requested mutation to a single path (spec section 3). Only
// the fields relevant to Kind are populated; callers construct one of the
// New* helpers rather than the struct literal directly.
type Change struct {
	Kind Kind

	Path string // absolute path, leading "/"
	To   string // Rename target (absolute path)

	JSON        any            // UpsertJSON content
	Text        string         // UpsertText content
	JSONPatch   []jsonpatch.Op // ApplyJSONPatch operations
	UnifiedDiff string         // ApplyTextPatch unified-diff text
}

func NewUpsertJSON(path string, value any) Change {
	return Change{Kind: UpsertJSON, Path: path, JSON: value}
}

func NewUpsertText(path, text string) Change {
	return Change{Kind: UpsertText, Path: path, Text: text}
}

func NewRemove(path string) Change {
	return Change{Kind: Remove, Path: path}
}

func NewRename(from, to string) Change {
	return Change{Kind: Rename, Path: from, To: to}
}

func NewApplyJSONPatch(path string, ops []jsonpatch.Op) Change {
	return Change{Kind: ApplyJSONPatch, Path: path, JSONPatch: ops}
}

func NewApplyTextPatch(path, unifiedDiff string) Change {
	return Change{Kind: ApplyTextPatch, Path: path, UnifiedDiff: unifiedDiff}
}
