package objstore

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/retzger/centraldogma/internal/plumbing"
)

// EntryKind distinguishes a tree entry pointing at a blob from one
// pointing at a subtree. Spec non-goals exclude symlinks and file modes,
// so this is the entire type space (C1 contract: "only regular-file
// blobs; no symlinks, no executable bits").
type EntryKind uint8

const (
	EntryFile EntryKind = iota + 1
	EntryDir
)

// TreeEntry is one named child of a Tree.
type TreeEntry struct {
	Name string        `json:"name"`
	Kind EntryKind     `json:"kind"`
	Hash plumbing.Hash `json:"hash"`
}

// Tree is a content-addressed directory listing. Entries are kept sorted
// by name so that two trees with the same members always encode
// identically, which is required for content addressing to detect "no
// change" (spec invariant: structural identity check in the commit
// pipeline).
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// EmptyTree is the tree with no entries, used as the base for a
// repository's very first commit.
func EmptyTree() *Tree { return &Tree{} }

// Lookup returns the entry named name, if present.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// WithEntry returns a copy of t with entry upserted (by name), keeping
// entries sorted by name.
func (t *Tree) WithEntry(entry TreeEntry) *Tree {
	out := &Tree{Entries: make([]TreeEntry, 0, len(t.Entries)+1)}
	replaced := false
	for _, e := range t.Entries {
		if e.Name == entry.Name {
			out.Entries = append(out.Entries, entry)
			replaced = true
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	if !replaced {
		out.Entries = append(out.Entries, entry)
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Name < out.Entries[j].Name })
	return out
}

// WithoutEntry returns a copy of t with the named entry removed.
func (t *Tree) WithoutEntry(name string) *Tree {
	out := &Tree{Entries: make([]TreeEntry, 0, len(t.Entries))}
	for _, e := range t.Entries {
		if e.Name != name {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// Equal reports whether two trees are structurally identical: same
// entries, same names, same child hashes. Because entries are kept
// sorted and children are content-addressed, this also transitively
// compares the whole subtree.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.Entries) != len(other.Entries) {
		return false
	}
	for i, e := range t.Entries {
		o := other.Entries[i]
		if e.Name != o.Name || e.Kind != o.Kind || e.Hash != o.Hash {
			return false
		}
	}
	return true
}

// PutTree stores t and returns its content hash.
func (s *Store) PutTree(t *Tree) (plumbing.Hash, error) {
	id, data, err := encode(KindTree, t)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if err := s.put(id, data); err != nil {
		return plumbing.Hash{}, err
	}
	return id, nil
}

// Tree reads back a previously stored tree.
func (s *Store) Tree(id plumbing.Hash) (*Tree, error) {
	if id.IsZero() {
		return EmptyTree(), nil
	}
	data, err := s.open(id)
	if err != nil {
		return nil, err
	}
	kind, body, err := decode(data)
	if err != nil {
		return nil, err
	}
	if kind != KindTree {
		return nil, kindMismatch(KindTree, kind)
	}
	var t Tree
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func kindMismatch(want, got Kind) error {
	return fmt.Errorf("objstore: expected %s object, found %s", want, got)
}
