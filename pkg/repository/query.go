package repository

import (
	"sort"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/jsonpatch"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/pattern"
	"github.com/retzger/centraldogma/internal/plumbing"
	"github.com/retzger/centraldogma/internal/sanitize"
	"github.com/retzger/centraldogma/internal/textpatch"
)

// findInTree walks tree, pruning subtrees the pattern cursor can no
// longer match, and collects matching entries in tree-walk order (spec.md
// section 4.9, "find").
func findInTree(store *objstore.Store, tree *objstore.Tree, rev int64, pat *pattern.Pattern, opts FindOptions) (map[string]Entry, []string, error) {
	out := make(map[string]Entry)
	var order []string
	cursor := pat.NewCursor()
	err := walkFind(store, tree, "", cursor, rev, opts, out, &order)
	if err != nil {
		return nil, nil, err
	}
	return out, order, nil
}

func walkFind(store *objstore.Store, tree *objstore.Tree, prefix string, cursor *pattern.Cursor, rev int64, opts FindOptions, out map[string]Entry, order *[]string) error {
	if tree == nil {
		return nil
	}
	for _, e := range tree.Entries {
		if opts.MaxEntries > 0 && len(out) >= opts.MaxEntries {
			return nil
		}
		path := joinRel(prefix, e.Name)
		child := cursor.Descend(e.Name)
		abs := "/" + path

		switch e.Kind {
		case objstore.EntryDir:
			if child.Matches() {
				emit(out, order, abs, Entry{Revision: rev, Path: abs, Type: EntryTypeDirectory})
			}
			if child.CanDescend() {
				sub, err := store.Tree(e.Hash)
				if err != nil {
					return engineerr.Wrap(err)
				}
				if err := walkFind(store, sub, path, child, rev, opts, out, order); err != nil {
					return err
				}
			}
		case objstore.EntryFile:
			if !child.Matches() {
				continue
			}
			typ := entryTypeForPath(abs)
			entry := Entry{Revision: rev, Path: abs, Type: typ}
			if opts.FetchContent {
				blob, err := store.Blob(e.Hash)
				if err != nil {
					return engineerr.Wrap(err)
				}
				content, err := entryContent(typ, blob.Content)
				if err != nil {
					return engineerr.Newf(engineerr.Storage, "corrupt JSON blob at %s: %v", abs, err).WithPath(abs)
				}
				entry.Content = content
			}
			emit(out, order, abs, entry)
		}
	}
	return nil
}

func emit(out map[string]Entry, order *[]string, path string, e Entry) {
	if _, exists := out[path]; !exists {
		*order = append(*order, path)
	}
	out[path] = e
}

// diffTrees computes the set of Changes transforming oldTree into
// newTree, restricted to paths matching pat, per spec.md section 4.9's
// translation table: ADD -> Upsert*, DELETE -> Remove, and a same-content
// path move -> Rename; a changed-content common path -> a patch Change
// on that path. The result map is keyed by the affected path and must
// contain no duplicate keys by construction.
func diffTrees(store *objstore.Store, oldTree, newTree *objstore.Tree, pat *pattern.Pattern) (map[string]change.Change, error) {
	oldHashes, newHashes := map[string]plumbing.Hash{}, map[string]plumbing.Hash{}
	if err := flattenHashes(store, oldTree, "", oldHashes); err != nil {
		return nil, err
	}
	if err := flattenHashes(store, newTree, "", newHashes); err != nil {
		return nil, err
	}

	removed := map[string]plumbing.Hash{}
	added := map[string]plumbing.Hash{}
	var modified []string // paths present in both, with different content

	for p, h := range oldHashes {
		if nh, ok := newHashes[p]; ok {
			if nh != h {
				modified = append(modified, p)
			}
			continue
		}
		removed[p] = h
	}
	for p, h := range newHashes {
		if _, ok := oldHashes[p]; !ok {
			added[p] = h
		}
	}

	result := make(map[string]change.Change)

	// Detect pure renames: identical content hash, present only under a
	// different path on each side.
	removedByHash := map[plumbing.Hash][]string{}
	for p, h := range removed {
		removedByHash[h] = append(removedByHash[h], p)
	}
	addedPaths := make([]string, 0, len(added))
	for p := range added {
		addedPaths = append(addedPaths, p)
	}
	sort.Strings(addedPaths)

	for _, newPath := range addedPaths {
		h := added[newPath]
		candidates := removedByHash[h]
		if len(candidates) == 0 {
			continue
		}
		oldPath := candidates[0]
		removedByHash[h] = candidates[1:]
		delete(removed, oldPath)
		delete(added, newPath)
		abs := "/" + newPath
		if !pat.Match(abs) && !pat.Match("/"+oldPath) {
			continue
		}
		result[abs] = change.NewRename("/"+oldPath, abs)
	}

	for p := range removed {
		abs := "/" + p
		if !pat.Match(abs) {
			continue
		}
		result[abs] = change.NewRemove(abs)
	}

	for p, h := range added {
		abs := "/" + p
		if !pat.Match(abs) {
			continue
		}
		blob, err := store.Blob(h)
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		typ := entryTypeForPath(abs)
		c, err := upsertChangeFor(typ, abs, blob.Content)
		if err != nil {
			return nil, err
		}
		result[abs] = c
	}

	for _, p := range modified {
		abs := "/" + p
		if !pat.Match(abs) {
			continue
		}
		oldBlob, err := store.Blob(oldHashes[p])
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		newBlob, err := store.Blob(newHashes[p])
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		typ := entryTypeForPath(abs)
		c, err := patchChangeFor(typ, abs, oldBlob.Content, newBlob.Content)
		if err != nil {
			return nil, err
		}
		result[abs] = c
	}

	return result, nil
}

func upsertChangeFor(typ EntryType, path string, content []byte) (change.Change, error) {
	switch typ {
	case EntryTypeJSON:
		v, err := sanitize.ParseJSON(content)
		if err != nil {
			return change.Change{}, engineerr.Newf(engineerr.Storage, "corrupt JSON blob at %s: %v", path, err).WithPath(path)
		}
		return change.NewUpsertJSON(path, v), nil
	default:
		return change.NewUpsertText(path, string(content)), nil
	}
}

func patchChangeFor(typ EntryType, path string, oldContent, newContent []byte) (change.Change, error) {
	switch typ {
	case EntryTypeJSON:
		oldVal, err := sanitize.ParseJSON(oldContent)
		if err != nil {
			return change.Change{}, engineerr.Newf(engineerr.Storage, "corrupt JSON blob at %s: %v", path, err).WithPath(path)
		}
		newVal, err := sanitize.ParseJSON(newContent)
		if err != nil {
			return change.Change{}, engineerr.Newf(engineerr.Storage, "corrupt JSON blob at %s: %v", path, err).WithPath(path)
		}
		ops := jsonpatch.Generate(oldVal, newVal, jsonpatch.Safe)
		return change.NewApplyJSONPatch(path, ops), nil
	default:
		diff := textpatch.Diff(string(oldContent), string(newContent), textpatch.DefaultContextLines)
		return change.NewApplyTextPatch(path, diff.String()), nil
	}
}
