package repository

import (
	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/plumbing"
	"github.com/retzger/centraldogma/internal/sanitize"
)

// resolveTree loads the commit and tree for revision r from the index.
func (r *Repository) resolveTree(rev int64) (*objstore.Commit, *objstore.Tree, error) {
	if rev == 0 {
		return nil, objstore.EmptyTree(), nil
	}
	id, ok := r.index.Get(rev)
	if !ok {
		return nil, nil, engineerr.Newf(engineerr.RevisionNotFound, "no commit indexed for revision %d", rev).WithRevision(rev)
	}
	c, err := r.store.Commit(id)
	if err != nil {
		return nil, nil, engineerr.Wrap(err)
	}
	t, err := r.store.Tree(c.TreeHash)
	if err != nil {
		return nil, nil, engineerr.Wrap(err)
	}
	return c, t, nil
}

// flattenHashes walks t and returns a map from slash-joined relative path
// (no leading "/") to the content hash of each file, used for cheap
// structural tree-to-tree comparison without reading blob content.
func flattenHashes(store *objstore.Store, t *objstore.Tree, prefix string, out map[string]plumbing.Hash) error {
	if t == nil {
		return nil
	}
	for _, e := range t.Entries {
		p := joinRel(prefix, e.Name)
		switch e.Kind {
		case objstore.EntryFile:
			out[p] = e.Hash
		case objstore.EntryDir:
			sub, err := store.Tree(e.Hash)
			if err != nil {
				return engineerr.Wrap(err)
			}
			if err := flattenHashes(store, sub, p, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinRel(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// entryContent decodes a blob's bytes per the entry type implied by path.
func entryContent(typ EntryType, raw []byte) (any, error) {
	switch typ {
	case EntryTypeJSON:
		return sanitize.ParseJSON(raw)
	case EntryTypeText:
		return string(raw), nil
	default:
		return nil, nil
	}
}
