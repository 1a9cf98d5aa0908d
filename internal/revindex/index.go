// Package revindex implements the commit-id index (spec component C6): a
// dense, append-only mapping from revision number to commit id, backed by
// a flat file keyed by revision offset for O(1) lookup, with the commit
// log as the sole source of truth for rebuilding it.
package revindex

import (
	"fmt"
	"os"
	"sync"

	"github.com/retzger/centraldogma/internal/plumbing"
)

const entrySize = plumbing.HashSize

// Index is the in-memory, file-backed revision -> commit id mapping.
// Revision r is stored at ids[r-1]; there is no entry for revision 0.
type Index struct {
	path string

	mu  sync.RWMutex
	ids []plumbing.Hash
}

// Open loads an existing index file, or returns an empty Index if none
// exists yet (a brand-new repository has not committed anything).
func Open(path string) (*Index, error) {
	idx := &Index{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("revindex: open: %w", err)
	}
	if len(data)%entrySize != 0 {
		return nil, fmt.Errorf("revindex: corrupt index file (size %d not a multiple of %d)", len(data), entrySize)
	}
	idx.ids = make([]plumbing.Hash, len(data)/entrySize)
	for i := range idx.ids {
		copy(idx.ids[i][:], data[i*entrySize:(i+1)*entrySize])
	}
	return idx, nil
}

// Head returns the highest revision present in the index, or 0 if empty.
func (idx *Index) Head() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.ids))
}

// Get returns the commit id for revision r. Per spec section 4.6, a
// missing entry for r in [1, head] is a bug, not a recoverable condition;
// callers are expected to have already validated r against Head().
func (idx *Index) Get(r int64) (plumbing.Hash, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if r < 1 || r > int64(len(idx.ids)) {
		return plumbing.Hash{}, false
	}
	return idx.ids[r-1], true
}

// Put appends the commit id for revision r, which must equal Head()+1.
func (idx *Index) Put(r int64, id plumbing.Hash) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if r != int64(len(idx.ids))+1 {
		return fmt.Errorf("revindex: out-of-order put: revision %d, expected %d", r, len(idx.ids)+1)
	}
	idx.ids = append(idx.ids, id)
	return idx.appendLocked(id)
}

func (idx *Index) appendLocked(id plumbing.Hash) error {
	f, err := os.OpenFile(idx.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("revindex: append: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(id[:]); err != nil {
		return fmt.Errorf("revindex: append: %w", err)
	}
	return nil
}

// Reset discards the in-memory and on-disk index, used right before a
// Rebuild repopulates it from scratch.
func (idx *Index) Reset() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids = nil
	if err := os.Remove(idx.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("revindex: reset: %w", err)
	}
	return nil
}

// RebuildFrom repopulates the index from an ordered (ascending revision)
// list of commit ids, typically produced by walking the commit log from
// HEAD back to the initial commit (spec section 4.6 "rebuild(store)").
func (idx *Index) RebuildFrom(ascending []plumbing.Hash) error {
	if err := idx.Reset(); err != nil {
		return err
	}
	for i, id := range ascending {
		if err := idx.Put(int64(i+1), id); err != nil {
			return err
		}
	}
	return nil
}
