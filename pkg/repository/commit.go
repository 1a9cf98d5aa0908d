package repository

import (
	"context"
	"time"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/plumbing"
	"github.com/retzger/centraldogma/internal/worker"
)

// appendCommitLocked implements commit-pipeline steps 3-8 (spec.md
// section 4.8): seed a working tree from the current head, apply
// changes, reject a no-op unless allowEmpty, write the tree and commit,
// append to the index, and fast-forward the ref. The caller must already
// hold the exclusive write lock (or, during Create, be the sole owner of
// a not-yet-published Repository) and must itself have validated the
// caller's base revision against head.
func (r *Repository) appendCommitLocked(changes []change.Change, author Author, when time.Time, summary, detail string, markup Markup, allowEmpty bool) (int64, []string, error) {
	head := r.head
	var parentHash plumbing.Hash
	if head > 0 {
		id, ok := r.index.Get(head)
		if !ok {
			return 0, nil, engineerr.Newf(engineerr.Storage, "missing index entry for head revision %d", head).WithRevision(head)
		}
		parentHash = id
	}

	_, baseTree, err := r.resolveTree(head)
	if err != nil {
		return 0, nil, err
	}

	applicator := change.New(r.store)
	newTree, _, err := applicator.Apply(baseTree, changes)
	if err != nil {
		return 0, nil, err
	}

	if newTree.Equal(baseTree) && !allowEmpty {
		return 0, nil, engineerr.New(engineerr.RedundantChange, "commit produces no effective change").WithRevision(head)
	}

	next := head + 1

	treeHash, err := r.store.PutTree(newTree)
	if err != nil {
		return 0, nil, engineerr.Wrap(err)
	}

	commit := &objstore.Commit{
		TreeHash:   treeHash,
		ParentHash: parentHash,
		Author:     author,
		When:       when.Truncate(time.Second),
		Message: objstore.Message{
			Summary:  summary,
			Detail:   detail,
			Markup:   markup,
			Revision: next,
		},
	}
	commitHash, err := r.store.PutCommit(commit)
	if err != nil {
		return 0, nil, engineerr.Wrap(err)
	}

	if err := r.index.Put(next, commitHash); err != nil {
		return 0, nil, engineerr.Wrap(err)
	}

	result, err := r.store.UpdateRef(refName, parentHash, commitHash)
	if err != nil {
		return 0, nil, engineerr.Wrap(err)
	}
	if result != objstore.RefNew && result != objstore.RefFastForward {
		return 0, nil, engineerr.Newf(engineerr.Storage, "ref update for revision %d was rejected", next).WithRevision(next)
	}

	changedPaths, err := changedPathsBetween(r.store, baseTree, newTree)
	if err != nil {
		return 0, nil, err
	}

	r.head = next
	if r.format == objstore.FormatV0 {
		r.format = objstore.FormatV1
		if err := r.store.WriteFormat(objstore.FormatV1); err != nil {
			r.log.WithError(err).Warn("failed to upgrade on-disk format marker")
		}
	}

	r.log.WithFields(map[string]any{"revision": next}).Debug("commit applied")
	return next, changedPaths, nil
}

func changedPathsBetween(store *objstore.Store, oldTree, newTree *objstore.Tree) ([]string, error) {
	changes, err := diffTrees(store, oldTree, newTree, matchAll)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(changes))
	for p := range changes {
		paths = append(paths, p)
	}
	return paths, nil
}

// Commit runs the full commit pipeline (spec.md section 4.8): it
// validates the base revision against head under the exclusive write
// lock, writes the new commit, and — after releasing the lock — notifies
// the watcher registry, so a callback re-entering the repository cannot
// deadlock against the commit that just completed.
func (r *Repository) Commit(ctx context.Context, base Revision, when time.Time, author Author, summary, detail string, markup Markup, changes []change.Change, allowEmpty bool) (int64, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (int64, error) {
		r.mu.Lock()
		if err := r.checkOpen(); err != nil {
			r.mu.Unlock()
			return 0, err
		}

		b, err := normalize(base, r.head)
		if err != nil {
			r.mu.Unlock()
			return 0, err
		}
		if b != r.head {
			r.mu.Unlock()
			return 0, engineerr.Newf(engineerr.ChangeConflict, "base revision %d is stale, head is %d", b, r.head).WithRevision(b)
		}

		next, changedPaths, err := r.appendCommitLocked(changes, author, when, summary, detail, markup, allowEmpty)
		r.mu.Unlock()
		if err != nil {
			return 0, err
		}

		r.watchers.Notify(next, changedPaths)
		if r.cache != nil {
			r.cache.Invalidate()
		}
		return next, nil
	})
}
