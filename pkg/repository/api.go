package repository

import (
	"context"
	"sort"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/pattern"
	"github.com/retzger/centraldogma/internal/plumbing"
	"github.com/retzger/centraldogma/internal/worker"
)

// EntryList is the ordered result of Find: entries in tree-walk order,
// also addressable by path (spec.md section 6: "ordered map path ->
// Entry").
type EntryList struct {
	paths  []string
	byPath map[string]Entry
}

func (l EntryList) Paths() []string { return l.paths }
func (l EntryList) Len() int        { return len(l.paths) }
func (l EntryList) Get(path string) (Entry, bool) {
	e, ok := l.byPath[path]
	return e, ok
}

// NormalizeNow resolves a single Revision against the current head.
func (r *Repository) NormalizeNow(ctx context.Context, rev Revision) (int64, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (int64, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return 0, err
		}
		return normalize(rev, r.head)
	})
}

// NormalizeNowRange resolves both ends of a RevisionRange.
func (r *Repository) NormalizeNowRange(ctx context.Context, rr RevisionRange) (int64, int64, error) {
	type pair struct{ from, to int64 }
	p, err := worker.Run(ctx, r.pool, func(ctx context.Context) (pair, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if err := r.checkOpen(); err != nil {
			return pair{}, err
		}
		from, to, err := normalizeRange(rr, r.head)
		return pair{from, to}, err
	})
	return p.from, p.to, err
}

// Find walks the tree at rev, collecting entries matching patternExpr
// (spec.md section 4.9, "find").
func (r *Repository) Find(ctx context.Context, rev Revision, patternExpr string, opts FindOptions) (EntryList, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (EntryList, error) {
		r.mu.RLock()
		if err := r.checkOpen(); err != nil {
			r.mu.RUnlock()
			return EntryList{}, err
		}
		head := r.head
		r.mu.RUnlock()

		absRev, err := normalize(rev, head)
		if err != nil {
			return EntryList{}, err
		}
		if absRev > head {
			return EntryList{byPath: map[string]Entry{}}, nil
		}

		pat, err := pattern.Compile(patternExpr)
		if err != nil {
			return EntryList{}, engineerr.Newf(engineerr.ChangeConflict, "malformed pattern %q: %v", patternExpr, err)
		}
		_, tree, err := r.resolveTree(absRev)
		if err != nil {
			return EntryList{}, err
		}
		byPath, order, err := findInTree(r.store, tree, absRev, pat, opts)
		if err != nil {
			return EntryList{}, err
		}
		return EntryList{paths: order, byPath: byPath}, nil
	})
}

// History walks commits from the higher end of the range down to the
// lower end, keeping those whose diff (filtered by pattern) is non-empty,
// stopping at the lower bound or maxCommits (spec.md section 4.9,
// "history").
func (r *Repository) History(ctx context.Context, rr RevisionRange, patternExpr string, maxCommits int) ([]Commit, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) ([]Commit, error) {
		r.mu.RLock()
		if err := r.checkOpen(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		head := r.head
		r.mu.RUnlock()

		from, to, err := normalizeRange(rr, head)
		if err != nil {
			return nil, err
		}
		ascending := from < to
		hi, lo := to, from
		if from > to {
			hi, lo = from, to
		}

		pat, err := pattern.Compile(patternExpr)
		if err != nil {
			return nil, engineerr.Newf(engineerr.ChangeConflict, "malformed pattern %q: %v", patternExpr, err)
		}

		var result []Commit
		emptyLo := false // lo was reached but its diff was empty
		for rev := hi; rev >= lo; rev-- {
			if maxCommits > 0 && len(result) >= maxCommits {
				break
			}
			c, tree, err := r.resolveTree(rev)
			if err != nil {
				return nil, err
			}
			var parentTree *objstore.Tree
			if rev > 1 {
				_, parentTree, err = r.resolveTree(rev - 1)
				if err != nil {
					return nil, err
				}
			} else {
				parentTree = objstore.EmptyTree()
			}
			changes, err := diffTrees(r.store, parentTree, tree, pat)
			if err != nil {
				return nil, err
			}
			if len(changes) == 0 {
				if rev == lo {
					emptyLo = true
				}
				continue
			}
			result = append(result, toCommit(rev, c))
		}
		if emptyLo && lo == 1 && pat.MatchesAll() {
			c, _, err := r.resolveTree(1)
			if err != nil {
				return nil, err
			}
			result = append(result, toCommit(1, c))
		}

		if ascending {
			sort.Slice(result, func(i, j int) bool { return result[i].Revision < result[j].Revision })
		} else {
			sort.Slice(result, func(i, j int) bool { return result[i].Revision > result[j].Revision })
		}
		return result, nil
	})
}

func toCommit(rev int64, c *objstore.Commit) Commit {
	return Commit{
		Revision: rev,
		When:     c.When,
		Author:   c.Author,
		Summary:  c.Message.Summary,
		Detail:   c.Message.Detail,
		Markup:   c.Message.Markup,
	}
}

// Diff computes the Change map transforming the tree at the lower end of
// rr into the tree at the higher end, filtered by pattern (spec.md
// section 4.9, "diff").
func (r *Repository) Diff(ctx context.Context, rr RevisionRange, patternExpr string) (map[string]change.Change, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (map[string]change.Change, error) {
		r.mu.RLock()
		if err := r.checkOpen(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		head := r.head
		r.mu.RUnlock()

		from, to, err := normalizeRange(rr, head)
		if err != nil {
			return nil, err
		}
		lo, hi := from, to
		if from > to {
			lo, hi = to, from
		}
		pat, err := pattern.Compile(patternExpr)
		if err != nil {
			return nil, engineerr.Newf(engineerr.ChangeConflict, "malformed pattern %q: %v", patternExpr, err)
		}
		loCommit, loTree, err := r.resolveTree(lo)
		if err != nil {
			return nil, err
		}
		hiCommit, hiTree, err := r.resolveTree(hi)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			return r.cache.GetOrCompute(treeHashOrZero(loCommit), treeHashOrZero(hiCommit), patternExpr, func() (map[string]change.Change, error) {
				return diffTrees(r.store, loTree, hiTree, pat)
			})
		}
		return diffTrees(r.store, loTree, hiTree, pat)
	})
}

func treeHashOrZero(c *objstore.Commit) plumbing.Hash {
	if c == nil {
		return plumbing.Hash{}
	}
	return c.TreeHash
}

// PreviewDiff applies changes to a scratch tree derived from the tree at
// base and returns the resulting diff against base, without committing
// anything (spec.md section 4.9, "previewDiff").
func (r *Repository) PreviewDiff(ctx context.Context, base Revision, changes []change.Change) (map[string]change.Change, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (map[string]change.Change, error) {
		r.mu.RLock()
		if err := r.checkOpen(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		head := r.head
		r.mu.RUnlock()

		b, err := normalize(base, head)
		if err != nil {
			return nil, err
		}
		_, baseTree, err := r.resolveTree(b)
		if err != nil {
			return nil, err
		}
		applicator := change.New(r.store)
		scratchTree, effective, err := applicator.Apply(baseTree, changes)
		if err != nil {
			return nil, err
		}
		if effective == 0 {
			return map[string]change.Change{}, nil
		}
		return diffTrees(r.store, baseTree, scratchTree, matchAll)
	})
}

// FindLatestRevision reports the most recent revision at or after
// lastKnown whose tree differs (under pattern) from the tree at
// lastKnown, or nil if head has not moved in a way the pattern cares
// about (spec.md section 4.9, "findLatestRevision").
func (r *Repository) FindLatestRevision(ctx context.Context, lastKnown Revision, patternExpr string) (*int64, error) {
	return worker.Run(ctx, r.pool, func(ctx context.Context) (*int64, error) {
		r.mu.RLock()
		if err := r.checkOpen(); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		head := r.head
		r.mu.RUnlock()
		return r.findLatestRevisionLocked(lastKnown, head, patternExpr)
	})
}

// findLatestRevisionLocked implements the spec's fast/slow path; it may
// be called either with r.mu already read-locked (from Watch's
// double-check) or unlocked (from the public FindLatestRevision, where
// head was already sampled).
func (r *Repository) findLatestRevisionLocked(lastKnown Revision, head int64, patternExpr string) (*int64, error) {
	last, err := normalize(lastKnown, head)
	if err != nil {
		return nil, err
	}
	if last == head {
		return nil, nil
	}
	pat, err := pattern.Compile(patternExpr)
	if err != nil {
		return nil, engineerr.Newf(engineerr.ChangeConflict, "malformed pattern %q: %v", patternExpr, err)
	}

	if last == 1 {
		_, headTree, err := r.resolveTree(head)
		if err != nil {
			return nil, err
		}
		matched, _, err := findInTree(r.store, headTree, head, pat, FindOptions{FetchContent: false, MaxEntries: 1})
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			h := head
			return &h, nil
		}
		return nil, nil
	}

	_, lastTree, err := r.resolveTree(last)
	if err != nil {
		return nil, err
	}
	_, headTree, err := r.resolveTree(head)
	if err != nil {
		return nil, err
	}
	changes, err := diffTrees(r.store, lastTree, headTree, pat)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	h := head
	return &h, nil
}

// Watch blocks until a revision at or after lastKnown changes a path
// matching pattern, ctx is done, or the repository closes (spec.md
// section 4.9/4.10). Registration performs the documented double-check
// while still holding the read lock, so a commit racing the watch cannot
// be missed (spec.md section 5, "Ordering guarantees").
func (r *Repository) Watch(ctx context.Context, lastKnown Revision, patternExpr string) (int64, error) {
	r.mu.RLock()
	if err := r.checkOpen(); err != nil {
		r.mu.RUnlock()
		return 0, err
	}
	head := r.head
	already, err := r.findLatestRevisionLocked(lastKnown, head, patternExpr)
	if err != nil {
		r.mu.RUnlock()
		return 0, err
	}
	if already != nil {
		r.mu.RUnlock()
		return *already, nil
	}
	pat, err := pattern.Compile(patternExpr)
	if err != nil {
		r.mu.RUnlock()
		return 0, engineerr.Newf(engineerr.ChangeConflict, "malformed pattern %q: %v", patternExpr, err)
	}
	waiter := r.watchers.Register(pat)
	r.mu.RUnlock()

	rev, err := waiter.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		r.watchers.Cancel(waiter)
	}
	return rev, err
}
