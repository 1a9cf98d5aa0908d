package repository

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/pattern"
	"github.com/retzger/centraldogma/internal/plumbing"
	"github.com/retzger/centraldogma/internal/revindex"
	"github.com/retzger/centraldogma/internal/watch"
	"github.com/retzger/centraldogma/internal/worker"
)

const (
	refName       = "heads/main"
	indexFileName = "commit-index"
)

// matchAll is the pattern used wherever an operation needs "every path",
// e.g. computing the full set of changed paths to hand to the watcher
// registry.
var matchAll = pattern.MustCompile("/**")

// Repository is a single versioned configuration tree: an object store,
// a dense revision index, a watcher registry, and the read-write lock
// coordinating them (spec.md section 3, "Repository").
type Repository struct {
	project, name string
	dir           string

	store    *objstore.Store
	index    *revindex.Index
	watchers *watch.Registry
	pool     *worker.Pool
	cache    *DiffCache
	log      *logrus.Entry

	shutdownTimeout time.Duration
	creationAuthor  Author

	mu     sync.RWMutex
	head   int64
	format objstore.Format
	cause  error // non-nil once Close has begun; all operations fail fast with it
}

// Create initializes storage at dir, writes an initial commit (empty
// unless initialChanges is non-empty), and installs the commit-id index
// (spec.md section 4.11, "Create"). If any step fails the partially
// created directory is removed.
func Create(dir, project, name string, cfg Config, initialChanges []change.Change, summary, detail string) (*Repository, error) {
	cfg = cfg.withDefaults()

	r, err := create(dir, project, name, cfg)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	_, _, err = r.appendCommitLocked(initialChanges, cfg.CreationAuthor, time.Now(), summary, detail, MarkupPlaintext, true)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if err := r.store.WriteHead(refName); err != nil {
		_ = os.RemoveAll(dir)
		return nil, engineerr.Wrap(err)
	}
	return r, nil
}

func create(dir, project, name string, cfg Config) (*Repository, error) {
	store, err := objstore.Init(dir)
	if err != nil {
		return nil, engineerr.Wrap(err)
	}
	if err := store.WriteFormat(objstore.FormatV1); err != nil {
		return nil, engineerr.Wrap(err)
	}
	idx, err := revindex.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, engineerr.Wrap(err)
	}
	return &Repository{
		project:         project,
		name:            name,
		dir:             dir,
		store:           store,
		index:           idx,
		watchers:        watch.New(),
		pool:            cfg.Pool,
		cache:           cfg.Cache,
		log:             cfg.Log.WithFields(logrus.Fields{"project": project, "repo": name}),
		shutdownTimeout: cfg.ShutdownTimeout,
		creationAuthor:  cfg.CreationAuthor,
		format:          objstore.FormatV1,
	}, nil
}

// CreateEmpty creates a repository with no initial content, using the
// engine's conventional message for a repository's very first commit.
func CreateEmpty(dir, project, name string, cfg Config) (*Repository, error) {
	return Create(dir, project, name, cfg, nil, "Create a new repository", "")
}

// Open validates an existing repository: detects its format version,
// confirms head resolves to a commit whose extracted revision matches the
// index's last entry, and rebuilds the index from the commit log if not
// (spec.md section 4.11, "Open").
func Open(dir, project, name string, cfg Config) (*Repository, error) {
	cfg = cfg.withDefaults()

	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, engineerr.New(engineerr.RepositoryNotFound, "no repository at "+dir)
	}

	store, err := objstore.Open(dir)
	if err != nil {
		return nil, engineerr.New(engineerr.RepositoryNotFound, "no repository at "+dir).WithCause(err)
	}
	format, err := store.ReadFormat()
	if err != nil {
		return nil, engineerr.Wrap(err)
	}
	idx, err := revindex.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, engineerr.Wrap(err)
	}

	r := &Repository{
		project:         project,
		name:            name,
		dir:             dir,
		store:           store,
		index:           idx,
		watchers:        watch.New(),
		pool:            cfg.Pool,
		cache:           cfg.Cache,
		log:             cfg.Log.WithFields(logrus.Fields{"project": project, "repo": name}),
		shutdownTimeout: cfg.ShutdownTimeout,
		creationAuthor:  cfg.CreationAuthor,
		format:          format,
	}

	if err := r.validateOrRebuildIndex(); err != nil {
		return nil, err
	}
	return r, nil
}

// validateOrRebuildIndex checks that HEAD resolves to a commit whose
// encoded revision matches the index's last entry, rebuilding the index
// from the commit log when it doesn't (spec.md section 4.11).
func (r *Repository) validateOrRebuildIndex() error {
	headID, err := r.store.ReadRef(refName)
	if err != nil {
		return engineerr.Wrap(err)
	}
	if headID.IsZero() {
		r.head = 0
		return nil
	}
	headCommit, err := r.store.Commit(headID)
	if err != nil {
		return engineerr.Wrap(err)
	}
	indexHead := r.index.Head()
	if indexID, ok := r.index.Get(indexHead); ok && indexID == headID && indexHead == headCommit.Message.Revision {
		r.head = indexHead
		return nil
	}

	r.log.Warn("commit index inconsistent with HEAD, rebuilding from commit log")
	chain, err := walkCommitChain(r.store, headID)
	if err != nil {
		return err
	}
	if err := r.index.RebuildFrom(chain); err != nil {
		return engineerr.Wrap(err)
	}
	r.head = headCommit.Message.Revision
	return nil
}

// walkCommitChain follows parent links from head back to the initial
// commit and returns commit ids in ascending revision order.
func walkCommitChain(store *objstore.Store, head plumbing.Hash) ([]plumbing.Hash, error) {
	var descending []plumbing.Hash
	cur := head
	for !cur.IsZero() {
		c, err := store.Commit(cur)
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		descending = append(descending, cur)
		cur = c.ParentHash
	}
	ascending := make([]plumbing.Hash, len(descending))
	for i, id := range descending {
		ascending[len(descending)-1-i] = id
	}
	return ascending, nil
}

// Close is idempotent: the first caller installs a failure-cause
// sentinel that subsequent operations see and fail fast on, then drains
// in-flight operations by taking the exclusive write lock (bounded by
// shutdownTimeout, after which it gives up waiting and proceeds anyway),
// and finally notifies every pending watcher with the supplied cause
// (spec.md section 4.11, "Close").
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.cause != nil {
		r.mu.Unlock()
		return nil
	}
	r.cause = engineerr.New(engineerr.ShuttingDown, "repository closed")
	cause := r.cause
	r.mu.Unlock()

	r.drain()
	r.watchers.Shutdown(cause)
	r.log.Info("repository closed")
	return nil
}

// drain waits for any operation already holding r.mu (reader or the
// commit pipeline's writer) to finish, up to shutdownTimeout, so Close
// does not yank the object store out from under in-flight work.
// Acquiring the lock itself is the signal that every prior holder has
// released it; there's nothing further to do once acquired, since new
// operations observe r.cause and return before taking the lock for real
// work.
func (r *Repository) drain() {
	acquired := make(chan struct{})
	go func() {
		r.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		r.mu.Unlock()
	case <-time.After(r.shutdownTimeout):
		r.log.Warn("graceful shutdown timed out waiting for in-flight operations to drain")
	}
}

func (r *Repository) checkOpen() error {
	if r.cause != nil {
		return r.cause
	}
	return nil
}
