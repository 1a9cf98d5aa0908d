// Package repository ties the engine's components (C1-C11) together into
// the public surface from spec.md section 6: a single Repository type
// whose methods each dispatch blocking work onto a bounded worker pool
// and return once the work completes or the caller's context is done —
// the Go rendition of "operations return futures" (spec.md section 5).
package repository

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/worker"
)

// Revision is a signed integer: positive values are absolute (1 is the
// initial commit), non-positive values are relative to head (0 and -1
// both denote HEAD, -2 the parent of HEAD, and so on).
type Revision int64

// HeadRevision is the canonical spelling of "whatever head currently is".
const HeadRevision Revision = 0

// RevisionRange is an ordered (from, to) pair as given by the caller;
// history/diff canonicalize internally but remember whether the caller
// asked for an ascending or descending view.
type RevisionRange struct {
	From, To Revision
}

// EntryType is the kind of content an Entry carries, derived from its
// path suffix (spec.md section 3): ".json" is JSON, everything else is
// TEXT; directories carry no content.
type EntryType int

const (
	EntryTypeJSON EntryType = iota + 1
	EntryTypeText
	EntryTypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeJSON:
		return "JSON"
	case EntryTypeText:
		return "TEXT"
	case EntryTypeDirectory:
		return "DIRECTORY"
	default:
		return "UNKNOWN"
	}
}

// entryTypeForPath derives an EntryType from a file path's suffix.
func entryTypeForPath(path string) EntryType {
	if hasJSONSuffix(path) {
		return EntryTypeJSON
	}
	return EntryTypeText
}

func hasJSONSuffix(path string) bool {
	return len(path) >= 5 && path[len(path)-5:] == ".json"
}

// Entry is one path's content as of a specific revision (spec.md
// section 3).
type Entry struct {
	Revision int64
	Path     string
	Type     EntryType
	Content  any // JSON tree for EntryTypeJSON, string for EntryTypeText, nil for directory
}

// FindOptions configures Find (spec.md section 4.9). The zero value
// disables content fetching; use DefaultFindOptions for the spec's
// documented default of fetchContent=true.
type FindOptions struct {
	// FetchContent controls whether matched entries carry content.
	FetchContent bool
	// MaxEntries caps the number of entries returned; 0 means unlimited.
	MaxEntries int
}

// DefaultFindOptions returns the spec's documented default: content
// fetched, no cap.
func DefaultFindOptions() FindOptions {
	return FindOptions{FetchContent: true}
}

// Author identifies who authored a commit.
type Author = objstore.Author

// UnknownAuthor is the sentinel for commits lacking a committer identity.
var UnknownAuthor = objstore.UnknownAuthor

// Markup selects how a commit's Detail field renders.
type Markup = objstore.Markup

const (
	MarkupPlaintext = objstore.MarkupPlaintext
	MarkupMarkdown  = objstore.MarkupMarkdown
)

// Commit is the public, decoded view of one point in history.
type Commit struct {
	Revision int64
	When     time.Time
	Author   Author
	Summary  string
	Detail   string
	Markup   Markup
}

// Change re-exports the internal change-applicator's Change type; the
// query engine's diff/previewDiff operations return maps of these keyed
// by affected path (spec.md section 4.9).
type Change = change.Change

// Config configures repository creation/opening (spec.md section 6,
// "Environment/configuration hooks"): the engine reads no files or
// environment variables itself.
type Config struct {
	// Pool is the worker pool blocking operations dispatch onto. If nil,
	// a pool sized for light concurrent use is created.
	Pool *worker.Pool
	// Cache is an optional shared (treeA, treeB) -> diff cache (spec.md
	// section 5, "Caching"). If nil, diffs are always recomputed.
	Cache *DiffCache
	// ShutdownTimeout bounds how long Close waits for in-flight
	// operations to drain before proceeding anyway.
	ShutdownTimeout time.Duration
	// CreationAuthor is the author recorded on the initial commit written
	// by Create.
	CreationAuthor Author
	// Log receives structured log entries; defaults to a standard logrus
	// logger at Info level when nil.
	Log *logrus.Entry
}

func (c Config) withDefaults() Config {
	if c.Pool == nil {
		c.Pool = worker.New(8)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.CreationAuthor == (Author{}) {
		c.CreationAuthor = UnknownAuthor
	}
	if c.Log == nil {
		c.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}
