package objstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/retzger/centraldogma/internal/plumbing"
)

const (
	objectsDir = "objects"
	refsDir    = "refs"
	headFile   = "HEAD"
	configFile = "config"
)

// Store is a filesystem-backed, content-addressed loose-object store with
// atomic ref updates. It mirrors the teacher's fileStorer/odb split
// (modules/zeta/backend/file_storer.go) but without the pack/compression
// machinery, which this engine's small JSON/text payloads never need
// (spec non-goals exclude binary blobs).
type Store struct {
	root string

	mu    sync.RWMutex
	cache map[plumbing.Hash][]byte // loose-object read cache; writes always hit disk
}

// Open returns a Store rooted at dir. The directory must already exist;
// callers creating a fresh repository use Init.
func Open(dir string) (*Store, error) {
	if fi, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("objstore: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("objstore: %s is not a directory", dir)
	}
	return &Store{root: dir, cache: make(map[plumbing.Hash][]byte)}, nil
}

// Init creates the on-disk layout for a brand-new repository at dir.
func Init(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("objstore: init: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, refsDir), 0o755); err != nil {
		return nil, fmt.Errorf("objstore: init: %w", err)
	}
	return &Store{root: dir, cache: make(map[plumbing.Hash][]byte)}, nil
}

// Root returns the store's backing directory.
func (s *Store) Root() string { return s.root }

// pathFor fans objects out two levels deep by hex prefix, exactly like
// the teacher's Join(root, oid) (modules/zeta/backend/file_storer.go),
// so no single directory ever holds more than a few hundred objects.
func (s *Store) pathFor(id plumbing.Hash) string {
	hex := id.String()
	return filepath.Join(s.root, objectsDir, hex[:2], hex[2:4], hex)
}

func (s *Store) put(id plumbing.Hash, data []byte) error {
	s.mu.Lock()
	s.cache[id] = data
	s.mu.Unlock()

	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return nil // content-addressed: identical bytes already on disk
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("objstore: put %s: %w", id, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return fmt.Errorf("objstore: put %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("objstore: put %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("objstore: put %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("objstore: put %s: %w", id, err)
	}
	return nil
}

func (s *Store) open(id plumbing.Hash) ([]byte, error) {
	s.mu.RLock()
	if data, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return data, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("objstore: open %s: %w", id, err)
	}
	s.mu.Lock()
	s.cache[id] = data
	s.mu.Unlock()
	return data, nil
}

// Exists reports whether an object with the given id is present.
func (s *Store) Exists(id plumbing.Hash) bool {
	s.mu.RLock()
	if _, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return true
	}
	s.mu.RUnlock()
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// --- refs --------------------------------------------------------------

// RefResult reports the outcome of a ref update attempt.
type RefResult int

const (
	RefNew RefResult = iota
	RefFastForward
	RefRejected
)

// refPath returns the file backing a named ref (e.g. "heads/main").
func (s *Store) refPath(name string) string {
	return filepath.Join(s.root, refsDir, name)
}

// ReadRef returns the commit id a ref currently points at, or the zero
// hash if the ref does not exist yet.
func (s *Store) ReadRef(name string) (plumbing.Hash, error) {
	data, err := os.ReadFile(s.refPath(name))
	if os.IsNotExist(err) {
		return plumbing.Hash{}, nil
	}
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("objstore: read ref %s: %w", name, err)
	}
	return plumbing.NewHash(string(data)), nil
}

// UpdateRef sets ref name to newID, but only if the ref's current value
// equals expectedOld — enforcing the "new or fast-forward, never force"
// contract from spec section 4.1. Any other observed value is RefRejected
// and the caller must treat it as a fatal Storage error (spec section
// 4.8 step 7), since it means another writer raced this one despite the
// at-most-one-writer discipline the commit pipeline is supposed to enforce.
func (s *Store) UpdateRef(name string, expectedOld, newID plumbing.Hash) (RefResult, error) {
	current, err := s.ReadRef(name)
	if err != nil {
		return RefRejected, err
	}
	if current != expectedOld {
		return RefRejected, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.refPath(name)), 0o755); err != nil {
		return RefRejected, fmt.Errorf("objstore: update ref %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.refPath(name)), "tmp-ref-*")
	if err != nil {
		return RefRejected, fmt.Errorf("objstore: update ref %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.WriteString(tmp, newID.String()); err != nil {
		tmp.Close()
		return RefRejected, fmt.Errorf("objstore: update ref %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return RefRejected, fmt.Errorf("objstore: update ref %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.refPath(name)); err != nil {
		return RefRejected, fmt.Errorf("objstore: update ref %s: %w", name, err)
	}
	if current.IsZero() {
		return RefNew, nil
	}
	return RefFastForward, nil
}

// WriteHead points the HEAD file at the given branch ref name.
func (s *Store) WriteHead(branch string) error {
	return os.WriteFile(filepath.Join(s.root, headFile), []byte(branch), 0o644)
}

// ReadHead returns the branch ref name HEAD currently points at.
func (s *Store) ReadHead() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, headFile))
	if err != nil {
		return "", fmt.Errorf("objstore: read HEAD: %w", err)
	}
	return string(data), nil
}

// --- repository format -------------------------------------------------

// Format is the on-disk layout version (spec section 3/6). V1 differs
// from V0 only in on-disk layout; this store's loose-object sharding is
// shared by both, so detection is purely a marker read/write.
type Format int

const (
	FormatV0 Format = iota
	FormatV1
)

func (s *Store) WriteFormat(f Format) error {
	return os.WriteFile(filepath.Join(s.root, configFile), []byte(fmt.Sprintf("format=%d\n", f)), 0o644)
}

func (s *Store) ReadFormat() (Format, error) {
	data, err := os.ReadFile(filepath.Join(s.root, configFile))
	if os.IsNotExist(err) {
		return FormatV0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("objstore: read format: %w", err)
	}
	var f int
	if _, err := fmt.Sscanf(string(data), "format=%d", &f); err != nil {
		return 0, fmt.Errorf("objstore: malformed format config: %w", err)
	}
	return Format(f), nil
}
