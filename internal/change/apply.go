package change

import (
	"sort"
	"strings"

	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/jsonpatch"
	"github.com/retzger/centraldogma/internal/objstore"
	"github.com/retzger/centraldogma/internal/sanitize"
	"github.com/retzger/centraldogma/internal/textpatch"
)

// Applicator mutates a flat, path-addressed working-tree cache seeded
// from a base tree and flushes it back to nested Tree/Blob objects,
// mirroring the teacher's "load once, mutate in memory, write once" odb
// usage (modules/zeta/object/tree.go) rather than re-reading the store
// for every change in the batch.
type Applicator struct {
	store *objstore.Store
}

func New(store *objstore.Store) *Applicator {
	return &Applicator{store: store}
}

// Apply applies changes, in order, to a working tree seeded from base,
// writes the resulting blobs/trees, and returns the new root tree along
// with the count of effective edits: files written, removed or moved,
// where a directory Remove or Rename counts each file under it (spec
// section 4.7: "returns the number of effective edits"). A Change whose
// preconditions are violated (e.g. removing a path that does not exist)
// fails the whole batch with ChangeConflict; nothing is written in that
// case.
func (a *Applicator) Apply(base *objstore.Tree, changes []Change) (*objstore.Tree, int, error) {
	files, err := a.loadFlat(base, "")
	if err != nil {
		return nil, 0, err
	}

	effective := 0
	for _, c := range changes {
		n, err := a.applyOne(files, c)
		if err != nil {
			return nil, 0, err
		}
		effective += n
	}

	newTree, err := a.buildTree(files)
	if err != nil {
		return nil, 0, err
	}
	return newTree, effective, nil
}

// loadFlat recursively reads base into a path -> blob-content map, keyed
// by slash-joined path without a leading slash.
func (a *Applicator) loadFlat(t *objstore.Tree, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if t == nil {
		return out, nil
	}
	for _, e := range t.Entries {
		p := joinRel(prefix, e.Name)
		switch e.Kind {
		case objstore.EntryFile:
			b, err := a.store.Blob(e.Hash)
			if err != nil {
				return nil, engineerr.Wrap(err)
			}
			out[p] = b.Content
		case objstore.EntryDir:
			sub, err := a.store.Tree(e.Hash)
			if err != nil {
				return nil, engineerr.Wrap(err)
			}
			children, err := a.loadFlat(sub, p)
			if err != nil {
				return nil, err
			}
			for k, v := range children {
				out[k] = v
			}
		}
	}
	return out, nil
}

func joinRel(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// relPath strips the leading "/" off an absolute change path.
func relPath(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (a *Applicator) applyOne(files map[string][]byte, c Change) (int, error) {
	switch c.Kind {
	case UpsertJSON:
		return a.upsertJSON(files, c.Path, c.JSON)
	case UpsertText:
		return a.upsertText(files, c.Path, c.Text)
	case Remove:
		return a.remove(files, c.Path)
	case Rename:
		return a.rename(files, c.Path, c.To)
	case ApplyJSONPatch:
		return a.applyJSONPatch(files, c.Path, c.JSONPatch)
	case ApplyTextPatch:
		return a.applyTextPatch(files, c.Path, c.UnifiedDiff)
	default:
		return 0, engineerr.New(engineerr.ChangeConflict, "unknown change kind").WithPath(c.Path)
	}
}

func (a *Applicator) upsertJSON(files map[string][]byte, path string, value any) (int, error) {
	rel := relPath(path)
	canon, err := sanitize.CanonicalJSON(value)
	if err != nil {
		return 0, engineerr.New(engineerr.ChangeConflict, "invalid JSON content").WithPath(path).WithCause(err)
	}
	if existing, ok := files[rel]; ok {
		old, err := sanitize.ParseJSON(existing)
		if err == nil {
			newVal, _ := sanitize.ParseJSON(canon)
			if sanitize.JSONEqual(old, newVal) {
				return 0, nil
			}
		}
	} else if dirConflict(files, rel) {
		return 0, engineerr.New(engineerr.ChangeConflict, "path is a directory").WithPath(path)
	}
	files[rel] = canon
	return 1, nil
}

func (a *Applicator) upsertText(files map[string][]byte, path string, text string) (int, error) {
	rel := relPath(path)
	sanitized := sanitize.Text(text)
	if existing, ok := files[rel]; ok {
		if string(existing) == sanitized {
			return 0, nil
		}
	} else if dirConflict(files, rel) {
		return 0, engineerr.New(engineerr.ChangeConflict, "path is a directory").WithPath(path)
	}
	files[rel] = []byte(sanitized)
	return 1, nil
}

func (a *Applicator) remove(files map[string][]byte, path string) (int, error) {
	rel := relPath(path)
	if _, ok := files[rel]; ok {
		delete(files, rel)
		return 1, nil
	}
	prefix := rel + "/"
	var toRemove []string
	for k := range files {
		if strings.HasPrefix(k, prefix) {
			toRemove = append(toRemove, k)
		}
	}
	if len(toRemove) == 0 {
		return 0, engineerr.New(engineerr.ChangeConflict, "no such file or directory").WithPath(path)
	}
	for _, k := range toRemove {
		delete(files, k)
	}
	return len(toRemove), nil
}

func (a *Applicator) rename(files map[string][]byte, from, to string) (int, error) {
	relFrom, relTo := relPath(from), relPath(to)
	if relFrom == relTo {
		return 0, nil
	}
	if content, ok := files[relFrom]; ok {
		if _, clash := files[relTo]; clash {
			return 0, engineerr.New(engineerr.ChangeConflict, "rename target already exists").WithPath(to)
		}
		if dirConflict(files, relTo) {
			return 0, engineerr.New(engineerr.ChangeConflict, "rename target is a directory").WithPath(to)
		}
		delete(files, relFrom)
		files[relTo] = content
		return 1, nil
	}

	fromPrefix := relFrom + "/"
	var moved []string
	for k := range files {
		if strings.HasPrefix(k, fromPrefix) {
			moved = append(moved, k)
		}
	}
	if len(moved) == 0 {
		return 0, engineerr.New(engineerr.ChangeConflict, "no such file or directory").WithPath(from)
	}
	toPrefix := relTo + "/"
	for _, k := range moved {
		dest := toPrefix + strings.TrimPrefix(k, fromPrefix)
		if _, clash := files[dest]; clash {
			return 0, engineerr.New(engineerr.ChangeConflict, "rename target already exists").WithPath(dest)
		}
	}
	for _, k := range moved {
		dest := toPrefix + strings.TrimPrefix(k, fromPrefix)
		files[dest] = files[k]
		delete(files, k)
	}
	return len(moved), nil
}

func (a *Applicator) applyJSONPatch(files map[string][]byte, path string, ops []jsonpatch.Op) (int, error) {
	rel := relPath(path)
	var old any
	if existing, ok := files[rel]; ok {
		v, err := sanitize.ParseJSON(existing)
		if err != nil {
			return 0, engineerr.New(engineerr.ChangeConflict, "existing content is not valid JSON").WithPath(path).WithCause(err)
		}
		old = v
	}
	newVal, err := jsonpatch.Apply(old, ops)
	if err != nil {
		return 0, engineerr.New(engineerr.ChangeConflict, "patch does not apply").WithPath(path).WithCause(err)
	}
	canon, err := sanitize.CanonicalJSON(newVal)
	if err != nil {
		return 0, engineerr.New(engineerr.ChangeConflict, "patch result is not valid JSON").WithPath(path).WithCause(err)
	}
	if existing, ok := files[rel]; ok && sanitize.JSONEqual(mustParse(existing), newVal) {
		return 0, nil
	}
	files[rel] = canon
	return 1, nil
}

func mustParse(raw []byte) any {
	v, _ := sanitize.ParseJSON(raw)
	return v
}

func (a *Applicator) applyTextPatch(files map[string][]byte, path string, diffText string) (int, error) {
	rel := relPath(path)
	old := ""
	if existing, ok := files[rel]; ok {
		old = string(existing)
	}
	patch, err := textpatch.Parse(diffText)
	if err != nil {
		return 0, engineerr.New(engineerr.ChangeConflict, "malformed unified diff").WithPath(path).WithCause(err)
	}
	applied, err := textpatch.Apply(old, patch)
	if err != nil {
		return 0, engineerr.New(engineerr.ChangeConflict, "patch does not apply").WithPath(path).WithCause(err)
	}
	sanitized := sanitize.Text(applied)
	if sanitized == old {
		return 0, nil
	}
	files[rel] = []byte(sanitized)
	return 1, nil
}

// dirConflict reports whether rel is already occupied by a directory,
// i.e. some other file exists at rel+"/...".
func dirConflict(files map[string][]byte, rel string) bool {
	prefix := rel + "/"
	for k := range files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// buildTree rebuilds a nested Tree from a flat path -> content map,
// writing one Blob per file and one Tree per directory level. Directories
// with no surviving files simply never get an entry, which is how Remove
// of the last file under a directory makes the directory disappear.
func (a *Applicator) buildTree(files map[string][]byte) (*objstore.Tree, error) {
	return a.buildSubtree(files)
}

func (a *Applicator) buildSubtree(files map[string][]byte) (*objstore.Tree, error) {
	direct := make(map[string][]byte)
	groups := make(map[string]map[string][]byte)

	for path, content := range files {
		if idx := strings.IndexByte(path, '/'); idx >= 0 {
			top, rest := path[:idx], path[idx+1:]
			if groups[top] == nil {
				groups[top] = make(map[string][]byte)
			}
			groups[top][rest] = content
		} else {
			direct[path] = content
		}
	}

	tree := objstore.EmptyTree()

	names := make([]string, 0, len(direct))
	for name := range direct {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, err := a.store.PutBlob(&objstore.Blob{Content: direct[name]})
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		tree = tree.WithEntry(objstore.TreeEntry{Name: name, Kind: objstore.EntryFile, Hash: id})
	}

	dirNames := make([]string, 0, len(groups))
	for name := range groups {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	for _, name := range dirNames {
		sub, err := a.buildSubtree(groups[name])
		if err != nil {
			return nil, err
		}
		id, err := a.store.PutTree(sub)
		if err != nil {
			return nil, engineerr.Wrap(err)
		}
		tree = tree.WithEntry(objstore.TreeEntry{Name: name, Kind: objstore.EntryDir, Hash: id})
	}

	return tree, nil
}
