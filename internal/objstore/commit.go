package objstore

import (
	"encoding/json"
	"time"

	"github.com/retzger/centraldogma/internal/plumbing"
)

// Markup selects how a commit's Detail field should be rendered
// (spec section 3).
type Markup string

const (
	MarkupPlaintext Markup = "PLAINTEXT"
	MarkupMarkdown  Markup = "MARKDOWN"
)

// Author identifies who authored a commit (spec section 3). UnknownAuthor
// is the sentinel for commits lacking a committer identity.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnknownAuthor is used when no committer identity is available.
var UnknownAuthor = Author{Name: "Unknown", Email: "unknown@localhost"}

// Message is the JSON document encoded as a commit's message (spec
// section 3 and section 6 "Commit message format"). Unknown fields
// present on a commit authored by a prior engine version are preserved
// verbatim across decode/re-encode (SPEC_FULL supplement 2).
type Message struct {
	Summary  string          `json:"summary"`
	Detail   string          `json:"detail"`
	Markup   Markup          `json:"markup"`
	Revision int64           `json:"revision"`
	Extra    json.RawMessage `json:"-"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	base := map[string]any{
		"summary":  m.Summary,
		"detail":   m.Detail,
		"markup":   m.Markup,
		"revision": m.Revision,
	}
	if len(m.Extra) > 0 {
		var extra map[string]json.RawMessage
		if err := json.Unmarshal(m.Extra, &extra); err == nil {
			for k, v := range extra {
				if _, known := base[k]; !known {
					base[k] = v
				}
			}
		}
	}
	return json.Marshal(base)
}

func (m *Message) UnmarshalJSON(b []byte) error {
	type alias struct {
		Summary  string `json:"summary"`
		Detail   string `json:"detail"`
		Markup   Markup `json:"markup"`
		Revision int64  `json:"revision"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	m.Summary, m.Detail, m.Markup, m.Revision = a.Summary, a.Detail, a.Markup, a.Revision
	m.Extra = append([]byte(nil), b...)
	return nil
}

// Commit is one immutable point in a repository's history (spec section 3).
type Commit struct {
	TreeHash   plumbing.Hash `json:"tree"`
	ParentHash plumbing.Hash `json:"parent"`
	Author     Author        `json:"author"`
	When       time.Time     `json:"when"`
	Message    Message       `json:"message"`
}

// HasParent reports whether this is not the repository's initial commit.
func (c *Commit) HasParent() bool { return !c.ParentHash.IsZero() }

// PutCommit stores c and returns its content hash (the commit id).
func (s *Store) PutCommit(c *Commit) (plumbing.Hash, error) {
	// Timestamps are truncated to whole seconds to match the on-disk
	// commit encoding (spec section 4.8).
	c.When = c.When.Truncate(time.Second)
	id, data, err := encode(KindCommit, c)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if err := s.put(id, data); err != nil {
		return plumbing.Hash{}, err
	}
	return id, nil
}

// Commit reads back a previously stored commit.
func (s *Store) Commit(id plumbing.Hash) (*Commit, error) {
	data, err := s.open(id)
	if err != nil {
		return nil, err
	}
	kind, body, err := decode(data)
	if err != nil {
		return nil, err
	}
	if kind != KindCommit {
		return nil, kindMismatch(KindCommit, kind)
	}
	var c Commit
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
