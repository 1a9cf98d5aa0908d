package objstore

import (
	"encoding/json"

	"github.com/retzger/centraldogma/internal/plumbing"
)

// Blob holds exactly one file's content: sanitized text, or canonical JSON
// bytes. The store never interprets the bytes; entry Type (spec section 3)
// decides how a caller parses them.
type Blob struct {
	Content []byte `json:"content"`
}

// PutBlob stores b and returns its content hash.
func (s *Store) PutBlob(b *Blob) (plumbing.Hash, error) {
	id, data, err := encode(KindBlob, b)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if err := s.put(id, data); err != nil {
		return plumbing.Hash{}, err
	}
	return id, nil
}

// Blob reads back a previously stored blob.
func (s *Store) Blob(id plumbing.Hash) (*Blob, error) {
	data, err := s.open(id)
	if err != nil {
		return nil, err
	}
	kind, body, err := decode(data)
	if err != nil {
		return nil, err
	}
	if kind != KindBlob {
		return nil, kindMismatch(KindBlob, kind)
	}
	var b Blob
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
