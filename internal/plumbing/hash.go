// Package plumbing holds the low-level, content-addressing primitives
// shared by the object store, the commit-id index, and the ref files.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	// HashSize is the length in bytes of a content hash.
	HashSize = 32
	// HashHexSize is the length of a hash's hex-encoded string form.
	HashHexSize = HashSize * 2
)

// Hash is a BLAKE3 content digest identifying a blob, tree, or commit.
type Hash [HashSize]byte

// ZeroHash is the sentinel for "no object" (e.g. a commit with no parent).
var ZeroHash Hash

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}

// NewHash decodes a hex string into a Hash, ignoring malformed input (the
// caller is expected to have validated it, mirroring plumbing.NewHash in
// the object-store teacher package).
func NewHash(s string) Hash {
	var h Hash
	b, _ := hex.DecodeString(s)
	copy(h[:], b)
	return h
}

// ValidateHashHex reports whether s could be a hex-encoded Hash.
func ValidateHashHex(s string) bool {
	if len(s) != HashHexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashesSort sorts hashes in increasing byte order.
func HashesSort(a []Hash) {
	sort.Slice(a, func(i, j int) bool { return bytes.Compare(a[i][:], a[j][:]) < 0 })
}

// Hasher wraps the BLAKE3 hash.Hash so callers never import the algorithm
// package directly; swapping the digest algorithm touches one file.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

// Sum computes the Hash of b in one call.
func Sum(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
