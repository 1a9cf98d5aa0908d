package objstore

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/retzger/centraldogma/internal/plumbing"
)

func TestBlobRoundTrip(t *testing.T) {
	s, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.PutBlob(&Blob{Content: []byte("hello\n")})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Blob(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Content) != "hello\n" {
		t.Fatalf("got %q", got.Content)
	}
}

func TestContentAddressing(t *testing.T) {
	s, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id1, _ := s.PutBlob(&Blob{Content: []byte("same")})
	id2, _ := s.PutBlob(&Blob{Content: []byte("same")})
	if id1 != id2 {
		t.Fatalf("identical content must hash identically: %s != %s", id1, id2)
	}
}

func TestTreeEqualityAndLookup(t *testing.T) {
	s, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	blobID, _ := s.PutBlob(&Blob{Content: []byte("x")})
	tree := EmptyTree().WithEntry(TreeEntry{Name: "a.txt", Kind: EntryFile, Hash: blobID})
	id, err := s.PutTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Tree(id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(tree) {
		t.Fatal("round-tripped tree not equal")
	}
	if _, ok := got.Lookup("a.txt"); !ok {
		t.Fatal("expected a.txt entry")
	}
	if got.Equal(EmptyTree()) {
		t.Fatal("non-empty tree must not equal empty tree")
	}
}

func TestRefUpdateFastForwardOnly(t *testing.T) {
	s, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	commit1, _ := s.PutCommit(&Commit{When: time.Unix(1700000000, 0), Message: Message{Revision: 1}})
	res, err := s.UpdateRef("heads/main", plumbing.Hash{}, commit1)
	if err != nil {
		t.Fatal(err)
	}
	if res != RefNew {
		t.Fatalf("expected RefNew, got %v", res)
	}

	commit2, _ := s.PutCommit(&Commit{ParentHash: commit1, When: time.Unix(1700000001, 0), Message: Message{Revision: 2}})
	res, err = s.UpdateRef("heads/main", commit1, commit2)
	if err != nil {
		t.Fatal(err)
	}
	if res != RefFastForward {
		t.Fatalf("expected RefFastForward, got %v", res)
	}

	// A stale expected value must be rejected, never forced.
	commit3, _ := s.PutCommit(&Commit{ParentHash: commit1, When: time.Unix(1700000002, 0), Message: Message{Revision: 2}})
	res, err = s.UpdateRef("heads/main", commit1, commit3)
	if err != nil {
		t.Fatal(err)
	}
	if res != RefRejected {
		t.Fatalf("expected RefRejected for stale base, got %v", res)
	}
	head, err := s.ReadRef("heads/main")
	if err != nil {
		t.Fatal(err)
	}
	if head != commit2 {
		t.Fatal("rejected update must not move the ref")
	}
}

func TestMessageForwardCompat(t *testing.T) {
	raw := []byte(`{"summary":"hi","detail":"","markup":"PLAINTEXT","revision":3,"futureField":"kept"}`)
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"futureField":"kept"`) || !strings.Contains(string(out), `"summary":"hi"`) {
		t.Fatalf("expected unknown field preserved, got %s", out)
	}
}
