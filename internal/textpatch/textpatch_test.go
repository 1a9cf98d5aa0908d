package textpatch

import "testing"

func TestDiffApplyRoundTrip(t *testing.T) {
	old := "hello\nworld\nfoo\nbar\nbaz\n"
	new := "hello\nthere\nfoo\nbar\nqux\n"

	u := Diff(old, new, 1)
	got, err := Apply(old, u)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != new {
		t.Fatalf("got %q want %q", got, new)
	}
}

func TestDiffApplyStringAndParse(t *testing.T) {
	old := "hello\nworld\n"
	new := "hello\nworld\nextra\n"

	u := Diff(old, new, DefaultContextLines)
	text := u.String()

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := Apply(old, parsed)
	if err != nil {
		t.Fatalf("apply parsed: %v", err)
	}
	if got != new {
		t.Fatalf("got %q want %q", got, new)
	}
}

func TestApplyConflictOnStaleContext(t *testing.T) {
	old := "hello\nworld\nfoo\n"
	new := "hello\nthere\nfoo\n"
	u := Diff(old, new, DefaultContextLines)

	// A concurrent edit changed the "world" line the patch expects as
	// context/old-content; applying against it must conflict rather than
	// silently overwrite a line the patch never saw.
	staleBase := "hello\nCHANGED\nfoo\n"
	if _, err := Apply(staleBase, u); err == nil {
		t.Fatal("expected conflict when base text changed underneath the patch")
	}
}

func TestTextRoundTripHelloWorld(t *testing.T) {
	// Concrete scenario 5 from the spec: UpsertText("hello") then a text
	// patch turning it into "world".
	old := "hello\n"
	new := "world\n"
	u := Diff(old, new, DefaultContextLines)
	got, err := Apply(old, u)
	if err != nil {
		t.Fatal(err)
	}
	if got != "world\n" {
		t.Fatalf("got %q", got)
	}
}
