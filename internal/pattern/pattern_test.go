package pattern

import "testing"

func TestMatchBasics(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/**", "/a/b.json", true},
		{"/test/**", "/test/test3.json", true},
		{"/test/**", "/other/test3.json", false},
		{"/test/test4.json", "/test/test4.json", true},
		{"/test/test4.json", "/test/test3.json", false},
		{"*.json", "/a/b/c.json", true},
		{"*.json", "/a/b/c.txt", false},
		{"/a/*/c.json", "/a/b/c.json", true},
		{"/a/*/c.json", "/a/b/d/c.json", false},
		{"/a/**/c.json", "/a/b/d/c.json", true},
		{"/a/**/c.json", "/a/c.json", true},
		{"/x/**,/y/**", "/y/z.txt", true},
		{"/x/**,/y/**", "/z/z.txt", false},
	}
	for _, c := range cases {
		p, err := Compile(c.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", c.pattern, err)
		}
		if got := p.Match(c.path); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatchesAllShortcut(t *testing.T) {
	p := MustCompile("/**")
	if !p.MatchesAll() {
		t.Fatal("expected MatchesAll")
	}
	p2 := MustCompile("/test/**")
	if p2.MatchesAll() {
		t.Fatal("did not expect MatchesAll")
	}
}

func TestCursorPruning(t *testing.T) {
	p := MustCompile("/test/**")
	root := p.NewCursor()
	if root.Matches() {
		t.Fatal("root should not match yet")
	}
	if !root.CanDescend() {
		t.Fatal("root should allow descending")
	}

	other := root.Descend("other")
	if other.CanDescend() {
		t.Fatal("unrelated subtree should be prunable")
	}

	test := root.Descend("test")
	if !test.Matches() {
		t.Fatal("/test should match /test/**")
	}
	if !test.CanDescend() {
		t.Fatal("/test should allow descending further")
	}

	leaf := test.Descend("a.json")
	if !leaf.Matches() {
		t.Fatal("/test/a.json should match /test/**")
	}
}

func TestPatternMonotonicity(t *testing.T) {
	// P1 ⊆ P2 per spec invariant 5.
	p1 := MustCompile("/test/test3.json")
	p2 := MustCompile("/test/**")
	paths := []string{"/test/test3.json", "/test/other.json", "/unrelated"}
	for _, path := range paths {
		if p1.Match(path) && !p2.Match(path) {
			t.Errorf("pattern monotonicity violated for %q", path)
		}
	}
}
