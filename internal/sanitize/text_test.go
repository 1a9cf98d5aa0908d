package sanitize

import "testing"

func TestTextIdempotent(t *testing.T) {
	cases := []string{"", "hello", "hello\n", "hello\r\n", "a\r\nb\r\n", "a\nb"}
	for _, c := range cases {
		once := Text(c)
		twice := Text(once)
		if once != twice {
			t.Errorf("sanitize not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestTextTrailingNewline(t *testing.T) {
	if got := Text("hello"); got != "hello\n" {
		t.Errorf("got %q, want trailing newline", got)
	}
	if got := Text(""); got != "" {
		t.Errorf("empty text must stay empty, got %q", got)
	}
	if got := Text("a\r\nb"); got != "a\nb\n" {
		t.Errorf("got %q", got)
	}
}
