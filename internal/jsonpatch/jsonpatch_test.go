package jsonpatch

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateAndApplyRoundTrip(t *testing.T) {
	var old, newv any
	mustUnmarshal(t, `{"a":1,"b":{"c":2},"d":[1,2,3]}`, &old)
	mustUnmarshal(t, `{"a":1,"b":{"c":3},"d":[1,2,3,4],"e":"new"}`, &newv)

	ops := Generate(old, newv, RFC)
	got, err := Apply(old, ops)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(newv)
	if string(gotJSON) != string(wantJSON) {
		t.Fatalf("round trip mismatch: got %s want %s", gotJSON, wantJSON)
	}
}

func TestSafeModeEmitsTest(t *testing.T) {
	var old, newv any
	mustUnmarshal(t, `{"a":1}`, &old)
	mustUnmarshal(t, `{"a":2}`, &newv)
	ops := Generate(old, newv, Safe)
	if len(ops) != 2 || ops[0].Op != "test" || ops[1].Op != "replace" {
		t.Fatalf("expected test+replace, got %+v", ops)
	}
}

func TestApplyTestFailureIsError(t *testing.T) {
	var doc any
	mustUnmarshal(t, `{"a":1}`, &doc)
	_, err := Apply(doc, []Op{{Op: "test", Path: "/a", Value: float64(2)}})
	if err == nil {
		t.Fatal("expected test failure")
	}
}

func TestPointerAndJSONPath(t *testing.T) {
	var doc any
	mustUnmarshal(t, `{"a":{"b":[10,20,30]}}`, &doc)
	v, err := Pointer(doc, "/a/b/1")
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := v.(json.Number); !ok || n.String() != "20" {
		t.Fatalf("got %v", v)
	}

	first, ok := EvaluateFirst(doc, "$.a.b[2]")
	if !ok {
		t.Fatal("expected jsonpath match")
	}
	if n, ok := first.(json.Number); !ok || n.String() != "30" {
		t.Fatalf("got %v", first)
	}
}

func mustUnmarshal(t *testing.T, s string, v any) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		t.Fatalf("unmarshal %q: %v", s, err)
	}
}
