package doctree

import (
	"reflect"
	"strings"
	"testing"
)

func TestDocumentSetKeepsPosition(t *testing.T) {
	d := New()
	d.SetString("a", "1")
	d.SetString("b", "2")
	d.SetString("a", "3")

	if got, want := d.Keys(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if n, _ := d.Get("a"); n.Str() != "3" {
		t.Fatalf("a = %q, want 3", n.Str())
	}

	d.Delete("a")
	d.Delete("missing")
	if got, want := d.Keys(), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() after Delete = %v, want %v", got, want)
	}
}

func TestNilDocumentIsEmpty(t *testing.T) {
	var d *Document
	if d.Len() != 0 || !d.IsEmpty() || d.Keys() != nil || d.Has("x") {
		t.Fatal("nil document should behave as empty")
	}
	if !d.Equal(New()) {
		t.Fatal("nil document should equal an empty one")
	}
	if d.Clone().Len() != 0 {
		t.Fatal("Clone(nil) should be empty")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := mustParse(t, `{"a":{"b":"c"},"l":[1]}`)
	c := d.Clone()

	n, _ := c.Get("a")
	n.Doc().SetString("b", "changed")
	c.Set("l", Raw([]byte(`[2]`)))

	if !d.Equal(mustParse(t, `{"a":{"b":"c"},"l":[1]}`)) {
		t.Fatal("original changed after mutating clone")
	}
}

func TestEqualIsOrderSensitive(t *testing.T) {
	a := mustParse(t, `{"x":"1","y":"2"}`)
	b := mustParse(t, `{"y":"2","x":"1"}`)
	if a.Equal(b) {
		t.Fatal("documents with different key order should not be equal")
	}
	if !a.Equal(a.Clone()) {
		t.Fatal("document should equal its clone")
	}
}

func TestWalkVisitsStringLeavesInOrder(t *testing.T) {
	d := mustParse(t, `{"a":"1","b":{"c":"2","n":3,"d":{"e":"4"}},"f":"5"}`)

	var paths []string
	d.Walk(func(path []string, value string) {
		paths = append(paths, strings.Join(path, ".")+"="+value)
	})

	want := []string{"a=1", "b.c=2", "b.d.e=4", "f=5"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("Walk() = %v, want %v", paths, want)
	}
	if got := CountStrings(d); got != 4 {
		t.Fatalf("CountStrings() = %d, want 4", got)
	}
}

func TestObjectNilBecomesEmpty(t *testing.T) {
	n := Object(nil)
	if !n.IsObject() || n.Doc() == nil || !n.Doc().IsEmpty() {
		t.Fatalf("Object(nil) = %#v, want empty object", n)
	}
}
