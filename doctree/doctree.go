// Package doctree implements the document model used for localized JSON
// resource files: an ordered tree of string leaves, nested objects and
// opaque raw JSON values.
//
// A resource file looks like:
//
//	{
//	  "title": "Settings",
//	  "menu": {
//	    "open": "Open",
//	    "close": ""
//	  },
//	  "version": 3
//	}
//
// String leaves are the translatable text. Objects nest. Anything else
// (numbers, booleans, null, arrays) is kept verbatim and never translated.
// Key order from the source file is preserved on round-trip so that
// rewritten files produce minimal diffs in version control.
package doctree

import (
	"bytes"
	"encoding/json"
)

// Kind identifies which variant a Node holds.
type Kind int

const (
	// KindString is a translatable string leaf.
	KindString Kind = iota
	// KindObject is a nested document.
	KindObject
	// KindRaw is any other JSON value, kept as compact raw JSON.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return "raw"
	}
}

// Node is a single value in a document tree.
type Node struct {
	kind Kind
	str  string
	obj  *Document
	raw  json.RawMessage
}

// String returns a string leaf node.
func String(s string) Node {
	return Node{kind: KindString, str: s}
}

// Object returns a node wrapping a nested document.
// A nil document is replaced with an empty one.
func Object(d *Document) Node {
	if d == nil {
		d = New()
	}
	return Node{kind: KindObject, obj: d}
}

// Raw returns an opaque node holding the given JSON value.
// The bytes are compacted; invalid JSON is stored as-is.
func Raw(data []byte) Node {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Node{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
	}
	return Node{kind: KindRaw, raw: json.RawMessage(buf.Bytes())}
}

// Kind reports the node variant.
func (n Node) Kind() Kind { return n.kind }

// IsString reports whether the node is a string leaf.
func (n Node) IsString() bool { return n.kind == KindString }

// IsObject reports whether the node is a nested document.
func (n Node) IsObject() bool { return n.kind == KindObject }

// Str returns the string value of a string leaf, or "" for other kinds.
func (n Node) Str() string { return n.str }

// Doc returns the nested document of an object node, or nil.
func (n Node) Doc() *Document { return n.obj }

// RawJSON returns the raw JSON of a raw node, or nil.
func (n Node) RawJSON() json.RawMessage { return n.raw }

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	switch n.kind {
	case KindObject:
		return Node{kind: KindObject, obj: n.obj.Clone()}
	case KindRaw:
		return Node{kind: KindRaw, raw: append(json.RawMessage(nil), n.raw...)}
	default:
		return n
	}
}

// Equal reports whether two nodes are structurally identical.
// Key order inside objects is significant.
func (n Node) Equal(o Node) bool {
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case KindString:
		return n.str == o.str
	case KindObject:
		return n.obj.Equal(o.obj)
	default:
		return bytes.Equal(n.raw, o.raw)
	}
}

// Document is an ordered mapping from keys to nodes.
// The zero value is not usable; call New. A nil *Document behaves as an
// empty, read-only document.
type Document struct {
	keys   []string
	values map[string]Node
}

// New returns an empty document.
func New() *Document {
	return &Document{values: make(map[string]Node)}
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// IsEmpty reports whether the document has no keys.
func (d *Document) IsEmpty() bool {
	return d.Len() == 0
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the node stored under key.
func (d *Document) Get(key string) (Node, bool) {
	if d == nil {
		return Node{}, false
	}
	n, ok := d.values[key]
	return n, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set stores n under key. A new key is appended after the existing ones;
// an existing key keeps its position.
func (d *Document) Set(key string, n Node) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = n
}

// SetString is shorthand for Set(key, String(s)).
func (d *Document) SetString(key, s string) {
	d.Set(key, String(s))
}

// Delete removes key from the document.
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := New()
	if d == nil {
		return out
	}
	out.keys = make([]string, len(d.keys))
	copy(out.keys, d.keys)
	for k, v := range d.values {
		out.values[k] = v.Clone()
	}
	return out
}

// Equal reports whether both documents hold the same keys, in the same
// order, with equal values. Two empty documents are equal regardless of nil.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, k := range d.Keys() {
		if o.keys[i] != k {
			return false
		}
		if !d.values[k].Equal(o.values[k]) {
			return false
		}
	}
	return true
}

// Walk calls fn for every string leaf in document order with the path of
// keys leading to it.
func (d *Document) Walk(fn func(path []string, value string)) {
	d.walk(nil, fn)
}

func (d *Document) walk(prefix []string, fn func([]string, string)) {
	for _, k := range d.Keys() {
		n := d.values[k]
		path := append(append([]string(nil), prefix...), k)
		switch n.kind {
		case KindString:
			fn(path, n.str)
		case KindObject:
			n.obj.walk(path, fn)
		}
	}
}

// CountStrings returns the number of string leaves in the tree.
func CountStrings(d *Document) int {
	count := 0
	d.Walk(func([]string, string) { count++ })
	return count
}
