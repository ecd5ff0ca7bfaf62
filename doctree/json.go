package doctree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNotObject is returned by Parse when the top-level JSON value is not an object.
	ErrNotObject = errors.New("top-level value is not a JSON object")
	// ErrInvalidUTF8 is returned by Parse for input that is not valid UTF-8.
	// The decoder would otherwise replace such bytes with U+FFFD.
	ErrInvalidUTF8 = errors.New("document is not valid UTF-8")
)

// Parse decodes a JSON object into a Document, preserving key order.
// Duplicate keys keep their first position and their last value.
func Parse(data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	doc, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	if dec.InputOffset() != int64(len(trimmed)) {
		return nil, fmt.Errorf("unexpected data after top-level object at offset %d", dec.InputOffset())
	}
	return doc, nil
}

// decodeObject reads an object from dec. The opening brace has not been
// consumed yet.
func decodeObject(dec *json.Decoder) (*Document, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected {, got %v", t)
	}

	doc := New()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value for key %q: %w", key, err)
		}
		n, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", key, err)
		}
		doc.Set(key, n)
	}

	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeValue(raw json.RawMessage) (Node, error) {
	switch raw[0] {
	case '{':
		sub, err := decodeObject(json.NewDecoder(bytes.NewReader(raw)))
		if err != nil {
			return Node{}, err
		}
		return Object(sub), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Node{}, err
		}
		return String(s), nil
	default:
		return Raw(raw), nil
	}
}

// Marshal encodes the document as JSON with 2-space indentation, keys in
// document order and a trailing newline. HTML characters are not escaped.
func Marshal(d *Document) ([]byte, error) {
	var b bytes.Buffer
	if err := writeObject(&b, d, ""); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

const indentUnit = "  "

func writeObject(b *bytes.Buffer, d *Document, indent string) error {
	keys := d.Keys()
	if len(keys) == 0 {
		b.WriteString("{}")
		return nil
	}

	inner := indent + indentUnit
	b.WriteString("{\n")
	for i, k := range keys {
		n, _ := d.Get(k)
		b.WriteString(inner)
		b.WriteString(jsonString(k))
		b.WriteString(": ")
		if err := writeNode(b, n, inner); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		if i < len(keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(indent)
	b.WriteByte('}')
	return nil
}

func writeNode(b *bytes.Buffer, n Node, indent string) error {
	switch n.Kind() {
	case KindString:
		b.WriteString(jsonString(n.Str()))
	case KindObject:
		return writeObject(b, n.Doc(), indent)
	default:
		raw := n.RawJSON()
		if len(raw) == 0 {
			b.WriteString("null")
			return nil
		}
		var out bytes.Buffer
		if err := json.Indent(&out, raw, indent, indentUnit); err != nil {
			return err
		}
		b.Write(out.Bytes())
	}
	return nil
}

// jsonString returns s as a JSON string literal without HTML escaping.
func jsonString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Encoding a string never fails.
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
