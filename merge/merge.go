// Package merge implements non-destructive merging of translated entries
// into an existing localized document.
package merge

import (
	"github.com/minios-linux/transdiff/doctree"
)

// DeepMerge returns a new document combining target with updates.
// - Keys only present in target are kept unchanged, in place.
// - Keys present in both where both values are objects are merged recursively.
// - Any other key from updates replaces the target value, or is appended
//   after the existing keys if target lacks it.
//
// Neither input is modified.
func DeepMerge(target, updates *doctree.Document) *doctree.Document {
	result := target.Clone()

	for _, key := range updates.Keys() {
		value, _ := updates.Get(key)
		existing, ok := result.Get(key)

		if ok && existing.IsObject() && value.IsObject() {
			result.Set(key, doctree.Object(DeepMerge(existing.Doc(), value.Doc())))
			continue
		}
		result.Set(key, value.Clone())
	}

	return result
}
