package doctree

// FindMissingOrUntranslated returns the subset of base that target lacks.
//
// A key of base is reported when it is absent from target, when both sides
// are objects and the nested comparison finds something, or when the base
// value is a string and the target value is not a string or is empty.
// Reported values are deep copies of the base values. Keys only present in
// target are ignored. The result follows base key order.
func FindMissingOrUntranslated(base, target *Document) *Document {
	result := New()

	for _, key := range base.Keys() {
		value, _ := base.Get(key)
		existing, ok := target.Get(key)

		switch {
		case !ok:
			result.Set(key, value.Clone())

		case value.IsObject() && existing.IsObject():
			sub := FindMissingOrUntranslated(value.Doc(), existing.Doc())
			if !sub.IsEmpty() {
				result.Set(key, Object(sub))
			}

		case value.IsString() && (!existing.IsString() || existing.Str() == ""):
			// Untranslated or empty string.
			result.Set(key, value.Clone())
		}
	}

	return result
}
