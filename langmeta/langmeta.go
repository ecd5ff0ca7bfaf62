// Package langmeta resolves language tags for localized resource files
// and provides human-readable language names for translation prompts.
package langmeta

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnresolvableLanguage is returned when no language tag can be derived
// from a resource path.
var ErrUnresolvableLanguage = errors.New("could not extract language from filename")

// ExtractLanguage derives the language tag from the final path component
// with its extension removed: "locales/en-US.json" yields "en-US".
func ExtractLanguage(path string) (string, error) {
	name := filepath.Base(filepath.ToSlash(path))
	if name == "." || name == "/" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvableLanguage, path)
	}
	lang := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if lang == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolvableLanguage, path)
	}
	return lang, nil
}

// Canonicalize normalizes separators and case: "pt_br" becomes "pt-BR".
func Canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Parse returns the BCP 47 tag for lang, tolerating underscores and
// mixed case.
func Parse(lang string) (language.Tag, error) {
	return language.Parse(Canonicalize(lang))
}

// Name returns the English name of the language, e.g. "German" for "de"
// or "Brazilian Portuguese" for "pt_BR". Unknown tags are returned as given.
func Name(lang string) string {
	tag, err := Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}

// NativeName returns the name of the language in that language,
// e.g. "Deutsch" for "de". Unknown tags are returned as given.
func NativeName(lang string) string {
	tag, err := Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return lang
}

// Describe returns "English (Native)" when both names are known and
// differ, otherwise a single name.
func Describe(lang string) string {
	en, native := Name(lang), NativeName(lang)
	if en == native || native == lang {
		return en
	}
	if en == lang {
		return native
	}
	return fmt.Sprintf("%s (%s)", en, native)
}
