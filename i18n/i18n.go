// Package i18n localizes the messages transdiff prints.
//
// Message catalogs are gettext .po files embedded from
// locales/{lang}/LC_MESSAGES/transdiff.po. The msgids are the printf
// formats passed to the log helpers, so T and N take the format arguments
// and return the finished message:
//
//	i18n.Init("")
//	msg := i18n.T("[%s]: Added %d missing keys in language: %s", path, n, lang)
//
// Missing catalogs and missing entries fall back to the English format.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "transdiff"

// EnvLang selects the message language, ahead of the locale variables.
const EnvLang = "TRANSDIFF_LANG"

var catalog *gotext.Locale

// Init loads the catalog for lang. An empty lang is taken from
// TRANSDIFF_LANG, then LANGUAGE, LC_ALL, LC_MESSAGES and LANG.
// Calling Init again switches the catalog.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	loc := gotext.NewLocaleFSWithPath(lang, locales, "locales")
	loc.AddDomain(domain)
	loc.SetDomain(domain)
	catalog = loc
}

// T returns the translation of format with args applied.
func T(format string, args ...any) string {
	if catalog == nil {
		return gotext.FormatString(format, args...)
	}
	return catalog.Get(format, args...)
}

// N is T for messages with a plural form chosen by n.
func N(singular, plural string, n int, args ...any) string {
	if catalog == nil {
		if n == 1 {
			return gotext.FormatString(singular, args...)
		}
		return gotext.FormatString(plural, args...)
	}
	return catalog.GetN(singular, plural, n, args...)
}

// detectLanguage returns the first usable language from the environment,
// "en" if there is none. "ru_RU.UTF-8" becomes "ru_RU"; C and POSIX are
// skipped. LANGUAGE may hold a colon-separated list; its first entry counts.
func detectLanguage() string {
	for _, env := range []string{EnvLang, "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		val = strings.TrimSpace(val)
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
