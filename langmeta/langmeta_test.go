package langmeta

import (
	"errors"
	"testing"
)

func TestExtractLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "locales/en-US.json", want: "en-US"},
		{in: "ru.json", want: "ru"},
		{in: "/abs/path/pt_BR.json", want: "pt_BR"},
		{in: "locales/de", want: "de"},
		{in: `locales/fr.JSON`, want: "fr"},
	}

	for _, tc := range cases {
		got, err := ExtractLanguage(tc.in)
		if err != nil {
			t.Fatalf("ExtractLanguage(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ExtractLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractLanguageUnresolvable(t *testing.T) {
	for _, in := range []string{"", "locales/.json", "/", "locales/ .json"} {
		if _, err := ExtractLanguage(in); !errors.Is(err, ErrUnresolvableLanguage) {
			t.Fatalf("ExtractLanguage(%q) error = %v, want ErrUnresolvableLanguage", in, err)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "ru", want: "ru"},
		{in: "zh-Hant", want: "zh-Hant"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		if got := Canonicalize(tc.in); got != tc.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNames(t *testing.T) {
	if got := Name("de"); got != "German" {
		t.Fatalf("Name(de) = %q, want German", got)
	}
	if got := NativeName("de"); got != "Deutsch" {
		t.Fatalf("NativeName(de) = %q, want Deutsch", got)
	}
	if got := Describe("de"); got != "German (Deutsch)" {
		t.Fatalf("Describe(de) = %q, want %q", got, "German (Deutsch)")
	}
	if got := Name("not a tag!"); got != "not a tag!" {
		t.Fatalf("Name(invalid) = %q, want input unchanged", got)
	}
	if got := Describe("en"); got != "English" {
		t.Fatalf("Describe(en) = %q, want English", got)
	}
}
