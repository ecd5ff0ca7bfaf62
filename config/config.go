// Package config reads the transdiff configuration file.
//
// A configuration file names the base document, the target documents and
// the translation provider settings. It is looked up in the project root
// under one of FileNames (first match wins) and may be written in YAML,
// TOML or JSON:
//
//	main: locales/en.json
//	files:
//	  - locales/*.json
//	provider: mistral
//	proxy: http://127.0.0.1:3128
//
// Values from the environment (and a .env file in the project root) and
// from command-line flags are layered on top of the file.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minios-linux/transdiff/translate"
)

// LangMode selects how a target document's language tag is determined.
type LangMode string

const (
	// LangModeFilename takes the tag from each target's file name (de.json -> de).
	LangModeFilename LangMode = "filename"
	// LangModeGlobal uses Config.Lang for every target.
	LangModeGlobal LangMode = "global"
)

// Config is the resolved transdiff configuration.
type Config struct {
	// Main is the base (reference) document.
	Main string `yaml:"main" toml:"main" json:"main"`
	// Files are the target documents. Entries may be glob patterns.
	Files []string `yaml:"files" toml:"files" json:"files"`
	// Lang is the global language tag (used in global mode).
	Lang string `yaml:"lang,omitempty" toml:"lang,omitempty" json:"lang,omitempty"`
	// LangMode defaults to "global" when Lang is set, else "filename".
	LangMode LangMode `yaml:"lang_mode,omitempty" toml:"lang_mode,omitempty" json:"lang_mode,omitempty"`

	Provider string   `yaml:"provider,omitempty" toml:"provider,omitempty" json:"provider,omitempty"`
	Model    string   `yaml:"model,omitempty" toml:"model,omitempty" json:"model,omitempty"`
	BaseURL  string   `yaml:"base_url,omitempty" toml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty" toml:"api_key,omitempty" json:"api_key,omitempty"`
	Proxy    string   `yaml:"proxy,omitempty" toml:"proxy,omitempty" json:"proxy,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries per request; 0 means the client default, -1 disables retries.
	MaxRetries int `yaml:"max_retries,omitempty" toml:"max_retries,omitempty" json:"max_retries,omitempty"`
	// MaxConcurrent bounds parallel documents; 0 means unbounded.
	MaxConcurrent int `yaml:"max_concurrent,omitempty" toml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
	// Prompt overrides the system prompt ({{targetLang}} placeholder supported).
	Prompt string `yaml:"prompt,omitempty" toml:"prompt,omitempty" json:"prompt,omitempty"`

	// Path is the file the configuration was read from (empty if none).
	Path string `yaml:"-" toml:"-" json:"-"`
}

// Error is a configuration problem detected before any document is touched.
type Error struct {
	// Path is the configuration file, if any.
	Path string
	// Problems lists every issue found.
	Problems []string
	// Err is the underlying decode error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := "invalid configuration"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	return msg + ": " + strings.Join(e.Problems, "; ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Overrides are command-line values; non-zero fields replace config values.
// The API key flag is passed to ResolveAPIKey instead.
type Overrides struct {
	Main          string
	Files         []string
	Lang          string
	LangMode      LangMode
	Provider      string
	Model         string
	BaseURL       string
	Proxy         string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
	Prompt        string
}

// Apply copies every non-zero override into c. A Lang override without a
// LangMode override switches c to LangModeGlobal.
func (c *Config) Apply(o Overrides) {
	if o.Main != "" {
		c.Main = o.Main
	}
	if len(o.Files) > 0 {
		c.Files = append([]string(nil), o.Files...)
	}
	if o.Lang != "" {
		c.Lang = o.Lang
		if o.LangMode == "" {
			c.LangMode = LangModeGlobal
		}
	}
	if o.LangMode != "" {
		c.LangMode = o.LangMode
	}
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}
	if o.Proxy != "" {
		c.Proxy = o.Proxy
	}
	if o.Timeout != 0 {
		c.Timeout = Duration(o.Timeout)
	}
	if o.MaxRetries != 0 {
		c.MaxRetries = o.MaxRetries
	}
	if o.MaxConcurrent != 0 {
		c.MaxConcurrent = o.MaxConcurrent
	}
	if o.Prompt != "" {
		c.Prompt = o.Prompt
	}
}

// EffectiveProvider returns the configured provider or the default one.
func (c *Config) EffectiveProvider() string {
	if c.Provider == "" {
		return translate.DefaultProvider
	}
	return strings.ToLower(c.Provider)
}

// EffectiveLangMode returns the language mode with its default applied.
func (c *Config) EffectiveLangMode() LangMode {
	if c.LangMode != "" {
		return c.LangMode
	}
	if c.Lang != "" {
		return LangModeGlobal
	}
	return LangModeFilename
}

// GlobalLanguage returns the tag shared by all targets, or "" in filename mode.
func (c *Config) GlobalLanguage() string {
	if c.EffectiveLangMode() == LangModeGlobal {
		return c.Lang
	}
	return ""
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Main) == "" {
		add(`"main" (base document) is required`)
	}
	if len(c.Files) == 0 {
		add(`"files" must list at least one target document`)
	}
	for i, f := range c.Files {
		if strings.TrimSpace(f) == "" {
			add(`"files" entry #%d is empty`, i+1)
		}
	}

	switch c.EffectiveLangMode() {
	case LangModeFilename:
	case LangModeGlobal:
		if strings.TrimSpace(c.Lang) == "" {
			add(`"lang" is required when lang_mode is %q`, LangModeGlobal)
		}
	default:
		add(`"lang_mode" must be %q or %q, got %q`, LangModeFilename, LangModeGlobal, c.LangMode)
	}

	provider := c.EffectiveProvider()
	_, known := translate.DefaultProviders()[provider]
	switch {
	case !known && c.BaseURL == "":
		add(`unknown provider %q (valid: %s); set "base_url" for a custom endpoint`,
			c.Provider, strings.Join(translate.ProviderIDs(), ", "))
	case provider == translate.ProviderCustomOpenAI && c.BaseURL == "":
		add(`"base_url" is required for provider %q`, provider)
	}
	if (!known || provider == translate.ProviderCustomOpenAI) && c.Model == "" {
		add(`"model" is required for provider %q`, c.Provider)
	}

	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			add(`"proxy" is not a valid URL: %q`, c.Proxy)
		}
	}
	if c.Timeout < 0 {
		add(`"timeout" must not be negative`)
	}
	if c.MaxRetries < -1 {
		add(`"max_retries" must be -1 (disabled) or more`)
	}
	if c.MaxConcurrent < 0 {
		add(`"max_concurrent" must not be negative`)
	}

	if len(problems) > 0 {
		return &Error{Path: c.Path, Problems: problems}
	}
	return nil
}

// ResolvePaths makes Main and Files absolute relative to dir and expands
// glob patterns in Files. The base document is never included as a target.
// Patterns that match nothing are kept as literal paths so that a missing
// file is reported for that target instead of silently skipped.
func (c *Config) ResolvePaths(dir string) error {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(dir, p)
	}

	if c.Main != "" {
		c.Main = abs(c.Main)
	}

	var files []string
	seen := map[string]bool{c.Main: true}
	for _, f := range c.Files {
		pattern := abs(f)
		matches := []string{pattern}
		if strings.ContainsAny(f, "*?[") {
			m, err := filepath.Glob(pattern)
			if err != nil {
				return &Error{Path: c.Path, Problems: []string{fmt.Sprintf("bad pattern %q: %v", f, err)}, Err: err}
			}
			sort.Strings(m)
			if len(m) > 0 {
				matches = m
			}
		}
		for _, p := range matches {
			if seen[p] {
				continue
			}
			seen[p] = true
			files = append(files, p)
		}
	}
	c.Files = files
	return nil
}
