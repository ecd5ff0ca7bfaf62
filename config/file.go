package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileNames are the configuration file names looked up in the project
// root, in order.
var FileNames = []string{
	".transdiff.yaml",
	".transdiff.yml",
	"transdiff.yaml",
	".transdiff.toml",
	".transdiff.json",
}

// Find returns the first configuration file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadFile reads a configuration file. The format is chosen by extension
// (.yaml/.yml, .toml, .json). Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, decodeError(path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, decodeError(path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, decodeError(path, err)
		}
	default:
		return nil, &Error{Path: path, Problems: []string{fmt.Sprintf("unsupported file type %q (use .yaml, .toml or .json)", ext)}}
	}

	cfg.Path = path
	return &cfg, nil
}

func decodeError(path string, err error) error {
	return &Error{Path: path, Problems: []string{err.Error()}, Err: err}
}

// Load builds the configuration for the project in dir.
//
// It loads dir/.env if present, reads explicitPath or the first of
// FileNames found in dir (a missing file is not an error unless it was
// named explicitly), then applies environment variables. Relative paths
// in the file are resolved later by ResolvePaths.
func Load(dir, explicitPath string) (*Config, error) {
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	path := explicitPath
	if path == "" {
		path = Find(dir)
	} else if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Problems: []string{"configuration file not found"}, Err: err}
	}

	cfg := &Config{}
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnv()
	return cfg, nil
}

// loadDotEnv loads dir/.env without overriding variables that are already set.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{Path: path, Problems: []string{err.Error()}, Err: err}
	}
	return nil
}

// EnvAPIKey is the generic API key variable, checked before the
// provider-specific ones.
const EnvAPIKey = "TRANSDIFF_API_KEY"

// providerKeyEnv lists the provider-specific API key variables.
var providerKeyEnv = map[string][]string{
	"mistral":   {"MISTRAL_API_KEY", "MISTRAL_API"},
	"openai":    {"OPENAI_API_KEY"},
	"groq":      {"GROQ_API_KEY"},
	"google":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// APIKeyFromEnv returns the API key for provider from the environment.
func APIKeyFromEnv(provider string) string {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v
	}
	for _, name := range providerKeyEnv[strings.ToLower(provider)] {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// applyEnv fills the proxy from HTTPS_PROXY when the file sets none.
// API keys are resolved separately, see ResolveAPIKey.
func (c *Config) applyEnv() {
	if c.Proxy != "" {
		return
	}
	for _, name := range []string{"HTTPS_PROXY", "https_proxy"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			c.Proxy = v
			return
		}
	}
}

// ResolveAPIKey returns the API key for the effective provider. The first
// non-empty source wins: flagValue, the environment, the configuration
// file, then stored (the credential store; may be nil).
func (c *Config) ResolveAPIKey(flagValue string, stored func(provider string) string) string {
	provider := c.EffectiveProvider()
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := APIKeyFromEnv(provider); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.APIKey); v != "" {
		return v
	}
	if stored != nil {
		return stored(provider)
	}
	return ""
}

// ---------------------------------------------------------------------------
// Duration
// ---------------------------------------------------------------------------

// Duration is a time.Duration read from "90s"-style strings or from a plain
// number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(v), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (TOML strings).
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML accepts both "90s" and 90.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalJSON accepts both "90s" and 90.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(time.Duration(n * float64(time.Second)))
	return nil
}
