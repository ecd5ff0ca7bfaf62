package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transdiff/config"
	"github.com/minios-linux/transdiff/store"
	"github.com/minios-linux/transdiff/translate"
)

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

// localeDirs are checked in order when guessing where the locale files live.
var localeDirs = []string{
	"locales",
	"public/locales",
	"src/locales",
	"i18n",
	"lang",
	"translations",
}

type initArgs struct {
	main     string
	files    []string
	provider string
	model    string
	format   string
	force    bool
}

func newInitCmd() *cobra.Command {
	var a initArgs

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a .transdiff configuration file to the project root.

The base file and the target pattern are guessed from common locale
directories (locales/, public/locales/, i18n/, ...) unless given.

Examples:
  transdiff init
  transdiff init --main src/i18n/en.json --files 'src/i18n/*.json'
  transdiff init --format toml --provider openai --model gpt-4o-mini`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runInit(rootDir, a)
			if err != nil {
				return err
			}
			logSuccess("Created %s", path)
			logInfo("Run 'transdiff status' to see missing keys")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.main, "main", "", "Base (reference) locale file")
	f.StringSliceVar(&a.files, "files", nil, "Target locale files (globs allowed)")
	f.StringVar(&a.provider, "provider", "", "AI provider (default: mistral)")
	f.StringVar(&a.model, "model", "", "Model name")
	f.StringVar(&a.format, "format", "yaml", "File format: yaml, toml or json")
	f.BoolVar(&a.force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

// runInit writes the configuration file into dir and returns its path.
func runInit(dir string, a initArgs) (string, error) {
	if existing := config.Find(dir); existing != "" && !a.force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", existing)
	}

	cfg := starterConfig(dir, a)
	if cfg.Provider != "" {
		if _, ok := translate.DefaultProviders()[cfg.Provider]; !ok {
			return "", fmt.Errorf("unknown provider '%s' (valid: %s)", cfg.Provider, strings.Join(translate.ProviderIDs(), ", "))
		}
	}

	data, name, err := encodeConfig(cfg, a.format)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if basePath := filepath.Join(dir, filepath.FromSlash(cfg.Main)); !store.Exists(basePath) {
		logWarning("Base file %s does not exist yet", cfg.Main)
	}
	return path, nil
}

// starterConfig fills in the flags and guesses the rest.
func starterConfig(dir string, a initArgs) *config.Config {
	cfg := &config.Config{
		Main:     a.main,
		Files:    a.files,
		Provider: strings.ToLower(a.provider),
		Model:    a.model,
	}

	if cfg.Main == "" || len(cfg.Files) == 0 {
		localeDir := detectLocaleDir(dir)
		if cfg.Main == "" {
			cfg.Main = filepath.ToSlash(filepath.Join(localeDir, "en.json"))
		}
		if len(cfg.Files) == 0 {
			cfg.Files = []string{filepath.ToSlash(filepath.Join(localeDir, "*.json"))}
		}
	}
	return cfg
}

// detectLocaleDir returns the first of localeDirs (relative to dir) that
// holds JSON files, or "locales".
func detectLocaleDir(dir string) string {
	for _, d := range localeDirs {
		matches, _ := filepath.Glob(filepath.Join(dir, d, "*.json"))
		if len(matches) > 0 {
			return d
		}
	}
	return localeDirs[0]
}

// encodeConfig serializes cfg in format and returns the data with the
// matching file name.
func encodeConfig(cfg *config.Config, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, "", fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, "", fmt.Errorf("encoding YAML: %w", err)
		}
		return buf.Bytes(), ".transdiff.yaml", nil
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("encoding TOML: %w", err)
		}
		return data, ".transdiff.toml", nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), ".transdiff.json", nil
	default:
		return nil, "", fmt.Errorf("unknown format '%s' (use yaml, toml or json)", format)
	}
}
