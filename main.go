// Command transdiff finds missing or untranslated keys in JSON locale files and
// fills them in with AI translations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minios-linux/transdiff/config"
	"github.com/minios-linux/transdiff/i18n"
	"github.com/minios-linux/transdiff/langmeta"
	"github.com/minios-linux/transdiff/pipeline"
	"github.com/minios-linux/transdiff/settings"
	"github.com/minios-linux/transdiff/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

var (
	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed)
)

// logOutput is where log lines go; color.Error is a colour-aware stderr.
var logOutput io.Writer = color.Error

func logLine(c *color.Color, prefix, format string, args ...any) {
	fmt.Fprintf(logOutput, "%s %s\n", c.Sprint(prefix), i18n.T(format, args...))
}

func logInfo(format string, args ...any) {
	logLine(infoColor, "[INFO]", format, args...)
}

func logSuccess(format string, args ...any) {
	logLine(successColor, "[OK]", format, args...)
}

func logWarning(format string, args ...any) {
	logLine(warningColor, "[WARN]", format, args...)
}

func logError(format string, args ...any) {
	logLine(errorColor, "[ERROR]", format, args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	uiLang     string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transdiff",
		Short: "Translate missing keys of JSON locale files with AI",
		Long: `transdiff keeps JSON locale files in sync with a base locale.

Compares every target file with the base file, sends only the missing or
empty strings to an AI provider and merges the translations back without
touching existing ones.

Commands:
  status      Show missing keys per file (no changes)
  translate   Translate missing keys and update the files
  init        Write a starter configuration file
  auth        Manage provider API keys

AI Providers:
  mistral        Mistral AI (default), API key
  openai         OpenAI, API key
  groq           Groq, API key
  google         Google AI (Gemini), API key
  anthropic      Anthropic, API key
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if uiLang != "" {
				i18n.Init(uiLang)
			}
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: .transdiff.yaml in the project root)")
	root.PersistentFlags().StringVar(&uiLang, "ui-lang", "", "Language of transdiff's own messages (default: $"+i18n.EnvLang+" or the locale)")

	root.AddCommand(
		newStatusCmd(),
		newTranslateCmd(),
		newInitCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logError("%v", err)
		if isConfigError(err) && configPath == "" && config.Find(rootDir) == "" {
			logInfo("Run 'transdiff init' to create a configuration file")
		}
		stop()
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "transdiff version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared configuration handling
// ---------------------------------------------------------------------------

// runArgs holds the flags shared by status and translate.
type runArgs struct {
	main          string
	files         []string
	lang          string
	langMode      string
	provider      string
	model         string
	apiKey        string
	baseURL       string
	proxy         string
	timeout       time.Duration
	maxRetries    int
	maxConcurrent int
	prompt        string
	verbose       bool
	dryRun        bool
}

func (a *runArgs) overrides() config.Overrides {
	return config.Overrides{
		Main:          a.main,
		Files:         a.files,
		Lang:          a.lang,
		LangMode:      config.LangMode(a.langMode),
		Provider:      a.provider,
		Model:         a.model,
		BaseURL:       a.baseURL,
		Proxy:         a.proxy,
		Timeout:       a.timeout,
		MaxRetries:    a.maxRetries,
		MaxConcurrent: a.maxConcurrent,
		Prompt:        a.prompt,
	}
}

func addDocumentFlags(cmd *cobra.Command, a *runArgs) {
	f := cmd.Flags()
	f.StringVar(&a.main, "main", "", "Base (reference) locale file")
	f.StringSliceVar(&a.files, "files", nil, "Target locale files (comma-separated or repeated, globs allowed)")
	f.StringVar(&a.lang, "lang", "", "Language for all targets (implies --lang-mode global)")
	f.StringVar(&a.langMode, "lang-mode", "", "How to find a target's language: filename or global")
}

// loadConfig merges file, environment and flags and validates the result.
// Paths from the file are relative to the file's directory, paths from
// flags to the working directory.
func loadConfig(a *runArgs) (*config.Config, error) {
	cfg, err := config.Load(rootDir, configPath)
	if err != nil {
		return nil, err
	}

	dir := rootDir
	if cfg.Path != "" {
		dir = filepath.Dir(cfg.Path)
	}
	if err := cfg.ResolvePaths(dir); err != nil {
		return nil, err
	}

	cfg.Apply(a.overrides())
	if err := cfg.ResolvePaths("."); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" && cfg.EffectiveProvider() == translate.ProviderCustomOpenAI {
		cfg.BaseURL = settings.GetBaseURL(translate.ProviderCustomOpenAI)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildProvider resolves the provider definition from cfg and the API key
// from flag, environment, file and credential store.
func buildProvider(cfg *config.Config, flagKey string) translate.Provider {
	id := cfg.EffectiveProvider()

	apiKey := cfg.ResolveAPIKey(flagKey, settings.GetAPIKey)
	return translate.ResolveProvider(id, cfg.BaseURL, apiKey, cfg.Model, cfg.Proxy, cfg.Timeout.D())
}

// validateProvider checks that the provider can be called at all. Missing
// settings are reported as a *config.Error.
func validateProvider(prov translate.Provider) error {
	var problems []string
	if prov.Model == "" {
		problems = append(problems, fmt.Sprintf("--model is required for provider '%s'", prov.ID))
	}
	if prov.BaseURL == "" {
		problems = append(problems, fmt.Sprintf("provider '%s' requires an endpoint URL "+
			"(transdiff auth login %s --base-url URL, or --base-url URL)", prov.ID, prov.ID))
	}
	if prov.KeyRequired && prov.APIKey == "" {
		problems = append(problems, fmt.Sprintf("provider '%s' requires an API key "+
			"(transdiff auth login %s, --api-key KEY or %s=KEY)", prov.ID, prov.ID, config.EnvAPIKey))
	}
	if len(problems) > 0 {
		return &config.Error{Path: configPath, Problems: problems}
	}
	return nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		BasePath:      cfg.Main,
		Targets:       cfg.Files,
		Language:      cfg.GlobalLanguage(),
		MaxConcurrent: cfg.MaxConcurrent,
		OnLog:         logInfo,
		OnError:       logError,
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var a runArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate missing keys and update the locale files",
		Long: `Translate every key that is missing or empty in a target file compared
to the base file, and merge the translations into the target file.

Existing translations and keys that only exist in a target file are never
changed. Files without missing keys are not rewritten.

Examples:
  transdiff translate
  transdiff translate --main locales/en.json --files 'locales/*.json'
  transdiff translate --provider openai --model gpt-4o-mini
  transdiff translate --lang pt-BR --files messages.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), &a)
		},
	}

	addDocumentFlags(cmd, &a)

	f := cmd.Flags()
	f.StringVar(&a.provider, "provider", "", "AI provider: "+strings.Join(translate.ProviderIDs(), ", ")+" (default: mistral)")
	f.StringVar(&a.model, "model", "", "Model name (default depends on provider)")
	f.StringVar(&a.apiKey, "api-key", "", "API key (overrides environment, config file and stored key)")
	f.StringVar(&a.baseURL, "base-url", "", "Custom API endpoint URL")
	f.StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL (default: $HTTPS_PROXY)")
	f.DurationVar(&a.timeout, "timeout", 0, "Request timeout (e.g. 90s)")
	f.IntVar(&a.maxRetries, "max-retries", 0, "Retries per request on errors (default 3, -1 disables)")
	f.IntVar(&a.maxConcurrent, "max-concurrent", 0, "Maximum files translated at the same time (0 = all)")
	f.StringVar(&a.prompt, "prompt", "", "Custom system prompt ({{targetLang}} is replaced)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Log every provider request")
	f.BoolVar(&a.dryRun, "dry-run", false, "Only show what would be translated")

	return cmd
}

func runTranslate(ctx context.Context, a *runArgs) error {
	cfg, err := loadConfig(a)
	if err != nil {
		return err
	}

	opts := pipelineOptions(cfg)

	if a.dryRun {
		opts.DryRun = true
		report, err := pipeline.Run(ctx, opts)
		if err != nil {
			return err
		}
		return summarize(report, true)
	}

	prov := buildProvider(cfg, a.apiKey)
	if err := validateProvider(prov); err != nil {
		return err
	}

	logInfo("Provider: %s (%s), Model: %s", prov.Name, prov.ID, prov.Model)
	if prov.Proxy != "" {
		logInfo("Proxy: %s", prov.Proxy)
	}
	logInfo("Base file: %s", cfg.Main)

	opts.NewTranslator = func(lang string) (translate.Translator, error) {
		client, err := translate.New(translate.Options{
			Provider:     prov,
			Language:     lang,
			SystemPrompt: cfg.Prompt,
			MaxRetries:   cfg.MaxRetries,
			Verbose:      a.verbose,
			OnLog:        logInfo,
		})
		if err != nil {
			return nil, err
		}
		if a.verbose {
			logInfo("Translator ready for %s", langmeta.Describe(lang))
		}
		return client, nil
	}

	report, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	return summarize(report, false)
}

// summarize prints the final line of a run and turns document failures
// into the command's error.
func summarize(report *pipeline.Report, dryRun bool) error {
	total := len(report.Results)
	failed := report.Count(pipeline.StatusFailed)

	switch {
	case dryRun:
		logInfo("%d of %d files have missing keys", report.Count(pipeline.StatusPending), total)
	case failed == 0:
		logSuccess("Done: %d updated, %d up to date", report.Count(pipeline.StatusUpdated), report.Count(pipeline.StatusUpToDate))
	default:
		logWarning("%d updated, %d up to date, %d failed", report.Count(pipeline.StatusUpdated), report.Count(pipeline.StatusUpToDate), failed)
	}

	if report.Err() != nil {
		return errors.New(i18n.N("%d of %d file failed", "%d of %d files failed", total, failed, total))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// isConfigError reports whether err is a configuration problem.
func isConfigError(err error) bool {
	var cfgErr *config.Error
	return errors.As(err, &cfgErr)
}
