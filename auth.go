package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/transdiff/config"
	"github.com/minios-linux/transdiff/settings"
	"github.com/minios-linux/transdiff/translate"
)

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

// keyHelpURLs tells the user where to get an API key.
var keyHelpURLs = map[string]string{
	translate.ProviderMistral:   "https://console.mistral.ai/api-keys",
	translate.ProviderOpenAI:    "https://platform.openai.com/api-keys",
	translate.ProviderGroq:      "https://console.groq.com/keys",
	translate.ProviderGoogle:    "https://aistudio.google.com/apikey",
	translate.ProviderAnthropic: "https://console.anthropic.com/settings/keys",
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage the API keys stored for the AI providers.

Keys are saved in ` + "`$XDG_DATA_HOME/transdiff/auth.json`" + ` with 0600
permissions. A key passed with --api-key, set in the environment
(TRANSDIFF_API_KEY, MISTRAL_API_KEY, ...) or written in the configuration
file takes precedence over a stored key.

Examples:
  transdiff auth login                      Store a key for mistral
  transdiff auth login openai --key sk-...  Store an OpenAI key
  transdiff auth login custom-openai --base-url https://llm.example.com/v1
  transdiff auth logout groq                Remove the Groq key
  transdiff auth logout --all               Remove all keys
  transdiff auth list                       Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var key, baseURL string

	cmd := &cobra.Command{
		Use:   "login [provider]",
		Short: "Store an API key",
		Long: `Store an API key for a provider (default: mistral).

Without --key the key is read from standard input. For custom-openai the
endpoint URL is stored too.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return translate.ProviderIDs(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID := translate.DefaultProvider
			if len(args) == 1 {
				providerID = strings.ToLower(args[0])
			}
			return authLogin(cmd.InOrStdin(), providerID, key, baseURL)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (read from stdin if omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint URL (custom-openai)")

	return cmd
}

// authLogin stores the credentials for providerID, prompting on in for
// whatever was not given.
func authLogin(in io.Reader, providerID, key, baseURL string) error {
	prov, ok := translate.DefaultProviders()[providerID]
	if !ok {
		return fmt.Errorf("unknown provider '%s' (valid: %s)", providerID, strings.Join(translate.ProviderIDs(), ", "))
	}
	if !prov.KeyRequired && providerID != translate.ProviderCustomOpenAI {
		logInfo("%s does not need an API key", prov.Name)
		return nil
	}

	existing := settings.Get(providerID)
	scanner := bufio.NewScanner(in)
	prompt := func(label string) (string, error) {
		fmt.Fprintf(logOutput, "  %s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no input received")
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	if providerID == translate.ProviderCustomOpenAI && baseURL == "" {
		label := "Endpoint URL (e.g. https://api.example.com/v1)"
		if existing != nil && existing.BaseURL != "" {
			label = fmt.Sprintf("Endpoint URL [%s]", existing.BaseURL)
		}
		v, err := prompt(label)
		if err != nil {
			return err
		}
		baseURL = v
		if baseURL == "" && existing != nil {
			baseURL = existing.BaseURL
		}
		if baseURL == "" {
			return errors.New("endpoint URL is required")
		}
	}

	if key == "" {
		if u := keyHelpURLs[providerID]; u != "" {
			logInfo("Get your API key from: %s", u)
		}
		label := "API key"
		if existing != nil && existing.Key != "" {
			label = fmt.Sprintf("API key [%s, Enter keeps it]", settings.MaskKey(existing.Key))
		}
		v, err := prompt(label)
		if err != nil {
			return err
		}
		key = v
		if key == "" && existing != nil {
			key = existing.Key
		}
		if key == "" && prov.KeyRequired {
			return errors.New("no API key provided")
		}
	}

	var err error
	if baseURL != "" {
		err = settings.SetAPIKeyWithBaseURL(providerID, key, baseURL)
	} else {
		err = settings.SetAPIKey(providerID, key)
	}
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	logSuccess("%s credentials saved to %s", prov.Name, settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout [provider]",
		Short: "Remove stored API keys",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return settings.Providers(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all:
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			case len(args) == 1:
				providerID := strings.ToLower(args[0])
				if settings.Get(providerID) == nil {
					logWarning("No credentials stored for %s", providerID)
					return nil
				}
				if err := settings.Remove(providerID); err != nil {
					return err
				}
				logSuccess("%s credentials removed", providerID)
				return nil
			default:
				return errors.New("name a provider or pass --all")
			}
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove the credentials of every provider")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and environment keys",
		Run: func(cmd *cobra.Command, args []string) {
			showCredentials(cmd.OutOrStdout())
		},
	}
}

// showCredentials prints the key status of every provider.
func showCredentials(out io.Writer) {
	fmt.Fprintf(out, "\n%s\n", infoColor.Sprint("Stored Credentials"))
	fmt.Fprintln(out, strings.Repeat("─", 60))

	providers := translate.DefaultProviders()
	for _, id := range translate.ProviderIDs() {
		prov := providers[id]
		entry := settings.Get(id)

		var status string
		switch {
		case entry != nil && entry.Key != "":
			status = successColor.Sprint("configured") + " (key: " + settings.MaskKey(entry.Key) + ")"
		case entry != nil && entry.BaseURL != "":
			status = successColor.Sprint("configured") + " (no key)"
		case !prov.KeyRequired:
			status = "no key needed"
		default:
			status = errorColor.Sprint("not configured")
		}
		if env := config.APIKeyFromEnv(id); env != "" {
			status += warningColor.Sprint(" [env overrides]")
		}
		fmt.Fprintf(out, "  %-14s %s\n", id, status)
		if entry != nil && entry.BaseURL != "" {
			fmt.Fprintf(out, "  %-14s endpoint: %s\n", "", entry.BaseURL)
		}
	}

	fmt.Fprintln(out)
	if v := os.Getenv(config.EnvAPIKey); v != "" {
		fmt.Fprintf(out, "  %s: %s (overrides stored keys)\n", config.EnvAPIKey, settings.MaskKey(v))
	} else {
		fmt.Fprintf(out, "  %s: not set\n", config.EnvAPIKey)
	}
	if p := settings.FilePath(); p != "" {
		fmt.Fprintf(out, "  File: %s\n", p)
	}
	fmt.Fprintln(out)
}
