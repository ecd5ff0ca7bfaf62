// Package translate implements AI-powered translation of document trees.
//
// A Client sends every string leaf of a tree to the configured provider
// (Mistral, OpenAI, Groq, Ollama, any OpenAI-compatible endpoint, Google
// Gemini or Anthropic) as a separate request and rebuilds the tree with the
// translated text, keeping keys and nesting exactly as they were.
package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minios-linux/transdiff/doctree"
	"github.com/minios-linux/transdiff/langmeta"
)

// Translator translates every string leaf of a tree into a language.
// The result has exactly the same keys and nesting as the input; non-string
// leaves are copied unchanged. Implementations must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, tree *doctree.Document, lang string) (*doctree.Document, error)
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

// DefaultSystemPrompt is sent with every request unless overridden.
// {{targetLang}} is replaced with the language name.
const DefaultSystemPrompt = `You are a professional translator. Translate accurately and concisely into {{targetLang}}.
Preserve placeholders such as {{name}}, {name}, %s and %d, HTML tags, leading/trailing whitespace and line breaks exactly as-is.
Reply with the translated text only: no quotes, no explanations, no markdown.`

func userPrompt(langName, text string) string {
	return fmt.Sprintf("Translate into %q without formatting:\n%s", langName, text)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a Client.
type Options struct {
	// Provider is the AI provider configuration.
	Provider Provider
	// Language is the default target language tag (e.g. "ru", "pt-BR").
	Language string
	// SystemPrompt overrides DefaultSystemPrompt ({{targetLang}} placeholder supported).
	SystemPrompt string
	// MaxRetries is the number of retries on network errors, 5xx and 429.
	// Zero means 3; a negative value disables retries.
	MaxRetries int
	// RetryDelay is the base delay of the exponential backoff. Default 1s.
	RetryDelay time.Duration
	// RateLimitDelay is used for 429 responses without a retry hint. Default 65s.
	RateLimitDelay time.Duration
	// Verbose enables per-request debug logging through OnLog.
	Verbose bool
	// OnLog receives log messages.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMaxRetries() int {
	switch {
	case o.MaxRetries < 0:
		return 0
	case o.MaxRetries == 0:
		return 3
	default:
		return o.MaxRetries
	}
}

func (o *Options) effectiveRetryDelay() time.Duration {
	if o.RetryDelay > 0 {
		return o.RetryDelay
	}
	return time.Second
}

func (o *Options) effectiveRateLimitDelay() time.Duration {
	if o.RateLimitDelay > 0 {
		return o.RateLimitDelay
	}
	return 65 * time.Second // 60s + 5s buffer
}

func (o *Options) resolvedPrompt(lang string) string {
	prompt := o.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", langmeta.Describe(lang))
}

// ---------------------------------------------------------------------------
// Rate limit state (shared pause for concurrent callers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if end := time.Now().Add(duration); end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			atomic.StoreInt32(&r.paused, 0)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client is a Translator backed by an HTTP provider. One Client holds the
// HTTP transport and the rate limit state; share it between documents of
// the same language.
type Client struct {
	opts   Options
	http   *http.Client
	rl     *rateLimitState
	prompt string
}

var _ Translator = (*Client)(nil)

// New builds a Client. It fails if the provider has no base URL or model,
// or if the proxy URL is invalid.
func New(opts Options) (*Client, error) {
	if opts.Provider.BaseURL == "" {
		return nil, fmt.Errorf("provider %q has no base URL", opts.Provider.ID)
	}
	if opts.Provider.Model == "" {
		return nil, fmt.Errorf("provider %q has no model", opts.Provider.ID)
	}
	if opts.Provider.Name == "" {
		opts.Provider.Name = opts.Provider.ID
	}
	timeout := opts.Provider.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client, err := makeHTTPClient(opts.Provider.Proxy, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		opts:   opts,
		http:   client,
		rl:     &rateLimitState{},
		prompt: opts.resolvedPrompt(opts.Language),
	}, nil
}

// Translate walks tree and translates each string leaf with its own
// provider call. Leaves are processed one after another. An empty lang
// falls back to the client's language.
func (c *Client) Translate(ctx context.Context, tree *doctree.Document, lang string) (*doctree.Document, error) {
	if lang == "" {
		lang = c.opts.Language
	}
	prompt := c.prompt
	if lang != c.opts.Language {
		prompt = c.opts.resolvedPrompt(lang)
	}
	return c.translateObject(ctx, tree, lang, prompt, nil)
}

func (c *Client) translateObject(ctx context.Context, obj *doctree.Document, lang, prompt string, path []string) (*doctree.Document, error) {
	result := doctree.New()

	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		keyPath := append(append([]string(nil), path...), key)

		switch value.Kind() {
		case doctree.KindString:
			text, err := c.translateText(ctx, value.Str(), lang, prompt)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", strings.Join(keyPath, "."), err)
			}
			result.SetString(key, text)

		case doctree.KindObject:
			sub, err := c.translateObject(ctx, value.Doc(), lang, prompt, keyPath)
			if err != nil {
				return nil, err
			}
			result.Set(key, doctree.Object(sub))

		default:
			result.Set(key, value.Clone())
		}
	}

	return result, nil
}

// translateText translates a single string. Blank input is returned as-is
// without calling the provider.
func (c *Client) translateText(ctx context.Context, text, lang, prompt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	answer, err := c.call(ctx, prompt, userPrompt(langmeta.Describe(lang), text))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyTranslation
	}
	return answer, nil
}

// call sends one request, retrying network errors, 5xx and 429 responses.
func (c *Client) call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prov := c.opts.Provider
	endpoint, headers, body, err := buildHTTPRequest(prov, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	maxRetries := c.opts.effectiveMaxRetries()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait if paused by a 429 seen from another caller of this client.
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return "", &ProviderError{Provider: prov.Name, Message: err.Error(), Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		if c.opts.Verbose {
			c.opts.log("[DEBUG] %s attempt %d: POST %s", prov.Name, attempt+1, endpoint)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &ProviderError{Provider: prov.Name, Message: err.Error(), Err: err}
			if attempt < maxRetries && ctx.Err() == nil {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", lastErr
				}
				continue
			}
			return "", lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Message: readErr.Error(), Err: readErr}
			if attempt < maxRetries && ctx.Err() == nil {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", lastErr
				}
				continue
			}
			return "", lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := parseRetryDelay(resp.Header, respBody, c.opts.effectiveRateLimitDelay())
			lastErr = &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Message: truncate(string(respBody), 500)}
			if attempt < maxRetries {
				if c.opts.Verbose {
					c.opts.log("[WARN] 429 rate limited, waiting %v before retry (attempt %d/%d)", delay, attempt+1, maxRetries)
				}
				c.rl.pause(delay)
				continue
			}
			return "", lastErr
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Message: truncate(string(respBody), 500)}
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", lastErr
				}
				continue
			}
			return "", lastErr
		}

		text, err := extractResponseText(respBody)
		if err != nil {
			return "", &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Message: err.Error(), Err: err}
		}
		return text, nil
	}

	if lastErr == nil {
		lastErr = errors.New("exhausted all retries")
	}
	return "", lastErr
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.opts.effectiveRetryDelay()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
