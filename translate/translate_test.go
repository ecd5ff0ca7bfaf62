package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minios-linux/transdiff/doctree"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// sourceText returns the text to translate from a user prompt.
func sourceText(prompt string) string {
	_, text, _ := strings.Cut(prompt, "\n")
	return text
}

func chatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

// newChatServer answers every chat completion with "<prefix>" + source text.
func newChatServer(t *testing.T, prefix string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, "bad auth "+got, http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := sourceText(req.Messages[1].Content)
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
		chatResponse(w, "  "+prefix+text+"\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testProvider(baseURL string) Provider {
	return Provider{
		ID:      ProviderMistral,
		Name:    "Mistral AI",
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "mistral-small-latest",
		Timeout: 5 * time.Second,
	}
}

func parse(t *testing.T, s string) *doctree.Document {
	t.Helper()
	d, err := doctree.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s): %v", s, err)
	}
	return d
}

// ---------------------------------------------------------------------------
// Client.Translate
// ---------------------------------------------------------------------------

func TestTranslatePreservesStructure(t *testing.T) {
	srv, seen := newChatServer(t, "fr:")
	c, err := New(Options{Provider: testProvider(srv.URL + "/v1"), Language: "fr"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tree := parse(t, `{"a":"hi","b":{"c":"yo","n":3,"d":{"e":"deep"}},"blank":"","l":["x"]}`)
	got, err := c.Translate(context.Background(), tree, "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}

	want := parse(t, `{"a":"fr:hi","b":{"c":"fr:yo","n":3,"d":{"e":"fr:deep"}},"blank":"","l":["x"]}`)
	if !got.Equal(want) {
		out, _ := doctree.Marshal(got)
		t.Fatalf("Translate() =\n%s", out)
	}

	// One request per non-blank string leaf.
	if len(*seen) != 3 {
		t.Fatalf("provider saw %d requests (%v), want 3", len(*seen), *seen)
	}

	// Input untouched.
	if !tree.Equal(parse(t, `{"a":"hi","b":{"c":"yo","n":3,"d":{"e":"deep"}},"blank":"","l":["x"]}`)) {
		t.Fatal("Translate() mutated its input")
	}
}

func TestTranslateRequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		chatResponse(w, "Hallo")
	}))
	defer srv.Close()

	c, err := New(Options{Provider: testProvider(srv.URL), Language: "de"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := c.Translate(context.Background(), parse(t, `{"greeting":"Hello"}`), "de"); err != nil {
		t.Fatalf("Translate() error: %v", err)
	}

	if got.Model != "mistral-small-latest" || got.Temperature != 0.3 || got.MaxTokens != 2000 {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[0].Content, "German") {
		t.Fatalf("system prompt does not name the language: %q", got.Messages[0].Content)
	}
	if !strings.HasSuffix(got.Messages[1].Content, "\nHello") {
		t.Fatalf("user prompt = %q", got.Messages[1].Content)
	}
}

func TestTranslateCustomPrompt(t *testing.T) {
	var system string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		system = req.Messages[0].Content
		chatResponse(w, "ok")
	}))
	defer srv.Close()

	c, err := New(Options{Provider: testProvider(srv.URL), Language: "ru", SystemPrompt: "Game UI into {{targetLang}}."})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := c.Translate(context.Background(), parse(t, `{"a":"b"}`), ""); err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if system != "Game UI into Russian (русский)." {
		t.Fatalf("system prompt = %q", system)
	}
}

func TestTranslateEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(w, "   ")
	}))
	defer srv.Close()

	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "fr"})
	_, err := c.Translate(context.Background(), parse(t, `{"menu":{"open":"Open"}}`), "")
	if !errors.Is(err, ErrEmptyTranslation) {
		t.Fatalf("error = %v, want ErrEmptyTranslation", err)
	}
	if !strings.Contains(err.Error(), "menu.open") {
		t.Fatalf("error %q should name the key path", err)
	}
}

func TestTranslateClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "fr", RetryDelay: time.Millisecond})
	_, err := c.Translate(context.Background(), parse(t, `{"a":"b"}`), "")

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Status != http.StatusUnauthorized || !strings.Contains(pe.Message, "invalid api key") {
		t.Fatalf("ProviderError = %+v", pe)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestTranslateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		chatResponse(w, "bonjour")
	}))
	defer srv.Close()

	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "fr", RetryDelay: time.Millisecond})
	got, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("a"); n.Str() != "bonjour" {
		t.Fatalf("a = %q, want bonjour", n.Str())
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestTranslateBackoffAfterTruncatedBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Declared length is never reached, so the client read fails.
			w.Header().Set("Content-Length", "100")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"choices"`))
			return
		}
		chatResponse(w, "bonjour")
	}))
	defer srv.Close()

	delay := 50 * time.Millisecond
	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "fr", RetryDelay: delay})
	start := time.Now()
	got, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("a"); n.Str() != "bonjour" {
		t.Fatalf("a = %q, want bonjour", n.Str())
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("retried after %v, want at least %v of backoff", elapsed, delay)
	}

	atomic.StoreInt32(&calls, 0)
	c, _ = New(Options{Provider: testProvider(srv.URL), Language: "fr", MaxRetries: -1})
	_, err = c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusOK {
		t.Fatalf("Translate() error = %v, want ProviderError with status 200", err)
	}
}

func TestTranslateRetriesDisabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "fr", MaxRetries: -1})
	_, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusInternalServerError {
		t.Fatalf("error = %v, want 500 ProviderError", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestTranslateHonoursRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		chatResponse(w, "hola")
	}))
	defer srv.Close()

	c, _ := New(Options{Provider: testProvider(srv.URL), Language: "es"})
	got, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("a"); n.Str() != "hola" {
		t.Fatalf("a = %q, want hola", n.Str())
	}
}

func TestTranslateTimeoutIsProviderError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	prov := testProvider(srv.URL)
	prov.Timeout = 50 * time.Millisecond
	c, _ := New(Options{Provider: prov, Language: "fr", MaxRetries: -1})

	_, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != 0 {
		t.Fatalf("error = %v, want transport ProviderError", err)
	}
}

func TestTranslateThroughProxy(t *testing.T) {
	var proxiedHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.URL.Host
		chatResponse(w, "via proxy")
	}))
	defer proxy.Close()

	prov := testProvider("http://translate.invalid/v1")
	prov.Proxy = proxy.URL
	c, err := New(Options{Provider: prov, Language: "fr", MaxRetries: -1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	got, err := c.Translate(context.Background(), parse(t, `{"a":"hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("a"); n.Str() != "via proxy" {
		t.Fatalf("a = %q", n.Str())
	}
	if proxiedHost != "translate.invalid" {
		t.Fatalf("proxy saw host %q, want translate.invalid", proxiedHost)
	}
}

func TestTranslateConcurrentUse(t *testing.T) {
	srv, seen := newChatServer(t, "x:")
	c, err := New(Options{Provider: testProvider(srv.URL + "/v1"), Language: "fr"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tree := parse(t, fmt.Sprintf(`{"k":"v%d"}`, i))
			got, err := c.Translate(context.Background(), tree, "")
			if err != nil {
				errs <- err
				return
			}
			if n, _ := got.Get("k"); n.Str() != fmt.Sprintf("x:v%d", i) {
				errs <- fmt.Errorf("goroutine %d got %q", i, n.Str())
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(*seen) != 8 {
		t.Fatalf("provider saw %d requests, want 8", len(*seen))
	}
}

// ---------------------------------------------------------------------------
// Other formats
// ---------------------------------------------------------------------------

func TestTranslateGeminiFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			http.Error(w, "bad path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.Header.Get("x-goog-api-key") != "g-key" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"systemInstruction"`) {
			http.Error(w, "no system instruction", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Ciao"}]}}]}`)
	}))
	defer srv.Close()

	prov := ResolveProvider(ProviderGoogle, srv.URL, "g-key", "", "", 0)
	c, err := New(Options{Provider: prov, Language: "it"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	got, err := c.Translate(context.Background(), parse(t, `{"hi":"Hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("hi"); n.Str() != "Ciao" {
		t.Fatalf("hi = %q, want Ciao", n.Str())
	}
}

func TestTranslateAnthropicFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "a-key" || r.Header.Get("anthropic-version") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hej"}]}`)
	}))
	defer srv.Close()

	prov := ResolveProvider(ProviderAnthropic, srv.URL+"/v1", "a-key", "", "", 0)
	c, err := New(Options{Provider: prov, Language: "sv"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	got, err := c.Translate(context.Background(), parse(t, `{"hi":"Hello"}`), "")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if n, _ := got.Get("hi"); n.Str() != "Hej" {
		t.Fatalf("hi = %q, want Hej", n.Str())
	}
}

// ---------------------------------------------------------------------------
// Construction and helpers
// ---------------------------------------------------------------------------

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Provider: Provider{ID: "x", Model: "m"}}); err == nil {
		t.Fatal("New() without base URL should fail")
	}
	if _, err := New(Options{Provider: Provider{ID: "x", BaseURL: "http://h"}}); err == nil {
		t.Fatal("New() without model should fail")
	}
	prov := testProvider("http://h")
	prov.Proxy = "::not a url"
	if _, err := New(Options{Provider: prov}); err == nil {
		t.Fatal("New() with invalid proxy should fail")
	}
}

func TestResolveProvider(t *testing.T) {
	p := ResolveProvider("", "", "k", "", "", 0)
	if p.ID != ProviderMistral || p.Model != "mistral-small-latest" || p.APIKey != "k" || !p.KeyRequired {
		t.Fatalf("default provider = %+v", p)
	}

	p = ResolveProvider("OpenAI", "", "", "gpt-4o", "http://proxy:3128", 5*time.Second)
	if p.ID != ProviderOpenAI || p.Model != "gpt-4o" || p.Proxy != "http://proxy:3128" || p.Timeout != 5*time.Second {
		t.Fatalf("openai provider = %+v", p)
	}

	p = ResolveProvider("https://llm.example.com/v1", "https://llm.example.com/v1", "", "my-model", "", 0)
	if p.ID != ProviderCustomOpenAI || p.BaseURL != "https://llm.example.com/v1" {
		t.Fatalf("custom provider = %+v", p)
	}
}

func TestExtractResponseText(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "openai", body: `{"choices":[{"message":{"content":"a"}}]}`, want: "a"},
		{name: "openai no content", body: `{"choices":[{"message":{}}]}`, want: ""},
		{name: "gemini", body: `{"candidates":[{"content":{"parts":[{"text":"b"}]}}]}`, want: "b"},
		{name: "anthropic", body: `{"content":[{"type":"thinking"},{"type":"text","text":"c"}]}`, want: "c"},
		{name: "api error", body: `{"error":{"message":"quota"}}`, wantErr: true},
		{name: "unknown", body: `{"foo":1}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := extractResponseText([]byte(tc.body))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %q, %v; want %q", tc.name, got, err, tc.want)
		}
	}
}

func TestParseRetryDelay(t *testing.T) {
	fallback := time.Minute

	h := http.Header{}
	h.Set("Retry-After", "7")
	if got := parseRetryDelay(h, nil, fallback); got != 7*time.Second {
		t.Fatalf("Retry-After delay = %v, want 7s", got)
	}

	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"1.5s"}]}}`)
	if got := parseRetryDelay(http.Header{}, body, fallback); got != 1500*time.Millisecond {
		t.Fatalf("RetryInfo delay = %v, want 1.5s", got)
	}

	if got := parseRetryDelay(http.Header{}, []byte(`nope`), fallback); got != fallback {
		t.Fatalf("fallback delay = %v, want %v", got, fallback)
	}
}
