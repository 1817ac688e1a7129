package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// FAKES
// =========================================================================

type fakeProvider struct {
	reply   string
	err     error
	block   bool // wait for ctx to end
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type observation struct {
	provider, outcome string
}

type recordingMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *recordingMetrics) ObserveSummarization(provider, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{provider, outcome})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// =========================================================================
// CLIENT
// =========================================================================

func TestSummarize_Success(t *testing.T) {
	p := &fakeProvider{reply: "  A short summary.\n"}
	m := &recordingMetrics{}
	c := NewClient(p, time.Second, testLogger(), WithMetrics(m))

	got, err := c.Summarize(context.Background(), "Some long article.", model.StyleShort, "English")

	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)
	require.Len(t, p.prompts, 1)
	assert.True(t, strings.HasSuffix(p.prompts[0], "Some long article."))
	assert.Equal(t, []observation{{"fake", OutcomeSuccess}}, m.obs)
}

func TestSummarize_BlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		p := &fakeProvider{reply: "never"}
		c := NewClient(p, time.Second, testLogger())

		_, err := c.Summarize(context.Background(), text, model.StyleShort, "English")

		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Empty(t, p.prompts, "provider must not be called for %q", text)
	}
}

func TestSummarize_NoProvider(t *testing.T) {
	c := NewClient(nil, time.Second, testLogger())

	_, err := c.Summarize(context.Background(), "text", model.StyleShort, "English")

	require.ErrorIs(t, err, apperror.ErrConfig)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Summarization service is not configured", appErr.Message)
	assert.False(t, c.Available())
	assert.Equal(t, "", c.ProviderName())
}

func TestSummarize_ProviderFailures(t *testing.T) {
	cases := []struct {
		name    string
		p       *fakeProvider
		outcome string
		details string
	}{
		{"provider error", &fakeProvider{err: errors.New("insufficient credits")}, OutcomeError, "insufficient credits"},
		{"empty reply", &fakeProvider{reply: "  "}, OutcomeEmpty, "empty response"},
		{"timeout", &fakeProvider{block: true}, OutcomeTimeout, "no reply within"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &recordingMetrics{}
			c := NewClient(tc.p, 20*time.Millisecond, testLogger(), WithMetrics(m))

			_, err := c.Summarize(context.Background(), "text", model.StyleShort, "English")

			require.ErrorIs(t, err, apperror.ErrUpstream)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "Failed to generate summary", appErr.Message)
			assert.Contains(t, appErr.Details, tc.details)
			assert.Equal(t, []observation{{"fake", tc.outcome}}, m.obs)
		})
	}
}

// =========================================================================
// PROMPT
// =========================================================================

func TestBuildPrompt(t *testing.T) {
	text := "Line one.\n\nLine two with \"quotes\"."

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, BuildPrompt(text, model.StyleBullet, "French"), BuildPrompt(text, model.StyleBullet, "French"))
	})

	t.Run("text is last and verbatim", func(t *testing.T) {
		p := BuildPrompt(text, model.StyleDetailed, "English")
		assert.True(t, strings.HasSuffix(p, "\n"+text))
	})

	t.Run("style and language directives", func(t *testing.T) {
		for _, st := range model.Styles {
			p := BuildPrompt(text, st, "German")
			assert.Contains(t, p, styleDirectives[st])
			assert.Contains(t, p, "in German")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		p := BuildPrompt(text, "", "  ")
		assert.Contains(t, p, styleDirectives[model.DefaultStyle])
		assert.Contains(t, p, "in "+model.DefaultLanguage)
	})
}

// =========================================================================
// OPENAI-COMPATIBLE PROVIDER
// =========================================================================

func TestOpenAIProvider_Complete(t *testing.T) {
	var got struct {
		Model               string `json:"model"`
		MaxCompletionTokens int    `json:"max_completion_tokens"`
		Messages            []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"openai/gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"A short summary."},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		Name:      "openrouter",
		APIKey:    "sk-test",
		BaseURL:   srv.URL,
		Model:     "openai/gpt-4o",
		MaxTokens: 500,
	})

	reply, err := p.Complete(context.Background(), "summarize this")

	require.NoError(t, err)
	assert.Equal(t, "A short summary.", reply)
	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "openai/gpt-4o", got.Model)
	assert.Equal(t, 500, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "summarize this", got.Messages[0].Content)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	t.Run("api error carries provider message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = io.WriteString(w, `{"error":{"message":"Insufficient credits","type":"billing","code":402}}`)
		}))
		defer srv.Close()

		c := NewClient(NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}), time.Second, testLogger())
		_, err := c.Summarize(context.Background(), "text", model.StyleShort, "English")

		require.ErrorIs(t, err, apperror.ErrUpstream)
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, appErr.Details, "Insufficient credits")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
		}))
		defer srv.Close()

		p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
		_, err := p.Complete(context.Background(), "x")

		assert.ErrorIs(t, err, ErrEmptyResponse)
		assert.Equal(t, "openai", p.Name())
	})
}

// =========================================================================
// GEMINI PROVIDER
// =========================================================================

func TestGeminiProvider_Complete(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Gemini summary."}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{
		APIKey:    "g-test",
		Model:     "gemini-2.0-flash",
		MaxTokens: 500,
		BaseURL:   srv.URL + "/",
	})
	require.NoError(t, err)

	reply, err := p.Complete(context.Background(), "summarize this")

	require.NoError(t, err)
	assert.Equal(t, "Gemini summary.", reply)
	assert.Equal(t, "gemini", p.Name())
	assert.Contains(t, path, "gemini-2.0-flash:generateContent")
}
