package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngStub = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(body)
}

func TestGeminiInfer(t *testing.T) {
	var gotPath, gotBody string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = readBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"  Tap 'Create'  \n"}]}}]}`)
	})

	g, err := NewGemini(context.Background(), Options{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := g.Infer(context.Background(), "what next?", pngStub)
	require.NoError(t, err)
	assert.Equal(t, "Tap 'Create'", got)
	assert.True(t, strings.HasSuffix(gotPath, "gemini-2.5-flash:generateContent"), gotPath)
	assert.Contains(t, gotBody, "what next?")
	assert.Contains(t, gotBody, "image/png")
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOpenAIInfer(t *testing.T) {
	var gotPath string
	var req map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"PASS"}}]}`)
	})

	o, err := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := o.Infer(context.Background(), "verify", pngStub)
	require.NoError(t, err)
	assert.Equal(t, "PASS", got)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, DefaultOpenAIModel, req["model"])

	raw, _ := json.Marshal(req["messages"])
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestOpenAIStatusError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	})

	o, err := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = o.Infer(context.Background(), "p", nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestAnthropicInfer(t *testing.T) {
	var gotPath, gotBody string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = readBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"{\"action\": \"tap\", \"x\": 10, \"y\": 20}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	})

	a, err := NewAnthropic(Options{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := a.Infer(context.Background(), "locate", pngStub)
	require.NoError(t, err)
	assert.Equal(t, `{"action": "tap", "x": 10, "y": 20}`, got)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Contains(t, gotBody, `"media_type":"image/png"`)
}

func TestOllamaInfer(t *testing.T) {
	var req map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llava","response":" FAIL: crash \n","done":true}`)
	})

	o, err := NewOllama(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := o.Infer(context.Background(), "judge", pngStub)
	require.NoError(t, err)
	assert.Equal(t, "FAIL: crash", got)
	assert.Equal(t, DefaultOllamaModel, req["model"])
	assert.Len(t, req["images"], 1)
	assert.Equal(t, false, req["stream"])
}

func TestOllamaBadURL(t *testing.T) {
	_, err := NewOllama(Options{BaseURL: "://nope"})
	assert.Error(t, err)
}
