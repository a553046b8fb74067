package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheettools/internal/ratelimit"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
)

const johnSmith = `{"arabic":"جون سميث","pronunciation":"John Smith"}`

func assertProxyHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assertCORSHeaders(t, rec)
}

func assertCORSHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := rec.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", h.Get("Permissions-Policy"))
	assert.Contains(t, h.Values("Vary"), "Origin")
	assert.Equal(t, "POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", h.Get("Access-Control-Allow-Headers"))
}

func TestTransliterate_EndToEnd(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		b, _ := json.Marshal(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": johnSmith}}},
			}},
		})
		w.Write(b)
	}))
	defer upstream.Close()

	svc := transliterate.NewService(
		transliterate.NewGeminiClient(upstream.Client(), upstream.URL, "gemini-1.5-flash", "k"),
		transliterate.Options{},
	)
	h := newServer(t, testConfig(), Deps{Transliterator: svc, RateLimiter: withLimiter(ratelimit.DefaultPolicy)})

	rec := postJSON(t, h, `{"text":"John Smith"}`, "Origin", "https://tools.example.com")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, johnSmith, rec.Body.String())
	assertProxyHeaders(t, rec)
	assert.Equal(t, "https://tools.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, got["contents"].([]any)[0].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"], `Input: "John Smith"`)
}

func TestTransliterate_DisallowedOrigin(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{Transliterator: transliterate.NewService(gen, transliterate.Options{})})

	rec := postJSON(t, h, `{"text":"John"}`, "Origin", "https://evil.example")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assertProxyHeaders(t, rec)
}

func TestTransliterate_BadRequests(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{Transliterator: transliterate.NewService(gen, transliterate.Options{})})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "Invalid JSON"},
		{"malformed", "{", "Invalid JSON"},
		{"missing text", `{"name":"John"}`, "Missing 'text' string"},
		{"blank text", `{"text":"  "}`, "Missing 'text' string"},
		{"too long", `{"text":"` + strings.Repeat("a", 201) + `"}`, "Text too long (max 200 chars)"},
		{"oversized body", `{"text":"` + strings.Repeat("a", maxProxyBody) + `"}`, "Text too long (max 200 chars)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": tt.want}, decodeBody(t, rec))
			assertProxyHeaders(t, rec)
		})
	}
	assert.Zero(t, gen.calls.Load(), "invalid requests must not reach upstream")
}

func TestTransliterate_RateLimit(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{
		Transliterator: transliterate.NewService(gen, transliterate.Options{}),
		RateLimiter:    withLimiter(ratelimit.DefaultPolicy),
	})

	for i := 0; i < 30; i++ {
		rec := postJSON(t, h, `{"text":"John"}`, "X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := postJSON(t, h, `{"text":"John"}`, "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, map[string]any{"error": "Rate limit exceeded"}, decodeBody(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assertProxyHeaders(t, rec)

	// Rejected requests are counted before the body is even parsed.
	rec = postJSON(t, h, "", "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = postJSON(t, h, `{"text":"John"}`, "X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own window")

	assert.EqualValues(t, 31, gen.calls.Load())
}

func TestTransliterate_RateLimitUnknownClientsShareWindow(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{
		Transliterator: transliterate.NewService(gen, transliterate.Options{}),
		RateLimiter:    withLimiter(ratelimit.Policy{Window: time.Minute, Max: 1}),
	})

	assert.Equal(t, http.StatusOK, postJSON(t, h, `{"text":"a"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, h, `{"text":"a"}`).Code)
}

func TestTransliterate_RateLimitResetsAfterWindow(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{
		Transliterator: transliterate.NewService(gen, transliterate.Options{}),
		RateLimiter:    withLimiter(ratelimit.Policy{Window: 50 * time.Millisecond, Max: 2}),
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postJSON(t, h, `{"text":"a"}`, "X-Forwarded-For", "c").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, postJSON(t, h, `{"text":"a"}`, "X-Forwarded-For", "c").Code)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, http.StatusOK, postJSON(t, h, `{"text":"a"}`, "X-Forwarded-For", "c").Code)
}

func TestTransliterate_OptionsNeverCountsOrCallsUpstream(t *testing.T) {
	gen := &countingGenerator{raw: johnSmith}
	h := newServer(t, testConfig(), Deps{
		Transliterator: transliterate.NewService(gen, transliterate.Options{}),
		RateLimiter:    withLimiter(ratelimit.Policy{Window: time.Minute, Max: 1}),
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/api/transliterate", nil)
		req.Header.Set("Origin", "https://tools.example.com")
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rec := serve(h, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Type"))
		assert.Equal(t, "https://tools.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assertCORSHeaders(t, rec)
	}
	assert.Zero(t, gen.calls.Load())

	rec := postJSON(t, h, `{"text":"John"}`, "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusOK, rec.Code, "preflights must not use up the window")
}

func TestTransliterate_NotConfigured(t *testing.T) {
	h := newServer(t, testConfig(), Deps{})

	rec := postJSON(t, h, `{"text":"John"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Server not configured"}, decodeBody(t, rec))
	assertProxyHeaders(t, rec)
}

func TestTransliterate_UpstreamTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer upstream.Close()

	svc := transliterate.NewService(
		transliterate.NewGeminiClient(upstream.Client(), upstream.URL, "m", "k"),
		transliterate.Options{Timeout: 50 * time.Millisecond},
	)
	h := newServer(t, testConfig(), Deps{Transliterator: svc})

	rec := postJSON(t, h, `{"text":"John"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]any{"error": "Upstream unavailable"}, decodeBody(t, rec))
}

func TestTransliterate_UpstreamErrorDetails(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer upstream.Close()
	client := transliterate.NewGeminiClient(upstream.Client(), upstream.URL, "m", "k")

	tests := []struct {
		name   string
		expose bool
		want   map[string]any
	}{
		{"production", false, map[string]any{"error": "Transliteration failed"}},
		{"development", true, map[string]any{
			"error":   "Transliteration failed",
			"details": `{"error":{"status":"RESOURCE_EXHAUSTED"}}`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := transliterate.NewService(client, transliterate.Options{ExposeDetails: tt.expose})
			rec := postJSON(t, newServer(t, testConfig(), Deps{Transliterator: svc}), `{"text":"John"}`)

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec))
		})
	}
}

func TestTransliterate_MethodNotAllowed(t *testing.T) {
	h := newServer(t, testConfig(), Deps{})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/transliterate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
