package transliterate

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

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantMsg string
	}{
		{"empty body", "", "", MsgInvalidJSON},
		{"not json", "text=hi", "", MsgInvalidJSON},
		{"truncated json", `{"text":`, "", MsgInvalidJSON},
		{"null", "null", "", MsgMissingText},
		{"array", `["John"]`, "", MsgMissingText},
		{"missing field", `{"name":"John"}`, "", MsgMissingText},
		{"non-string text", `{"text":42}`, "", MsgMissingText},
		{"blank text", `{"text":"   "}`, "", MsgMissingText},
		{"trimmed", `{"text":"  John Smith \n"}`, "John Smith", ""},
		{"200 chars", `{"text":"` + strings.Repeat("a", 200) + `"}`, strings.Repeat("a", 200), ""},
		{"201 chars", `{"text":"` + strings.Repeat("a", 201) + `"}`, "", MsgTextTooLong},
		{"200 multibyte chars", `{"text":"` + strings.Repeat("\u00e9", 200) + `"}`, strings.Repeat("\u00e9", 200), ""},
		{"trim before length", `{"text":"  ` + strings.Repeat("a", 200) + `  "}`, strings.Repeat("a", 200), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.body))
			if tt.wantMsg != "" {
				require.Error(t, err)
				e := AsError(err)
				assert.Equal(t, KindBadRequest, e.Kind)
				assert.Equal(t, tt.wantMsg, e.Message)
				assert.Equal(t, http.StatusBadRequest, e.Kind.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRequest_NormalizesDecomposedText(t *testing.T) {
	// "e" + combining acute accent, 200 times: 400 runes decomposed, 200 composed.
	decomposed := strings.Repeat("e\u0301", 200)
	got, err := ParseRequest([]byte(`{"text":"` + decomposed + `"}`))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("\u00e9", 200), got)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("John Smith")
	assert.True(t, strings.HasPrefix(p, "Transliterate the following English personal name(s) into Arabic script.\n"))
	assert.Contains(t, p, "keys: arabic (string), pronunciation (string)")
	assert.Contains(t, p, "kh=خ")
	assert.True(t, strings.HasSuffix(p, `Input: "John Smith"`))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Result
	}{
		{`{"arabic":"جون سميث","pronunciation":"John Smith"}`, Result{"جون سميث", "John Smith"}},
		{`{"arabic":"جون"}`, Result{Arabic: "جون"}},
		{`not json`, Result{}},
		{`{}`, Result{}},
		{`{"arabic":7,"pronunciation":null}`, Result{}},
		{`["a"]`, Result{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.raw), "normalize(%q)", tt.raw)
	}
}

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, KindRateLimited.Status())
	assert.Equal(t, http.StatusInternalServerError, KindMisconfigured.Status())
	assert.Equal(t, http.StatusBadGateway, KindUpstreamUnavailable.Status())
	assert.Equal(t, http.StatusBadGateway, KindUpstreamError.Status())
	assert.Equal(t, http.StatusBadGateway, KindInvalidUpstreamResponse.Status())
	assert.Equal(t, http.StatusInternalServerError, AsError(errors.New("x")).Kind.Status())
}

// geminiStub points a client at an httptest server running handler.
func geminiStub(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GeminiClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewGeminiClient(srv.Client(), srv.URL+"/", "gemini-1.5-flash", "test-key")
}

func envelope(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGeminiClient_Request(t *testing.T) {
	var got generateRequest
	_, client := geminiStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"), "key must not travel in the URL")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, envelope(`{"arabic":"x","pronunciation":"y"}`))
	})

	raw, err := client.Generate(context.Background(), "PROMPT")
	require.NoError(t, err)
	assert.Equal(t, `{"arabic":"x","pronunciation":"y"}`, raw)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "PROMPT", got.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.1, got.GenerationConfig.Temperature)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
}

func TestGeminiClient_EmptyEnvelope(t *testing.T) {
	_, client := geminiStub(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	})
	raw, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantKind    Kind
		wantMsg     string
		wantDetails string
	}{
		{
			name: "json error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				io.WriteString(w, `{ "error": { "code": 403 } }`)
			},
			wantKind:    KindUpstreamError,
			wantMsg:     MsgUpstreamFailed,
			wantDetails: `{"error":{"code":403}}`,
		},
		{
			name: "text error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, "overloaded")
			},
			wantKind:    KindUpstreamError,
			wantMsg:     MsgUpstreamFailed,
			wantDetails: "overloaded",
		},
		{
			name: "invalid envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>")
			},
			wantKind: KindInvalidUpstreamResponse,
			wantMsg:  MsgInvalidUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := geminiStub(t, tt.handler)
			_, err := client.Generate(context.Background(), "p")
			require.Error(t, err)
			e := AsError(err)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, tt.wantDetails, e.Details)
		})
	}
}

func TestGeminiClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewGeminiClient(nil, url, "m", "k")
	_, err := client.Generate(context.Background(), "p")
	assert.Equal(t, KindUpstreamUnavailable, AsError(err).Kind)
}

type stubGenerator struct {
	raw    string
	err    error
	prompt string
	calls  int
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.raw, g.err
}

func TestService_Misconfigured(t *testing.T) {
	svc := NewService(nil, Options{})
	assert.False(t, svc.Configured())

	_, err := svc.Transliterate(context.Background(), "John")
	e := AsError(err)
	assert.Equal(t, KindMisconfigured, e.Kind)
	assert.Equal(t, MsgNotConfigured, e.Message)
	assert.NotContains(t, e.Error(), "GOOGLE_API_KEY")
}

func TestService_Success(t *testing.T) {
	gen := &stubGenerator{raw: `{"arabic":"جون سميث","pronunciation":"John Smith"}`}
	svc := NewService(gen, Options{})

	res, err := svc.Transliterate(context.Background(), "John Smith")
	require.NoError(t, err)
	assert.Equal(t, Result{Arabic: "جون سميث", Pronunciation: "John Smith"}, res)
	assert.Equal(t, BuildPrompt("John Smith"), gen.prompt)
}

func TestService_LenientAnswer(t *testing.T) {
	svc := NewService(&stubGenerator{raw: "definitely not json"}, Options{})
	res, err := svc.Transliterate(context.Background(), "John")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestService_DetailsOnlyWhenExposed(t *testing.T) {
	upstreamErr := &Error{Kind: KindUpstreamError, Message: MsgUpstreamFailed, Details: "quota"}

	_, err := NewService(&stubGenerator{err: upstreamErr}, Options{}).Transliterate(context.Background(), "a")
	assert.Empty(t, AsError(err).Details)
	assert.Equal(t, "quota", upstreamErr.Details, "original error must not be mutated")

	_, err = NewService(&stubGenerator{err: upstreamErr}, Options{ExposeDetails: true}).Transliterate(context.Background(), "a")
	assert.Equal(t, "quota", AsError(err).Details)
}

func TestService_Timeout(t *testing.T) {
	_, client := geminiStub(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	svc := NewService(client, Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := svc.Transliterate(context.Background(), "John")
	assert.Less(t, time.Since(start), 2*time.Second)

	e := AsError(err)
	assert.Equal(t, KindUpstreamUnavailable, e.Kind)
	assert.Equal(t, MsgUpstreamUnavailable, e.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_OutboundRateLimit(t *testing.T) {
	gen := &stubGenerator{raw: "{}"}
	// One token, refilled far slower than the timeout.
	svc := NewService(gen, Options{Timeout: 20 * time.Millisecond, RequestsPerSecond: 0.001, Burst: 1})

	_, err := svc.Transliterate(context.Background(), "a")
	require.NoError(t, err)

	_, err = svc.Transliterate(context.Background(), "b")
	assert.Equal(t, KindUpstreamUnavailable, AsError(err).Kind)
	assert.Equal(t, 1, gen.calls)
}

type funcGenerator func(ctx context.Context, prompt string) (string, error)

func (f funcGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func namesGenerator(answers map[string]string) funcGenerator {
	return func(_ context.Context, prompt string) (string, error) {
		for name, raw := range answers {
			if strings.HasSuffix(prompt, `Input: "`+name+`"`) {
				return raw, nil
			}
		}
		return "{}", nil
	}
}

func TestService_TransliterateName(t *testing.T) {
	svc := NewService(namesGenerator(map[string]string{
		"John":  `{"arabic":"جون","pronunciation":"John"}`,
		"Smith": `{"arabic":"سميث","pronunciation":"Smith"}`,
	}), Options{})

	res, err := svc.TransliterateName(context.Background(), " John ", "", "Smith")
	require.NoError(t, err)
	assert.Equal(t, Result{Arabic: "جون سميث", Pronunciation: "John Smith"}, res)
}

func TestService_TransliterateNameValidation(t *testing.T) {
	svc := NewService(namesGenerator(nil), Options{})

	_, err := svc.TransliterateName(context.Background(), "", "  ", "")
	assert.Equal(t, MsgMissingText, AsError(err).Message)

	_, err = svc.TransliterateName(context.Background(), "John", strings.Repeat("a", 201))
	assert.Equal(t, MsgTextTooLong, AsError(err).Message)
}

func TestService_TransliterateNamePartFails(t *testing.T) {
	gen := funcGenerator(func(_ context.Context, prompt string) (string, error) {
		if strings.HasSuffix(prompt, `"Smith"`) {
			return "", &Error{Kind: KindUpstreamError, Message: MsgUpstreamFailed}
		}
		return `{"arabic":"جون","pronunciation":"John"}`, nil
	})

	_, err := NewService(gen, Options{}).TransliterateName(context.Background(), "John", "Smith")
	e := AsError(err)
	assert.Equal(t, KindUpstreamError, e.Kind)
	assert.Equal(t, MsgUpstreamFailed, e.Message)
}
