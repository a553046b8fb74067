package transliterate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// GeminiClient calls the generateContent REST method.
type GeminiClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// NewGeminiClient creates a client for model at endpoint
// (e.g. https://generativelanguage.googleapis.com).
func NewGeminiClient(httpClient *http.Client, endpoint, model, apiKey string) *GeminiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiClient{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt and returns the first candidate's text, or "{}"
// when the envelope carries none.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindUpstreamUnavailable, Message: MsgUpstreamUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details := errorDetails(resp.Body)
		return "", &Error{
			Kind:    KindUpstreamError,
			Message: MsgUpstreamFailed,
			Details: details,
			Err:     fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", &Error{Kind: KindInvalidUpstreamResponse, Message: MsgInvalidUpstream, Err: err}
	}

	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 ||
		envelope.Candidates[0].Content.Parts[0].Text == "" {
		return "{}", nil
	}
	return envelope.Candidates[0].Content.Parts[0].Text, nil
}

// errorDetails renders an upstream error body: compact JSON when it parses,
// otherwise the raw text.
func errorDetails(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "Could not read error"
	}
	var buf bytes.Buffer
	if json.Compact(&buf, data) == nil {
		return buf.String()
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return "Unknown error"
}
