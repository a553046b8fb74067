package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheettools/internal/config"
	"github.com/JonMunkholm/sheettools/internal/ratelimit"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		App:    config.AppConfig{Env: config.EnvProduction, BaseURL: "https://tools.example.com/"},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
		},
		Rate: config.RateLimitConfig{Enabled: true, Window: time.Minute, Max: 30},
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"https://tools.example.com"},
		},
	}
}

// countingGenerator answers every prompt with raw and counts calls.
type countingGenerator struct {
	raw   string
	calls atomic.Int32
}

func (g *countingGenerator) Generate(context.Context, string) (string, error) {
	g.calls.Add(1)
	return g.raw, nil
}

// namesGenerator answers with a per-name result keyed by the prompt's input.
type namesGenerator map[string]transliterate.Result

func (g namesGenerator) Generate(_ context.Context, prompt string) (string, error) {
	for name, res := range g {
		if strings.HasSuffix(prompt, `Input: "`+name+`"`) {
			b, err := json.Marshal(res)
			return string(b), err
		}
	}
	return "{}", nil
}

func newServer(t *testing.T, cfg *config.Config, deps Deps) http.Handler {
	t.Helper()
	return NewServer(cfg, deps).Router()
}

func withLimiter(policy ratelimit.Policy) *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(policy))
}

func postJSON(t *testing.T, h http.Handler, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/transliterate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

// xlsxBytes builds an in-memory workbook whose first sheet holds rows.
func xlsxBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

// peopleWorkbook has a Name/Age header and n data rows.
func peopleWorkbook(t *testing.T, n int) []byte {
	t.Helper()
	rows := [][]any{{"Name", "Age"}}
	for i := 0; i < n; i++ {
		rows = append(rows, []any{"Person " + string(rune('A'+i)), 20 + i})
	}
	return xlsxBytes(t, rows...)
}

// uploadRequest builds a multipart POST carrying data as the "file" field
// plus any extra form fields.
func uploadRequest(t *testing.T, target, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
