package web

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/web/pages"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

// sitemapURLs lists the public pages under base.
func sitemapURLs(base string) []sitemapURL {
	base = strings.TrimRight(base, "/")
	urls := []sitemapURL{{Loc: base + "/", ChangeFreq: "weekly", Priority: 1}}
	for _, t := range sheet.All() {
		urls = append(urls, sitemapURL{Loc: base + pages.ToolPath(t.Key), ChangeFreq: "weekly", Priority: 0.8})
	}
	return append(urls, sitemapURL{Loc: base + pages.NameGeneratorPath, ChangeFreq: "weekly", Priority: 0.8})
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(urlSet{XMLNS: sitemapNS, URLs: sitemapURLs(s.cfg.App.BaseURL)}); err != nil {
		slog.Error("sitemap encode error", "error", err)
	}
}

// HealthResponse reports liveness and conversion load.
type HealthResponse struct {
	Status      string              `json:"status"`
	Tools       int                 `json:"tools"`
	Conversions sheet.LimiterStatus `json:"conversions"`
	Upstream    bool                `json:"upstreamConfigured"`
	RateLimited bool                `json:"rateLimited"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Tools:       sheet.ToolCount(),
		Conversions: s.deps.Conversions.Status(),
		Upstream:    s.deps.Transliterator.Configured(),
		RateLimited: s.deps.RateLimiter != nil,
	})
}
