package web

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheettools/internal/logging"
	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
	mw "github.com/JonMunkholm/sheettools/internal/web/middleware"
	"github.com/JonMunkholm/sheettools/internal/web/pages"
)

func toolPath(key string) string {
	return pages.ToolPath(key)
}

// render buffers c so a rendering failure can still become a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pages.Index(sheet.All()))
}

// handleNotFound answers unknown routes and tools.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	msg := sheet.UserMessage{
		Message: "Page not found",
		Action:  "Check the address or start from the home page.",
		Code:    "WEB404",
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code})
		return
	}
	s.render(w, r, http.StatusNotFound, pages.NotFoundPage(msg.Message, msg.Action, msg.Code))
}

func (s *Server) handleToolPage(w http.ResponseWriter, r *http.Request) {
	tool, ok := sheet.Get(chi.URLParam(r, "tool"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, pages.ToolPage(pages.ToolView{Tool: tool}))
}

// handleToolSubmit processes the tool form: action "preview" re-renders the
// page with a preview, "csv" and "json" download the converted file.
func (s *Server) handleToolSubmit(w http.ResponseWriter, r *http.Request) {
	tool, ok := sheet.Get(chi.URLParam(r, "tool"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	ds, err := s.ingest(w, r, tool)
	if err != nil {
		s.respondToolError(w, r, tool, err)
		return
	}

	action := r.FormValue("action")
	if action == "" || action == "preview" {
		s.render(w, r, http.StatusOK, pages.ToolPage(pages.ToolView{
			Tool:     tool,
			Dataset:  ds,
			Expanded: r.FormValue("expanded") == "true",
		}))
		return
	}

	format, err := sheet.ParseExportFormat(action)
	if err != nil {
		s.respondToolError(w, r, tool, err)
		return
	}
	if err := s.sendExport(w, r, tool, ds, format); err != nil {
		s.respondToolError(w, r, tool, err)
	}
}

func (s *Server) handleNamePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pages.NameGenerator(pages.NameView{}))
}

// handleNameSubmit transliterates each name part. Every non-blank part
// counts as one request against the caller's rate limit, the same as
// calling /api/transliterate once per part.
func (s *Server) handleNameSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProxyBody)
	if err := r.ParseForm(); err != nil {
		view := pages.NameView{Error: "Invalid form submission"}
		s.render(w, r, http.StatusBadRequest, pages.NameGenerator(view))
		return
	}

	view := pages.NameView{
		First:  r.PostFormValue("first"),
		Middle: r.PostFormValue("middle"),
		Last:   r.PostFormValue("last"),
	}

	if s.deps.RateLimiter != nil {
		key := mw.ForwardedClientKey(r)
		for _, part := range []string{view.First, view.Middle, view.Last} {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if !s.deps.RateLimiter.Allow(r.Context(), key) {
				view.Error = transliterate.MsgRateLimited
				s.render(w, r, http.StatusTooManyRequests, pages.NameGenerator(view))
				return
			}
		}
	}

	res, err := s.deps.Transliterator.TransliterateName(r.Context(), view.First, view.Middle, view.Last)
	if err != nil {
		e := transliterate.AsError(err)
		view.Error = e.Message
		s.render(w, r, e.Kind.Status(), pages.NameGenerator(view))
		return
	}
	view.Result = &res
	s.render(w, r, http.StatusOK, pages.NameGenerator(view))
}
