package web

// errors.go turns handler errors into responses.
//
// Spreadsheet errors go through sheet.MapError and are rendered as JSON for
// API routes and as an alert on the tool page otherwise. Transliteration
// errors use the proxy's own {"error", "details"} envelope. Either way the
// technical error is logged with the request ID and never sent to clients.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheettools/internal/logging"
	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
	"github.com/JonMunkholm/sheettools/internal/web/pages"
)

// ErrorResponse represents the JSON structure for sheet API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// ProxyErrorResponse is the transliteration error envelope. Details is only
// present outside production.
type ProxyErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// sheetStatus picks the HTTP status for a spreadsheet pipeline error.
func sheetStatus(err error) int {
	switch {
	case errors.Is(err, sheet.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, sheet.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sheet.ErrTooManyConversions), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case sheet.IsUserFacing(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles sheet API errors with user-friendly messages.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := sheetStatus(err)
	userMsg := s.logSheetError(r, err, status)
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// respondToolError re-renders the tool page with an error alert.
func (s *Server) respondToolError(w http.ResponseWriter, r *http.Request, tool sheet.Tool, err error) {
	status := sheetStatus(err)
	userMsg := s.logSheetError(r, err, status)
	s.render(w, r, status, pages.ToolPage(pages.ToolView{Tool: tool, Error: &userMsg}))
}

func (s *Server) logSheetError(r *http.Request, err error, status int) sheet.UserMessage {
	userMsg := sheet.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}
	return userMsg
}

// writeProxyError writes a transliteration error. Upstream failures are
// already logged by the service.
func (s *Server) writeProxyError(w http.ResponseWriter, r *http.Request, err error) {
	e := transliterate.AsError(err)
	status := e.Kind.Status()
	if e.Kind == transliterate.KindInternal {
		logging.FromContext(r.Context()).Error("transliteration failed", "error", err)
	}
	writeJSON(w, status, ProxyErrorResponse{Error: e.Message, Details: e.Details})
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
