package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/sheettools/internal/transliterate"
)

// maxProxyBody caps the transliteration request body. Valid requests carry
// at most 200 characters of text.
const maxProxyBody = 16 << 10

// handleTransliterateOptions answers CORS preflight. It never touches the
// rate limiter or the upstream service.
func (s *Server) handleTransliterateOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleTransliterate validates {"text": "..."} and returns
// {"arabic": "...", "pronunciation": "..."}.
func (s *Server) handleTransliterate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeProxyError(w, r, &transliterate.Error{Kind: transliterate.KindBadRequest, Message: transliterate.MsgTextTooLong, Err: err})
			return
		}
		s.writeProxyError(w, r, &transliterate.Error{Kind: transliterate.KindBadRequest, Message: transliterate.MsgInvalidJSON, Err: err})
		return
	}

	text, err := transliterate.ParseRequest(body)
	if err != nil {
		s.writeProxyError(w, r, err)
		return
	}

	res, err := s.deps.Transliterator.Transliterate(r.Context(), text)
	if err != nil {
		s.writeProxyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
