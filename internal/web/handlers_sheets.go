package web

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheettools/internal/logging"
	"github.com/JonMunkholm/sheettools/internal/sheet"
)

// multipartOverhead is the allowance for multipart framing and small form
// fields on top of the file size limit.
const multipartOverhead = 64 << 10

// maxFormMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const maxFormMemory = 8 << 20

// ToolInfo describes a tool for GET /api/tools.
type ToolInfo struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	Preview     bool     `json:"preview"`
	Formats     []string `json:"formats"`
}

// PreviewResponse is the JSON body of a preview request.
type PreviewResponse struct {
	FileName  string         `json:"fileName"`
	FileSize  int64          `json:"fileSize"`
	SheetName string         `json:"sheetName,omitempty"`
	Headers   []string       `json:"headers"`
	Rows      []sheet.Record `json:"rows"`
	TotalRows int            `json:"totalRows"`
	Expanded  bool           `json:"expanded"`
	Summary   sheet.Summary  `json:"summary"`
}

// handleListTools returns all registered spreadsheet tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := sheet.All()
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		formats := make([]string, 0, 2)
		for _, f := range t.Formats() {
			formats = append(formats, string(f))
		}
		out = append(out, ToolInfo{
			Key:         t.Key,
			Title:       t.Title,
			Description: t.Description,
			Path:        toolPath(t.Key),
			Preview:     t.Supports(sheet.CapPreview),
			Formats:     formats,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSheetPreview ingests the uploaded file and returns its headers and
// the first rows, or all rows with ?expanded=true.
func (s *Server) handleSheetPreview(w http.ResponseWriter, r *http.Request) {
	tool, err := sheet.Lookup(chi.URLParam(r, "tool"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !tool.Supports(sheet.CapPreview) {
		s.respondError(w, r, fmt.Errorf("%w: %s has no preview", sheet.ErrUnsupportedExport, tool.Key))
		return
	}

	ds, err := s.ingest(w, r, tool)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	expanded := queryBool(r, "expanded")
	writeJSON(w, http.StatusOK, PreviewResponse{
		FileName:  ds.FileName,
		FileSize:  ds.FileSize,
		SheetName: ds.SheetName,
		Headers:   ds.Headers,
		Rows:      sheet.Preview(ds, expanded),
		TotalRows: len(ds.Rows),
		Expanded:  expanded,
		Summary:   ds.Summary(),
	})
}

// handleSheetExport ingests the uploaded file and returns it as a CSV or
// JSON attachment.
func (s *Server) handleSheetExport(w http.ResponseWriter, r *http.Request) {
	tool, err := sheet.Lookup(chi.URLParam(r, "tool"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := sheet.ParseExportFormat(chi.URLParam(r, "format"))
	if err == nil && !tool.SupportsFormat(format) {
		err = fmt.Errorf("%w: %s does not export %s", sheet.ErrUnsupportedExport, tool.Key, format)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ds, err := s.ingest(w, r, tool)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.sendExport(w, r, tool, ds, format); err != nil {
		s.respondError(w, r, err)
	}
}

// ingest reads the multipart "file" field and runs it through the
// conversion limiter.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request, tool sheet.Tool) (*sheet.Dataset, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, fmt.Errorf("%w: %v", sheet.ErrFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", sheet.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sheet.ErrNoFile, err)
	}
	defer file.Close()

	up := sheet.NewUpload(header.Filename, header.Size, file)
	log := logging.WithFields(r.Context(), "upload_id", up.ID, "file", up.Name, "tool", tool.Key)
	log.Debug("ingest started", "size", up.Size)

	ds, err := s.deps.Conversions.Ingest(r.Context(), up, tool.Options(maxSize))
	if err != nil {
		return nil, err
	}

	log.Info("ingest completed", "rows", len(ds.Rows), "columns", len(ds.Headers), "sheet", ds.SheetName)
	return ds, nil
}

// sendExport encodes ds and writes it as a download named after the upload.
func (s *Server) sendExport(w http.ResponseWriter, r *http.Request, tool sheet.Tool, ds *sheet.Dataset, f sheet.ExportFormat) error {
	data, err := tool.Export(ds, f)
	if err != nil {
		return err
	}

	name := tool.FileName(ds.FileName, f)
	w.Header().Set("Content-Type", f.ContentType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "file", name, "error", err)
	}
	return nil
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
