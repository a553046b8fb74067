package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ExportFormat is a downloadable encoding of a dataset.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat accepts "csv" or "json" in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExport, s)
	}
}

// ContentType returns the MIME type used for downloads.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Export encodes ds in the given format.
func Export(ds *Dataset, f ExportFormat) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportDelimited(ds), nil
	case FormatJSON:
		return ExportStructured(ds)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExport, f)
	}
}

// ExportDelimited renders the dataset as comma-separated text.
//
// The first line is the header names joined by commas; a header is quoted
// only when it contains a comma, quote or line break. Every data cell is
// wrapped in double quotes with embedded quotes doubled. Lines are joined
// by "\n" with no trailing newline.
func ExportDelimited(ds *Dataset) []byte {
	var buf bytes.Buffer
	for i, h := range ds.Headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		if strings.ContainsAny(h, ",\"\r\n") {
			writeQuoted(&buf, h)
		} else {
			buf.WriteString(h)
		}
	}
	for _, row := range ds.Rows {
		buf.WriteByte('\n')
		for i, h := range ds.Headers {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeQuoted(&buf, row.Value(h).String())
		}
	}
	return buf.Bytes()
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(s, `"`, `""`))
	buf.WriteByte('"')
}

// ExportStructured renders the rows as a JSON array of flat objects with
// two-space indentation. Keys keep header order and HTML characters are not
// escaped, so parsing and re-exporting yields identical bytes.
func ExportStructured(ds *Dataset) ([]byte, error) {
	return encodeRecords(ds.Rows)
}

func encodeRecords(rows []Record) ([]byte, error) {
	if rows == nil {
		rows = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseStructured reads output of ExportStructured back into records.
func ParseStructured(data []byte) ([]Record, error) {
	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return rows, nil
}

// FileStem returns the part of a file name before its first dot, or
// fallback when that part is empty.
func FileStem(name, fallback string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	stem, _, _ := strings.Cut(base, ".")
	if stem == "" {
		return fallback
	}
	return stem
}
