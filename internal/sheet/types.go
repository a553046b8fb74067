package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// numericRegex matches plain decimal numbers, optionally in scientific
// notation. Hex floats, Inf and NaN are deliberately excluded.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CellKind tags the value held by a Cell.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is a single spreadsheet scalar.
type Cell struct {
	Kind CellKind
	Text string
	Num  float64
}

// TextCell returns a text cell, or an empty cell for "".
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Num: f}
}

// ParseCell interprets a raw decoded value: plain decimal numbers become
// numbers, everything else stays text.
func ParseCell(raw string) Cell {
	if raw == "" {
		return Cell{}
	}
	if numericRegex.MatchString(raw) {
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return NumberCell(f)
		}
	}
	return TextCell(raw)
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String renders the cell for display and CSV export.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes empty cells as "", text as a string and numbers as
// JSON numbers. HTML characters are not escaped.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return json.Marshal(c.Num)
	case CellText:
		return marshalString(c.Text)
	default:
		return []byte(`""`), nil
	}
}

// UnmarshalJSON accepts strings and numbers. "" and null decode to Empty.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = Cell{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = TextCell(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("cell: expected string or number, got %s", b)
	}
	*c = NumberCell(f)
	return nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Cell
}

// Record is one data row keyed by header name, in header order.
type Record struct {
	fields []Field
}

// NewRecord builds a record from fields. A repeated name overwrites the
// earlier value but keeps its position.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.set(f.Name, f.Value)
	}
	return r
}

func (r *Record) set(name string, v Cell) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Get returns the value stored under name.
func (r Record) Get(name string) (Cell, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Cell{}, false
}

// Value returns the value stored under name, or an empty cell.
func (r Record) Value(name string) Cell {
	c, _ := r.Get(name)
	return c
}

// Keys returns the record's field names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the record's fields.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// MarshalJSON writes the record as a flat object with keys in header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object, keeping key order.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object")
	}

	r.fields = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected key, got %v", tok)
		}
		var c Cell
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("record: field %q: %w", name, err)
		}
		r.set(name, c)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Dataset is the header and rows derived from the first sheet of a workbook.
// It is not modified after Ingest returns it.
type Dataset struct {
	Headers   []string
	Rows      []Record
	FileName  string
	FileSize  int64
	SheetName string
}

// Summary is the display line shown after a successful upload.
type Summary struct {
	SizeKB  string `json:"sizeKb"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Summary returns size (KB, one decimal) and row/column counts.
func (d *Dataset) Summary() Summary {
	return Summary{
		SizeKB:  strconv.FormatFloat(float64(d.FileSize)/1024, 'f', 1, 64),
		Rows:    len(d.Rows),
		Columns: len(d.Headers),
	}
}

// Upload is one user-provided file. It only lives for a single ingestion.
type Upload struct {
	ID     string
	Name   string
	Size   int64
	Reader io.Reader
}

// NewUpload wraps an uploaded file. Only the base name is kept.
func NewUpload(name string, size int64, r io.Reader) *Upload {
	return &Upload{
		ID:     uuid.NewString(),
		Name:   filepath.Base(name),
		Size:   size,
		Reader: r,
	}
}
