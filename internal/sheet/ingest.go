package sheet

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// IDColumn is the synthetic sequence column added by the viewer.
const IDColumn = "ID"

// Options tunes a single ingestion.
type Options struct {
	// AssignIDs appends an ID column numbered from 1 unless the sheet
	// already has an "ID" or "id" header.
	AssignIDs bool

	// MaxSize rejects uploads larger than this many bytes. Zero disables
	// the check.
	MaxSize int64
}

// Ingest validates, decodes and tabulates an upload.
//
// The extension is checked before any content is read. Only the first sheet
// is used; its first row is the header row.
func Ingest(ctx context.Context, up *Upload, opts Options) (*Dataset, error) {
	if up == nil || up.Reader == nil || up.Name == "" {
		return nil, ErrNoFile
	}
	format, err := DetectFormat(up.Name)
	if err != nil {
		return nil, err
	}
	if opts.MaxSize > 0 && up.Size > opts.MaxSize {
		return nil, ErrFileTooLarge
	}

	data, err := readUpload(up.Reader, opts.MaxSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheetName, rows, err := decode(format, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := tabulate(rows, opts.AssignIDs)
	if err != nil {
		return nil, err
	}
	ds.FileName = up.Name
	ds.FileSize = up.Size
	if ds.FileSize <= 0 {
		ds.FileSize = int64(len(data))
	}
	ds.SheetName = sheetName
	return ds, nil
}

func readUpload(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// tabulate zips the header row with every data row. Missing cells become
// empty; cells beyond the header width are dropped.
func tabulate(rows grid, assignIDs bool) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	headers := headerNames(rows[0])
	if len(headers) == 0 {
		return nil, ErrEmptyWorkbook
	}
	if len(rows) == 1 {
		return nil, ErrHeaderOnly
	}

	addID := assignIDs && !containsHeader(headers, IDColumn) && !containsHeader(headers, "id")

	records := make([]Record, 0, len(rows)-1)
	for i, src := range rows[1:] {
		rec := Record{fields: make([]Field, 0, len(headers)+1)}
		for c, name := range headers {
			var v Cell
			if c < len(src) {
				v = src[c]
			}
			rec.set(name, v)
		}
		if addID {
			rec.set(IDColumn, NumberCell(float64(i+1)))
		}
		records = append(records, rec)
	}

	if addID {
		headers = append(headers, IDColumn)
	}
	return &Dataset{Headers: headers, Rows: records}, nil
}

// headerNames renders the header row. Trailing blank cells are dropped,
// interior blanks are named "Column N" (1-based) and repeated names get a
// "_1", "_2", ... suffix so no column is lost.
func headerNames(row []Cell) []string {
	end := len(row)
	for end > 0 && row[end-1].IsEmpty() {
		end--
	}
	names := make([]string, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		name := row[i].String()
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		base := name
		for seen[name] > 0 {
			name = fmt.Sprintf("%s_%d", base, seen[base])
			seen[base]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func containsHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

// Workspace holds the single current dataset of one interactive session.
// Loading a new file replaces the previous dataset or error.
type Workspace struct {
	opts Options

	mu      sync.RWMutex
	dataset *Dataset
	err     error
}

// NewWorkspace creates an empty workspace that ingests with opts.
func NewWorkspace(opts Options) *Workspace {
	return &Workspace{opts: opts}
}

// Load ingests up and makes it current. On failure the workspace is left
// empty with the error recorded.
func (w *Workspace) Load(ctx context.Context, up *Upload) (*Dataset, error) {
	w.Clear()

	ds, err := Ingest(ctx, up, w.opts)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataset, w.err = ds, err
	return ds, err
}

// Dataset returns the current dataset, or nil.
func (w *Workspace) Dataset() *Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dataset
}

// Err returns the error from the last failed Load.
func (w *Workspace) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Clear discards the current dataset and error.
func (w *Workspace) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataset = nil
	w.err = nil
}
