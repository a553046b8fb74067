package sheet

import (
	"fmt"
	"sort"
	"sync"
)

// Capability is a set of operations a tool exposes.
type Capability uint8

const (
	CapPreview Capability = 1 << iota
	CapCSV
	CapJSON
)

// Tool is one page built on the shared pipeline.
type Tool struct {
	Key         string // URL segment, e.g. "xls-to-csv"
	Title       string
	Description string
	Order       int

	Caps      Capability
	AssignIDs bool

	// FileSuffix is appended to the stem of download names ("_data").
	FileSuffix string
	// FallbackStem is used when the original name has no stem.
	FallbackStem string
}

// Supports reports whether every capability in c is enabled.
func (t Tool) Supports(c Capability) bool {
	return t.Caps&c == c
}

// SupportsFormat reports whether the tool offers downloads in f.
func (t Tool) SupportsFormat(f ExportFormat) bool {
	switch f {
	case FormatCSV:
		return t.Supports(CapCSV)
	case FormatJSON:
		return t.Supports(CapJSON)
	default:
		return false
	}
}

// Formats lists the export formats offered by the tool.
func (t Tool) Formats() []ExportFormat {
	var out []ExportFormat
	for _, f := range []ExportFormat{FormatCSV, FormatJSON} {
		if t.SupportsFormat(f) {
			out = append(out, f)
		}
	}
	return out
}

// Options returns the ingestion options for the tool.
func (t Tool) Options(maxSize int64) Options {
	return Options{AssignIDs: t.AssignIDs, MaxSize: maxSize}
}

// FileName derives the download name from the uploaded file name.
//
//	viewer:    "report.xlsx" -> "report_data.csv"
//	converter: "report.xlsx" -> "report.json"
func (t Tool) FileName(original string, f ExportFormat) string {
	return FileStem(original, t.FallbackStem) + t.FileSuffix + "." + string(f)
}

// Export checks the tool's capabilities before encoding ds.
func (t Tool) Export(ds *Dataset, f ExportFormat) ([]byte, error) {
	if !t.SupportsFormat(f) {
		return nil, fmt.Errorf("%w: %s does not export %s", ErrUnsupportedExport, t.Key, f)
	}
	return Export(ds, f)
}

var (
	registry   = make(map[string]Tool)
	registryMu sync.RWMutex
)

// Register adds a tool to the registry.
// Panics if a tool with the same key is already registered.
func Register(t Tool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Key]; exists {
		panic(fmt.Sprintf("tool already registered: %s", t.Key))
	}
	registry[t.Key] = t
}

// Get returns a tool by key.
func Get(key string) (Tool, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[key]
	return t, ok
}

// Lookup is Get with an ErrUnknownTool error.
func Lookup(key string) (Tool, error) {
	t, ok := Get(key)
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, key)
	}
	return t, nil
}

// All returns every registered tool sorted by Order then Key.
func All() []Tool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Tool, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ToolCount returns the number of registered tools.
func ToolCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Built-in tool keys.
const (
	ToolViewer = "xls-file-opener"
	ToolCSV    = "xls-to-csv"
	ToolJSON   = "xls-to-json"
)

func init() {
	Register(Tool{
		Key:          ToolViewer,
		Title:        "XLS File Opener",
		Description:  "Open Excel files online, preview the first rows and download them as CSV or JSON.",
		Order:        1,
		Caps:         CapPreview | CapCSV | CapJSON,
		AssignIDs:    true,
		FileSuffix:   "_data",
		FallbackStem: "export",
	})
	Register(Tool{
		Key:          ToolCSV,
		Title:        "Excel to CSV Converter",
		Description:  "Convert the first sheet of an Excel workbook to a CSV file.",
		Order:        2,
		Caps:         CapPreview | CapCSV,
		FallbackStem: "converted",
	})
	Register(Tool{
		Key:          ToolJSON,
		Title:        "Excel to JSON Converter",
		Description:  "Convert the first sheet of an Excel workbook to a JSON array.",
		Order:        3,
		Caps:         CapPreview | CapJSON,
		FallbackStem: "converted",
	})
}
