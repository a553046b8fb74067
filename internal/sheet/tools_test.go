package sheet

import (
	"errors"
	"testing"
)

func TestRegistry_BuiltinTools(t *testing.T) {
	if got := ToolCount(); got != 3 {
		t.Fatalf("ToolCount() = %d, want 3", got)
	}

	all := All()
	wantOrder := []string{ToolViewer, ToolCSV, ToolJSON}
	for i, key := range wantOrder {
		if all[i].Key != key {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Key, key)
		}
	}
}

func TestTool_Capabilities(t *testing.T) {
	tests := []struct {
		key       string
		csv, json bool
		assignIDs bool
	}{
		{ToolViewer, true, true, true},
		{ToolCSV, true, false, false},
		{ToolJSON, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			tool, ok := Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) not found", tt.key)
			}
			if tool.SupportsFormat(FormatCSV) != tt.csv {
				t.Errorf("csv support = %v, want %v", !tt.csv, tt.csv)
			}
			if tool.SupportsFormat(FormatJSON) != tt.json {
				t.Errorf("json support = %v, want %v", !tt.json, tt.json)
			}
			if tool.AssignIDs != tt.assignIDs {
				t.Errorf("AssignIDs = %v, want %v", tool.AssignIDs, tt.assignIDs)
			}
			if !tool.Supports(CapPreview) {
				t.Error("every tool previews")
			}
		})
	}
}

func TestTool_FileName(t *testing.T) {
	viewer, _ := Get(ToolViewer)
	csvTool, _ := Get(ToolCSV)
	jsonTool, _ := Get(ToolJSON)

	tests := []struct {
		tool     Tool
		original string
		format   ExportFormat
		want     string
	}{
		{viewer, "report.xlsx", FormatCSV, "report_data.csv"},
		{viewer, "report.xlsx", FormatJSON, "report_data.json"},
		{viewer, ".xlsx", FormatCSV, "export_data.csv"},
		{csvTool, "sales.2024.xls", FormatCSV, "sales.csv"},
		{jsonTool, "people.xlsx", FormatJSON, "people.json"},
		{jsonTool, "", FormatJSON, "converted.json"},
	}
	for _, tt := range tests {
		if got := tt.tool.FileName(tt.original, tt.format); got != tt.want {
			t.Errorf("%s.FileName(%q, %s) = %q, want %q", tt.tool.Key, tt.original, tt.format, got, tt.want)
		}
	}
}

func TestTool_ExportRejectsUnsupportedFormat(t *testing.T) {
	csvTool, _ := Get(ToolCSV)
	if _, err := csvTool.Export(sampleDataset(), FormatJSON); !errors.Is(err, ErrUnsupportedExport) {
		t.Errorf("error = %v, want ErrUnsupportedExport", err)
	}
	if _, err := csvTool.Export(sampleDataset(), FormatCSV); err != nil {
		t.Errorf("csv export error = %v", err)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("xls-to-pdf"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("error = %v, want ErrUnknownTool", err)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register() should panic on duplicate key")
		}
	}()
	Register(Tool{Key: ToolViewer})
}
