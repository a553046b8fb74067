package sheet

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// xlsxBytes builds an in-memory workbook whose first sheet holds rows.
// A nil value leaves the cell empty.
func xlsxBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func xlsxUpload(t *testing.T, name string, rows ...[]any) *Upload {
	t.Helper()
	data := xlsxBytes(t, rows...)
	return NewUpload(name, int64(len(data)), bytes.NewReader(data))
}

// explodingReader fails the test if anything reads from it.
type explodingReader struct{ t *testing.T }

func (r explodingReader) Read([]byte) (int, error) {
	r.t.Error("upload content was read")
	return 0, nil
}
