package sheet

// PreviewRows is the number of rows shown before the preview is expanded.
const PreviewRows = 5

// Preview returns the first PreviewRows rows, or every row when expanded.
// The returned slice shares storage with the dataset and must not be
// modified.
func Preview(ds *Dataset, expanded bool) []Record {
	if ds == nil {
		return nil
	}
	if expanded || len(ds.Rows) <= PreviewRows {
		return ds.Rows
	}
	return ds.Rows[:PreviewRows]
}

// HasMore reports whether the collapsed preview hides rows.
func HasMore(ds *Dataset) bool {
	return ds != nil && len(ds.Rows) > PreviewRows
}
