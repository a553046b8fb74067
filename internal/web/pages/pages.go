// Package pages holds the site's templ components. The *_templ.go files are
// generated by `templ generate` from the .templ sources next to them.
package pages

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
)

// NameGeneratorPath is the transliteration page.
const NameGeneratorPath = "/name-arabic-generator"

// ToolPath returns the page URL of a spreadsheet tool.
func ToolPath(key string) string {
	return "/tools/" + key
}

// ToolView is everything a tool page shows. Dataset is nil before the
// first successful upload.
type ToolView struct {
	Tool     sheet.Tool
	Dataset  *sheet.Dataset
	Expanded bool
	Error    *sheet.UserMessage
}

// NameView holds the submitted name parts and the outcome.
type NameView struct {
	First, Middle, Last string
	Result              *transliterate.Result
	Error               string
}

func summaryLine(ds *sheet.Dataset) string {
	s := ds.Summary()
	return fmt.Sprintf("%s (%s KB) · %d rows · %d columns", ds.FileName, s.SizeKB, s.Rows, s.Columns)
}

func moreLine(shown, total int) string {
	return fmt.Sprintf("Showing %d of %d rows.", shown, total)
}

func downloadLabel(f sheet.ExportFormat) string {
	return "Download " + strings.ToUpper(string(f))
}
