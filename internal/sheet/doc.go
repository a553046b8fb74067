// Package sheet turns uploaded spreadsheets into tabular datasets and exports
// them as CSV or JSON.
//
// The package has no HTTP dependencies; the web handlers and the sheetconv
// CLI both drive it the same way.
//
// # Pipeline
//
//  1. [NewUpload] wraps a file name, size and reader.
//  2. [Ingest] rejects anything that is not .xls/.xlsx before reading a byte,
//     decodes the first sheet with an external library (excelize for .xlsx,
//     extrame/xls for .xls) and zips the header row with every data row.
//  3. [Preview] projects the first five rows (or all of them).
//  4. [ExportDelimited] and [ExportStructured] encode the dataset.
//
// # Tools
//
// The viewer and the two converters share one pipeline. Each [Tool] in the
// registry only selects which operations it exposes, whether synthetic IDs
// are assigned, and how download names are derived.
//
// # Cells
//
// A [Cell] is Empty, Text or Number. Numeric zero stays the number 0; only a
// missing or blank source cell becomes the empty string on export.
//
// # Errors
//
// Ingestion failures are sentinel errors ([ErrInvalidFileType],
// [ErrEmptyWorkbook], [ErrHeaderOnly], [ErrDecode], [ErrFileTooLarge]).
// [MapError] converts them to a [UserMessage] with a support code:
//
//   - FILE001-FILE099: file and content problems
//   - UPL001-UPL099: conversion slot, cancellation and timeout
//   - TOOL001-TOOL099: unknown tools or unsupported exports
package sheet
