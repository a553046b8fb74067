package sheet

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw  string
		want Cell
	}{
		{"", Cell{}},
		{"42", NumberCell(42)},
		{"-3.5", NumberCell(-3.5)},
		{"0", NumberCell(0)},
		{".5", NumberCell(0.5)},
		{"1e3", NumberCell(1000)},
		{"abc", TextCell("abc")},
		{"NaN", TextCell("NaN")},
		{"Inf", TextCell("Inf")},
		{"0x1p-2", TextCell("0x1p-2")},
		{"1,000", TextCell("1,000")},
		{" 7", TextCell(" 7")},
	}
	for _, tt := range tests {
		if got := ParseCell(tt.raw); got != tt.want {
			t.Errorf("ParseCell(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestCellString(t *testing.T) {
	tests := []struct {
		cell Cell
		want string
	}{
		{Cell{}, ""},
		{TextCell("x"), "x"},
		{NumberCell(1), "1"},
		{NumberCell(1.25), "1.25"},
		{NumberCell(0), "0"},
		{NumberCell(45000.5), "45000.5"},
	}
	for _, tt := range tests {
		if got := tt.cell.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.cell, got, tt.want)
		}
	}
}

func TestTextCell_EmptyIsEmpty(t *testing.T) {
	if !TextCell("").IsEmpty() {
		t.Error(`TextCell("") should be empty`)
	}
}

func TestRecordJSON(t *testing.T) {
	rec := NewRecord(
		Field{"b", NumberCell(2)},
		Field{"a", TextCell("x & y")},
		Field{"b", NumberCell(3)},
	)
	if got := strings.Join(rec.Keys(), ","); got != "b,a" {
		t.Errorf("Keys() = %q, want b,a", got)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"b":3,"a":"x & y"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if back.Value("b") != NumberCell(3) || back.Value("a") != TextCell("x & y") {
		t.Errorf("Unmarshal = %#v", back)
	}
}

func TestRecordGet_Missing(t *testing.T) {
	rec := NewRecord(Field{"a", TextCell("1")})
	if _, ok := rec.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
	if !rec.Value("missing").IsEmpty() {
		t.Error("Value(missing) should be empty")
	}
}

func TestNewUpload(t *testing.T) {
	a := NewUpload("/tmp/in/report.xlsx", 10, strings.NewReader(""))
	b := NewUpload("report.xlsx", 10, strings.NewReader(""))

	if a.Name != "report.xlsx" {
		t.Errorf("Name = %q, want base name", a.Name)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs should be unique and non-empty: %q %q", a.ID, b.ID)
	}
}
