package parser

import (
	"testing"

	"github.com/csv-chat/backend/internal/models"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		in   string
		want models.ColumnType
	}{
		{"", models.ColumnTypeString},
		{"42", models.ColumnTypeInteger},
		{"-7", models.ColumnTypeInteger},
		{"1,234", models.ColumnTypeInteger},
		{"0", models.ColumnTypeInteger},
		{"0x1F", models.ColumnTypeString},
		{"007", models.ColumnTypeString},
		{"02134", models.ColumnTypeString},
		{"-012", models.ColumnTypeString},
		{"00.5", models.ColumnTypeString},
		{"0.5", models.ColumnTypeFloat},
		{"3.14", models.ColumnTypeFloat},
		{"1,234.50", models.ColumnTypeFloat},
		{"1e6", models.ColumnTypeFloat},
		{"12,5", models.ColumnTypeString},
		{"NaN", models.ColumnTypeString},
		{"Inf", models.ColumnTypeString},
		{"yes", models.ColumnTypeBoolean},
		{"FALSE", models.ColumnTypeBoolean},
		{"Returns", models.ColumnTypeString},
		{"99999999999999999999", models.ColumnTypeFloat},
	}

	for _, tt := range tests {
		if got := InferType(tt.in); got != tt.want {
			t.Errorf("InferType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   models.ColumnType
	}{
		{"all ints", []string{"1", "2", ""}, models.ColumnTypeInteger},
		{"ints and floats", []string{"1", "2.5"}, models.ColumnTypeFloat},
		{"mixed", []string{"1", "abc"}, models.ColumnTypeString},
		{"bools", []string{"yes", "no"}, models.ColumnTypeBoolean},
		{"bool and int", []string{"true", "1"}, models.ColumnTypeString},
		{"empty", []string{"", " "}, models.ColumnTypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferColumnType(tt.values); got != tt.want {
				t.Errorf("InferColumnType(%v) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw   string
		ctype models.ColumnType
		want  interface{}
	}{
		{"", models.ColumnTypeInteger, nil},
		{"1,250", models.ColumnTypeInteger, int64(1250)},
		{"010", models.ColumnTypeInteger, int64(10)},
		{"0x10", models.ColumnTypeInteger, nil},
		{"2.5", models.ColumnTypeFloat, 2.5},
		{"Yes", models.ColumnTypeBoolean, true},
		{"n", models.ColumnTypeBoolean, false},
		{" padded ", models.ColumnTypeString, " padded "},
	}

	for _, tt := range tests {
		if got := ParseValue(tt.raw, tt.ctype); got != tt.want {
			t.Errorf("ParseValue(%q, %s) = %#v, want %#v", tt.raw, tt.ctype, got, tt.want)
		}
	}
}

func TestRegistry_ParseFile(t *testing.T) {
	r := NewRegistry()

	t.Run("semicolon csv", func(t *testing.T) {
		table, err := r.ParseFile("export.csv", []byte("a;b\n1;2\n"), 0)
		if err != nil {
			t.Fatalf("ParseFile failed: %v", err)
		}
		if len(table.Columns) != 2 {
			t.Errorf("Expected 2 columns, got %d", len(table.Columns))
		}
	})

	t.Run("gz suffix ignored for detection", func(t *testing.T) {
		table, err := r.ParseFile("data.tsv.gz", []byte("a\tb\n1\t2\n"), 0)
		if err != nil {
			t.Fatalf("ParseFile failed: %v", err)
		}
		if table.Name != "data.tsv.gz" {
			t.Errorf("Expected original name kept, got %s", table.Name)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		if _, err := r.ParseFile("report.pdf", []byte("a,b\n"), 0); err == nil {
			t.Error("Expected error for unsupported extension")
		}
	})

	t.Run("binary content", func(t *testing.T) {
		data := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
		if _, err := r.ParseFile("image.csv", data, 0); err != ErrBinaryFile {
			t.Errorf("Expected ErrBinaryFile, got %v", err)
		}
	})

	t.Run("by name", func(t *testing.T) {
		p, err := r.GetParserByName("TSV")
		if err != nil || p.Name() != "tsv" {
			t.Errorf("Expected tsv parser, got %v, %v", p, err)
		}
	})
}
