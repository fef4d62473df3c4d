// csv_test.go - Tests for delimited-text table parsing
package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/csv-chat/backend/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestDelimitedParser_Parse(t *testing.T) {
	p := NewCSVParser()

	t.Run("header and rows", func(t *testing.T) {
		data := "Policy,Category\nReturns accepted within 30 days,Returns\nShips in 2 days,Shipping\n"
		table, err := p.Parse("faq.csv", []byte(data), 0)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		if table.ID == "" {
			t.Error("Expected table ID to be set")
		}
		if table.SQLName != "faq" {
			t.Errorf("Expected SQL name faq, got %s", table.SQLName)
		}
		wantCols := []models.Column{
			{Name: "Policy", Type: models.ColumnTypeString},
			{Name: "Category", Type: models.ColumnTypeString},
		}
		if diff := cmp.Diff(wantCols, table.Columns); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
		wantRows := [][]string{
			{"Returns accepted within 30 days", "Returns"},
			{"Ships in 2 days", "Shipping"},
		}
		if diff := cmp.Diff(wantRows, table.Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("infers column types", func(t *testing.T) {
		data := "Region,Sales,Margin,Active\nNorth,100,0.25,yes\nSouth,\"1,250\",0.3,no\nEast,,1,true\n"
		table, err := p.Parse("sales.csv", []byte(data), 0)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []models.ColumnType{
			models.ColumnTypeString,
			models.ColumnTypeInteger,
			models.ColumnTypeFloat,
			models.ColumnTypeBoolean,
		}
		for i, w := range want {
			if table.Columns[i].Type != w {
				t.Errorf("column %s: expected %s, got %s", table.Columns[i].Name, w, table.Columns[i].Type)
			}
		}
	})

	t.Run("header only", func(t *testing.T) {
		table, err := p.Parse("empty.csv", []byte("a,b\n"), 0)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(table.Rows) != 0 {
			t.Errorf("Expected 0 rows, got %d", len(table.Rows))
		}
		if len(table.Columns) != 2 {
			t.Errorf("Expected 2 columns, got %d", len(table.Columns))
		}
	})

	t.Run("strips BOM and fixes header names", func(t *testing.T) {
		data := "\xEF\xBB\xBFname, ,name\nx,y,z\n"
		table, err := p.Parse("bom.csv", []byte(data), 0)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []string{"name", "column_2", "name_2"}
		if diff := cmp.Diff(want, table.ColumnNames()); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("suffixed duplicates skip names already in the header", func(t *testing.T) {
		data := "Name,Name_2,Name,name_3\na,b,c,d\n"
		table, err := p.Parse("people.csv", []byte(data), 0)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []string{"Name", "Name_2", "Name_3", "name_3_2"}
		if diff := cmp.Diff(want, table.ColumnNames()); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDelimitedParser_ParseErrors(t *testing.T) {
	p := NewCSVParser()

	tests := []struct {
		name    string
		data    string
		maxRows int
		wantErr error
		wantMsg string
	}{
		{name: "empty", data: "", wantErr: ErrEmptyFile},
		{name: "whitespace only", data: "\n\n  \n", wantErr: ErrEmptyFile},
		{name: "blank header", data: ",,\n1,2,3\n", wantErr: ErrNoHeader},
		{name: "binary", data: "a,b\n\x00\x01,2\n", wantErr: ErrBinaryFile},
		{name: "ragged row", data: "a,b\n1,2\n3\n", wantMsg: "line 3"},
		{name: "bare quote", data: "a,b\n1,x\"y\n", wantMsg: "line 2"},
		{name: "too many rows", data: "a\n1\n2\n3\n", maxRows: 2, wantErr: ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := p.Parse("bad.csv", []byte(tt.data), tt.maxRows)
			if err == nil {
				t.Fatalf("Expected error, got table %+v", table)
			}
			if table != nil {
				t.Error("Expected no table on error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestDelimitedParser_CanParse(t *testing.T) {
	tests := []struct {
		parser *DelimitedParser
		file   string
		head   string
		want   bool
	}{
		{NewCSVParser(), "a.csv", "x,y,z", true},
		{NewCSVParser(), "a.CSV", "single", true},
		{NewCSVParser(), "a.csv", "x;y;z", false},
		{NewSemicolonParser(), "a.csv", "x;y;z", true},
		{NewTSVParser(), "a.tsv", "x\ty", true},
		{NewTSVParser(), "a.txt", "x,y", false},
		{NewCSVParser(), "a.xlsx", "x,y", false},
		{NewCSVParser(), "a.json", "{\"a\":1,\"b\":2}", false},
	}

	for _, tt := range tests {
		got := tt.parser.CanParse(tt.file, []byte(tt.head))
		if got != tt.want {
			t.Errorf("%s.CanParse(%q, %q) = %v, want %v", tt.parser.Name(), tt.file, tt.head, got, tt.want)
		}
	}
}

func TestTableIdentifier(t *testing.T) {
	tests := map[string]string{
		"sales.csv":            "sales",
		"Q1 sales (final).csv": "q1_sales_final",
		"2024-data.csv.gz":     "t_2024_data",
		"...csv":               "table",
		"Über-Daten.tsv":       "ber_daten",
	}
	for in, want := range tests {
		if got := TableIdentifier(in); got != want {
			t.Errorf("TableIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniqueIdentifiers(t *testing.T) {
	tables := []*models.Table{
		{Name: "sales.csv", SQLName: "sales"},
		{Name: "sales.tsv", SQLName: "sales"},
		{Name: "Sales!.csv", SQLName: "sales"},
		{Name: "costs.csv", SQLName: "costs"},
	}
	UniqueIdentifiers(tables)

	var got []string
	for _, tbl := range tables {
		got = append(got, tbl.SQLName)
	}
	want := []string{"sales", "sales_2", "sales_3", "costs"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UniqueIdentifiers mismatch (-want +got):\n%s", diff)
	}
}
