package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/csv-chat/backend/internal/models"
	"github.com/google/uuid"
)

// candidateDelimiters are the separators considered when sniffing a header.
var candidateDelimiters = []rune{',', '\t', ';'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DelimitedParser handles delimiter-separated text tables with a header row.
type DelimitedParser struct {
	name       string
	delimiter  rune
	extensions []string
}

// NewCSVParser parses comma-separated files.
func NewCSVParser() *DelimitedParser {
	return &DelimitedParser{name: "csv", delimiter: ',', extensions: []string{".csv", ".txt"}}
}

// NewTSVParser parses tab-separated files.
func NewTSVParser() *DelimitedParser {
	return &DelimitedParser{name: "tsv", delimiter: '\t', extensions: []string{".tsv", ".tab", ".txt"}}
}

// NewSemicolonParser parses semicolon-separated files, common for
// spreadsheets exported with a decimal-comma locale.
func NewSemicolonParser() *DelimitedParser {
	return &DelimitedParser{name: "semicolon", delimiter: ';', extensions: []string{".csv", ".txt"}}
}

func (p *DelimitedParser) Name() string {
	return p.name
}

// CanParse accepts a file when its extension is one of the parser's and the
// parser's delimiter is the most frequent candidate in the header line.
func (p *DelimitedParser) CanParse(fileName string, head []byte) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	matched := false
	for _, e := range p.extensions {
		if e == ext {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	line := string(firstLine(head))
	own := strings.Count(line, string(p.delimiter))
	for _, d := range candidateDelimiters {
		if d != p.delimiter && strings.Count(line, string(d)) > own {
			return false
		}
	}
	return true
}

func (p *DelimitedParser) Parse(fileName string, data []byte, maxRows int) (*models.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, ErrBinaryFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.delimiter
	reader.FieldsPerRecord = 0 // every record must match the header width

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := normalizeHeader(header)
	if len(columns) == 0 {
		return nil, ErrNoHeader
	}

	intern := newCellIntern()
	rows := make([][]string, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("line %d: %w", perr.Line, perr.Err)
			}
			return nil, err
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d data rows", ErrTooManyRows, maxRows)
		}
		rows = append(rows, intern.InternRecord(record))
	}

	table := &models.Table{
		ID:      uuid.New().String(),
		Name:    fileName,
		SQLName: TableIdentifier(fileName),
		Columns: make([]models.Column, len(columns)),
		Rows:    rows,
	}

	values := make([]string, len(rows))
	for ci, name := range columns {
		for ri, row := range rows {
			values[ri] = row[ci]
		}
		table.Columns[ci] = models.Column{Name: name, Type: InferColumnType(values)}
	}

	return table, nil
}

// normalizeHeader trims names, fills blanks and de-duplicates repeats.
// A header made only of blank cells yields nil.
func normalizeHeader(header []string) []string {
	allBlank := true
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			allBlank = false
			break
		}
	}
	if allBlank {
		return nil
	}

	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		key := strings.ToLower(name)
		if n, ok := seen[key]; ok {
			// The suffixed name may itself be taken by a later or earlier column.
			base := name
			for {
				n++
				name = base + "_" + strconv.Itoa(n)
				if _, taken := seen[strings.ToLower(name)]; !taken {
					break
				}
			}
			seen[key] = n
			key = strings.ToLower(name)
		}
		seen[key] = 1
		out[i] = name
	}
	return out
}

func firstLine(head []byte) []byte {
	head = bytes.TrimPrefix(head, utf8BOM)
	if i := bytes.IndexAny(head, "\r\n"); i >= 0 {
		return head[:i]
	}
	return head
}

// TableIdentifier derives a SQL-safe table name from a file name:
// "Q1 sales (final).csv" -> "q1_sales_final".
func TableIdentifier(fileName string) string {
	base := filepath.Base(fileName)
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			break
		}
		base = strings.TrimSuffix(base, ext)
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		return "table"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// UniqueIdentifiers gives every table a distinct SQLName, suffixing repeats
// with _2, _3 and so on in order.
func UniqueIdentifiers(tables []*models.Table) {
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		base := t.SQLName
		name := base
		for n := 2; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		t.SQLName = name
	}
}
