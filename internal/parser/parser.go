package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/csv-chat/backend/internal/models"
)

var (
	ErrEmptyFile   = errors.New("file is empty")
	ErrNoHeader    = errors.New("missing header row")
	ErrBinaryFile  = errors.New("file is not delimited text")
	ErrTooManyRows = errors.New("too many rows")
	ErrNoParser    = errors.New("no suitable parser found")
)

// Parser defines the interface for delimited-text table parsers.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// CanParse reports whether the file looks like this parser's format.
	CanParse(fileName string, head []byte) bool
	// Parse parses the whole file into a Table with at most maxRows data rows.
	Parse(fileName string, data []byte, maxRows int) (*models.Table, error)
}

var (
	boolTrue  = map[string]bool{"TRUE": true, "YES": true, "T": true, "Y": true}
	boolFalse = map[string]bool{"FALSE": true, "NO": true, "F": true, "N": true}
)

// InferType guesses the ColumnType of a single raw cell.
// Optimized to avoid regex for common cases.
func InferType(raw string) models.ColumnType {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.ColumnTypeString
	}

	u := strings.ToUpper(s)
	if boolTrue[u] || boolFalse[u] {
		return models.ColumnTypeBoolean
	}

	plain, ok := stripThousands(s)
	if !ok || hasLeadingZero(plain) {
		return models.ColumnTypeString
	}

	if isIntegerFast(plain) {
		if _, err := parseInteger(plain); err == nil {
			return models.ColumnTypeInteger
		}
	}

	// ParseFloat also accepts "NaN" and "Inf"; those stay strings.
	if strings.ContainsAny(plain, "0123456789") {
		if _, err := strconv.ParseFloat(plain, 64); err == nil {
			return models.ColumnTypeFloat
		}
	}

	return models.ColumnTypeString
}

// InferColumnType folds the cell types of one column. Empty cells are ignored;
// a column with no values at all is a string column.
func InferColumnType(values []string) models.ColumnType {
	var seen models.ColumnType
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		t := InferType(v)
		switch {
		case seen == "":
			seen = t
		case seen == t:
		case isNumeric(seen) && isNumeric(t):
			seen = models.ColumnTypeFloat
		default:
			return models.ColumnTypeString
		}
	}
	if seen == "" {
		return models.ColumnTypeString
	}
	return seen
}

func isNumeric(t models.ColumnType) bool {
	return t == models.ColumnTypeInteger || t == models.ColumnTypeFloat
}

// stripThousands removes thousands separators from the integer part of a
// number. "1,234.5" -> "1234.5". Commas anywhere else ("12,5", "a,b") make
// the value non-numeric and ok is false.
func stripThousands(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}

	sign := ""
	if s[0] == '+' || s[0] == '-' {
		sign, s = s[:1], s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if strings.Contains(frac, ",") {
		return "", false
	}

	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return sign + strings.Join(groups, "") + frac, true
}

// isIntegerFast checks if a string is a decimal integer without using regex.
// An optional sign is allowed.
func isIntegerFast(s string) bool {
	if len(s) == 0 {
		return false
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
		if i >= len(s) {
			return false
		}
	}

	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// hasLeadingZero reports numbers such as "02134" whose zeros are part of
// the text: zip codes, IDs and SKUs.
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

func parseInteger(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// ParseValue converts a raw cell to a typed value for the given column type.
// Empty cells and values that do not convert become nil (SQL NULL).
func ParseValue(raw string, ctype models.ColumnType) interface{} {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	switch ctype {
	case models.ColumnTypeBoolean:
		u := strings.ToUpper(s)
		if boolTrue[u] {
			return true
		}
		if boolFalse[u] {
			return false
		}
		return nil

	case models.ColumnTypeInteger:
		plain, _ := stripThousands(s)
		val, err := parseInteger(plain)
		if err != nil {
			return nil
		}
		return val

	case models.ColumnTypeFloat:
		plain, _ := stripThousands(s)
		val, err := strconv.ParseFloat(plain, 64)
		if err != nil {
			return nil
		}
		return val
	}

	return raw
}
