package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/csv-chat/backend/internal/models"
)

// Registry holds all available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewCSVParser(),
			NewTSVParser(),
			NewSemicolonParser(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser detects the correct parser for a file from its name and first bytes.
func (r *Registry) FindParser(fileName string, head []byte) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(fileName, head) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w for file: %s", ErrNoParser, fileName)
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}

// ParseFile finds a parser for the file and parses it. A ".gz" suffix is
// ignored for detection; the caller is expected to have decompressed the data.
func (r *Registry) ParseFile(fileName string, data []byte, maxRows int) (*models.Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	if looksBinary(head) {
		return nil, ErrBinaryFile
	}
	p, err := r.FindParser(strings.TrimSuffix(strings.ToLower(fileName), ".gz"), head)
	if err != nil {
		return nil, err
	}
	return p.Parse(fileName, data, maxRows)
}

// sniffBytes is how much of a file is inspected for format detection.
const sniffBytes = 8192

// looksBinary reports NUL bytes or invalid UTF-8 in the sniffed prefix.
// A multi-byte rune cut at the end of the prefix is tolerated.
func looksBinary(head []byte) bool {
	for _, b := range head {
		if b == 0 {
			return true
		}
	}
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size <= 1 {
			return len(head) >= utf8.UTFMax
		}
		head = head[size:]
	}
	return false
}

// ParseTable parses one uploaded file with the global registry.
func ParseTable(fileName string, data []byte, maxRows int) (*models.Table, error) {
	return globalRegistry.ParseFile(fileName, data, maxRows)
}
