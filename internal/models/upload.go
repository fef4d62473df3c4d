package models

// UploadedFile is a raw file as supplied by the client. Err is set when the
// file could not be read at all; it is then reported as a failed FileResult.
type UploadedFile struct {
	Name string
	Data []byte
	Err  error
}

// TablePreview is the bounded preview of a parsed table.
type TablePreview struct {
	TableID  string     `json:"tableId" msgpack:"tableId"`
	FileName string     `json:"fileName" msgpack:"fileName"`
	Column   int        `json:"column" msgpack:"column"` // display slot, assigned round-robin
	Columns  []Column   `json:"columns" msgpack:"columns"`
	Rows     [][]string `json:"rows" msgpack:"rows"`
	RowCount int        `json:"rowCount" msgpack:"rowCount"`
}

// FileResult reports the outcome of loading one uploaded file.
type FileResult struct {
	FileName string        `json:"fileName"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Preview  *TablePreview `json:"preview,omitempty"`
}
