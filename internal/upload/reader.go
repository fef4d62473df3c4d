// Package upload reads uploaded CSV files from multipart requests.
package upload

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/csv-chat/backend/internal/models"
)

var (
	ErrNoFiles      = errors.New("no files provided")
	ErrTooManyFiles = errors.New("too many files")
	ErrFileTooLarge = errors.New("file too large")
)

// Limits bounds a single upload request.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// ReadMultipart reads every file header in order. A request with no files or
// more than MaxFiles files is rejected as a whole; a file that cannot be read
// is returned with Err set so the others still load.
func ReadMultipart(files []*multipart.FileHeader, limits Limits) ([]models.UploadedFile, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyFiles, len(files), limits.MaxFiles)
	}

	out := make([]models.UploadedFile, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if limits.MaxFileBytes > 0 && fh.Size > limits.MaxFileBytes {
			out = append(out, models.UploadedFile{
				Name: name,
				Err:  fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, fh.Size, limits.MaxFileBytes),
			})
			continue
		}

		src, err := fh.Open()
		if err != nil {
			out = append(out, models.UploadedFile{Name: name, Err: fmt.Errorf("opening upload: %w", err)})
			continue
		}
		data, err := ReadFile(name, src, limits.MaxFileBytes)
		src.Close()
		out = append(out, models.UploadedFile{Name: name, Data: data, Err: err})
	}
	return out, nil
}

// ReadFile reads at most maxBytes from r, decompressing names ending in .gz.
// maxBytes <= 0 disables the limit.
func ReadFile(name string, r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		return Decompress(data, maxBytes)
	}
	return data, nil
}

// Decompress inflates gzip data, bounding the decompressed size by maxBytes.
// Data without the gzip magic is returned unchanged; some clients inflate
// .gz files before posting them.
func Decompress(data []byte, maxBytes int64) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	defer reader.Close()

	out, err := readLimited(reader, maxBytes)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, fmt.Errorf("decompressed %w", err)
		}
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxBytes)
	}
	return data, nil
}
