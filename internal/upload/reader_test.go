package upload

import (
	"bytes"
	"compress/gzip"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	name string
	data []byte
}

// multipartFiles builds file headers the way echo hands them to a handler.
func multipartFiles(t *testing.T, parts ...part) []*multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		fw, err := w.CreateFormFile("files", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"]
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadMultipart(t *testing.T) {
	files := multipartFiles(t,
		part{"sales.csv", []byte("Region,Sales\nNorth,100\n")},
		part{"big.csv", []byte(strings.Repeat("x", 256))},
		part{"faq.csv.gz", gzipBytes(t, "Question,Answer\nq,a\n")},
	)

	got, err := ReadMultipart(files, Limits{MaxFiles: 5, MaxFileBytes: 100})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "sales.csv", got[0].Name)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, "Region,Sales\nNorth,100\n", string(got[0].Data))

	assert.Equal(t, "big.csv", got[1].Name)
	assert.ErrorIs(t, got[1].Err, ErrFileTooLarge)
	assert.Nil(t, got[1].Data)

	assert.Equal(t, "faq.csv.gz", got[2].Name)
	assert.NoError(t, got[2].Err)
	assert.Equal(t, "Question,Answer\nq,a\n", string(got[2].Data))
}

func TestReadMultipart_RequestLimits(t *testing.T) {
	_, err := ReadMultipart(nil, Limits{MaxFiles: 2})
	assert.ErrorIs(t, err, ErrNoFiles)

	files := multipartFiles(t,
		part{"a.csv", []byte("a\n1\n")},
		part{"b.csv", []byte("b\n1\n")},
		part{"c.csv", []byte("c\n1\n")},
	)
	_, err = ReadMultipart(files, Limits{MaxFiles: 2})
	assert.ErrorIs(t, err, ErrTooManyFiles)
}

func TestReadFile(t *testing.T) {
	t.Run("no limit", func(t *testing.T) {
		data, err := ReadFile("a.csv", strings.NewReader("a\n1\n"), 0)
		require.NoError(t, err)
		assert.Equal(t, "a\n1\n", string(data))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		data, err := ReadFile("a.csv", strings.NewReader("abcd"), 4)
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(data))
	})

	t.Run("gz without magic is kept", func(t *testing.T) {
		data, err := ReadFile("a.csv.GZ", strings.NewReader("a\n1\n"), 0)
		require.NoError(t, err)
		assert.Equal(t, "a\n1\n", string(data))
	})

	t.Run("decompressed size is bounded", func(t *testing.T) {
		compressed := gzipBytes(t, strings.Repeat("a,b\n", 1000))
		_, err := ReadFile("a.csv.gz", bytes.NewReader(compressed), 100)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		_, err := ReadFile("a.csv.gz", bytes.NewReader([]byte{0x1f, 0x8b, 0x00}), 0)
		assert.Error(t, err)
	})
}
