package main

import (
	"bytes"
	"context"
	stdmultipart "mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/indigo-web/formdata/config"
	"github.com/indigo-web/formdata/form"
	"github.com/indigo-web/formdata/storage"
	"github.com/indigo-web/formdata/storage/disk"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type uploaded struct {
	Name     string          `json:"name"`
	Filename string          `json:"filename"`
	Value    string          `json:"value"`
	File     *storage.Object `json:"file"`
}

func newUpload(t *testing.T, files map[string]string) *http.Request {
	var buff bytes.Buffer
	w := stdmultipart.NewWriter(&buff)
	require.NoError(t, w.WriteField("username", "Alice"))

	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buff)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func countFiles(t *testing.T, root string) (n int) {
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			n++
		}

		return nil
	})
	require.NoError(t, err)

	return n
}

func TestServer(t *testing.T) {
	root := t.TempDir()
	store, err := disk.New(root, zap.NewNop())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Form.MaxFiles = 2
	handler := newServer(cfg, store, time.Minute, zap.NewNop())

	t.Run("upload and download", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newUpload(t, map[string]string{"doc": "Hello, world!"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var result []uploaded
		require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &result))
		require.Len(t, result, 2)
		require.Equal(t, "Alice", result[0].Value)
		require.NotNil(t, result[1].File)
		require.Equal(t, "doc.txt", result[1].Filename)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+result[1].File.Key, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Hello, world!", rec.Body.String())
	})

	t.Run("too many files", func(t *testing.T) {
		before := countFiles(t, root)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newUpload(t, map[string]string{"a": "a", "b": "b", "c": "c"}))
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.Equal(t, before, countFiles(t, root), "stored files must be cleaned up")
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("--b\r\nContent-Disposition: form-data; name=a\r\n\r\nunterminated"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+storage.NewKey(), nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDigestHandler(t *testing.T) {
	var buff bytes.Buffer
	w := stdmultipart.NewWriter(&buff)
	fw, err := w.CreateFormFile("file", "a.bin")
	require.NoError(t, err)
	_, err = fw.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buff)
	req.Header.Set("Content-Type", w.FormDataContentType())
	result, err := form.NewParser(nil, digestHandler).Parse(context.Background(), form.FromHTTP(req, 16))
	require.NoError(t, err)
	require.Len(t, result, 1)

	obj := result[0].File.(storage.Object)
	require.EqualValues(t, 3, obj.Size)
	require.Equal(t, "a.bin", obj.Filename)
	require.Empty(t, obj.Key)
}
