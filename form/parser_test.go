package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	stdmultipart "mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/google/go-cmp/cmp"
	"github.com/indigo-web/formdata/config"
	"github.com/indigo-web/formdata/multipart"
	"github.com/indigo-web/formdata/storage"
	"github.com/indigo-web/formdata/storage/disk"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Name, Filename, Type, Content string
	File                          bool
	Headers                       map[string]string
}

// newRequest encodes the entries as multipart/form-data and serves the result in chunks
// of chunkSize bytes.
func newRequest(t *testing.T, chunkSize int, entries ...entry) Request {
	var buff bytes.Buffer
	w := stdmultipart.NewWriter(&buff)
	require.NoError(t, w.SetBoundary(uniuri.NewLen(30)))

	for _, e := range entries {
		header := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, e.Name)
		if e.File {
			disposition += fmt.Sprintf(`; filename="%s"`, e.Filename)
		}

		header.Set("Content-Disposition", disposition)
		if len(e.Type) > 0 {
			header.Set("Content-Type", e.Type)
		}

		for key, value := range e.Headers {
			header.Set(key, value)
		}

		pw, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = pw.Write([]byte(e.Content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return NewRequest(w.FormDataContentType(), multipart.FromBytes(buff.Bytes(), chunkSize))
}

func TestMultipart(t *testing.T) {
	t.Run("text fields", func(t *testing.T) {
		req := newRequest(t, 7,
			entry{Name: "username", Content: "Alice"},
			entry{Name: "hobby", Content: "chess"},
			entry{Name: "hobby", Content: "go"},
			entry{Name: "bio", Type: "text/markdown", Content: "# Hi"},
		)
		form, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.NoError(t, err)

		want := Form{
			{Name: "username", Type: "text/plain", Charset: "utf8", Value: "Alice"},
			{Name: "hobby", Type: "text/plain", Charset: "utf8", Value: "chess"},
			{Name: "hobby", Type: "text/plain", Charset: "utf8", Value: "go"},
			{Name: "bio", Type: "text/markdown", Charset: "utf8", Value: "# Hi"},
		}
		if diff := cmp.Diff(want, form); diff != "" {
			t.Errorf("form mismatch (-want +got):\n%s", diff)
		}

		require.Equal(t, []string{"chess", "go"}, form.Values("hobby"))
		username, found := form.Name("username")
		require.True(t, found)
		require.Equal(t, "Alice", username.Value)
	})

	t.Run("memory files", func(t *testing.T) {
		req := newRequest(t, 3,
			entry{Name: "text1", Content: "Hello, World!"},
			entry{Name: "file1", Filename: "a.txt", Type: "text/plain", Content: "abc", File: true},
		)
		form, err := NewParser(config.Default(), MemoryHandler).Parse(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, form, 2)

		file, found := form.File("a.txt")
		require.True(t, found)
		require.Equal(t, "file1", file.Name)
		require.Equal(t, &MemoryFile{
			Filename:  "a.txt",
			MediaType: "text/plain",
			Data:      []byte{97, 98, 99},
		}, file.File)
	})

	t.Run("max files", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxFiles = 1
		var handled []string
		handler := func(_ context.Context, file *FileUpload) (any, error) {
			handled = append(handled, file.FieldName)
			return MemoryHandler(context.Background(), file)
		}

		req := newRequest(t, 16,
			entry{Name: "first", Filename: "a", Content: "a", File: true},
			entry{Name: "text", Content: "between"},
			entry{Name: "second", Filename: "b", Content: "b", File: true},
		)
		form, err := NewParser(cfg, handler).Parse(context.Background(), req)

		var target *MaxFilesExceededError
		require.ErrorAs(t, err, &target)
		require.Equal(t, 1, target.MaxFiles)
		require.ErrorIs(t, err, ErrFormData)
		require.ErrorIs(t, err, multipart.ErrParse)
		require.Equal(t, []string{"first"}, handled, "the first file must be handled before failing")
		require.Len(t, form, 2)
	})

	t.Run("max files not exceeded", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxFiles = 2
		req := newRequest(t, 16,
			entry{Name: "first", Filename: "a", Content: "a", File: true},
			entry{Name: "second", Filename: "b", Content: "b", File: true},
		)
		_, err := NewParser(cfg, nil).Parse(context.Background(), req)
		require.NoError(t, err)
	})

	t.Run("handler omits and replaces", func(t *testing.T) {
		handler := func(_ context.Context, file *FileUpload) (any, error) {
			switch file.FieldName {
			case "omitted":
				return nil, nil
			default:
				return "replacement", nil
			}
		}

		req := newRequest(t, 5,
			entry{Name: "omitted", Filename: "a.bin", Content: strings.Repeat("a", 100), File: true},
			entry{Name: "replaced", Filename: "b.bin", Content: strings.Repeat("b", 100), File: true},
			entry{Name: "after", Content: "still here"},
		)
		form, err := NewParser(config.Default(), handler).Parse(context.Background(), req)
		require.NoError(t, err)

		want := Form{
			{Name: "replaced", Filename: "b.bin", Type: "application/octet-stream", File: "replacement"},
			{Name: "after", Type: "text/plain", Charset: "utf8", Value: "still here"},
		}
		if diff := cmp.Diff(want, form); diff != "" {
			t.Errorf("form mismatch (-want +got):\n%s", diff)
		}

		_, found := form.Name("omitted")
		require.False(t, found)
	})

	t.Run("handler reads partially", func(t *testing.T) {
		handler := func(_ context.Context, file *FileUpload) (any, error) {
			head := make([]byte, 4)
			_, err := io.ReadFull(file, head)
			return string(head), err
		}

		req := newRequest(t, 2,
			entry{Name: "file", Filename: "a.bin", Content: strings.Repeat("abcd", 100), File: true},
			entry{Name: "after", Content: "value"},
		)
		form, err := NewParser(config.Default(), handler).Parse(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, form, 2)
		require.Equal(t, "abcd", form[0].File)
		require.Equal(t, "value", form[1].Value)
	})

	t.Run("handler error", func(t *testing.T) {
		wantErr := errors.New("disk is full")
		handler := func(context.Context, *FileUpload) (any, error) {
			return nil, wantErr
		}

		req := newRequest(t, 64, entry{Name: "file", Filename: "a", Content: "a", File: true})
		_, err := NewParser(config.Default(), handler, WithLogger(zap.NewNop())).Parse(context.Background(), req)

		var target *FormDataParseError
		require.ErrorAs(t, err, &target)
		require.ErrorIs(t, err, wantErr)
		require.NotErrorIs(t, err, multipart.ErrParse)
	})

	t.Run("file size limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Multipart.MaxFileSize = 10
		req := newRequest(t, 4, entry{Name: "file", Filename: "a", Content: strings.Repeat("a", 20), File: true})
		_, err := NewParser(cfg, nil).Parse(context.Background(), req)

		var target *multipart.MaxFileSizeExceededError
		require.ErrorAs(t, err, &target)
	})

	t.Run("field size limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxFieldSize = 10
		req := newRequest(t, 4,
			entry{Name: "short", Content: strings.Repeat("a", 10)},
			entry{Name: "long", Content: strings.Repeat("a", 11)},
		)
		form, err := NewParser(cfg, nil).Parse(context.Background(), req)

		var target *MaxFieldSizeExceededError
		require.ErrorAs(t, err, &target)
		require.ErrorIs(t, err, multipart.ErrParse)
		require.Equal(t, []string{strings.Repeat("a", 10)}, form.Values("short"))
	})

	t.Run("field size limit doesn't apply to files", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxFieldSize = 10
		req := newRequest(t, 4, entry{Name: "file", Filename: "a", Content: strings.Repeat("a", 20), File: true})
		_, err := NewParser(cfg, nil).Parse(context.Background(), req)
		require.NoError(t, err)
	})

	t.Run("untyped file", func(t *testing.T) {
		var mediaType string
		handler := func(_ context.Context, file *FileUpload) (any, error) {
			mediaType = file.MediaType
			return file.Filename, nil
		}

		req := newRequest(t, 8,
			entry{Name: "file", Filename: "a", Content: "abc", File: true},
			entry{Name: "text", Content: "abc"},
		)
		form, err := NewParser(config.Default(), handler).Parse(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, "application/octet-stream", mediaType)
		require.Len(t, form, 2)
		require.Equal(t, "application/octet-stream", form[0].Type)
		require.Equal(t, "text/plain", form[1].Type)
	})

	t.Run("unnamed part", func(t *testing.T) {
		body := "--b\r\nContent-Disposition: form-data\r\n\r\nvalue\r\n--b--"
		req := NewRequest("multipart/form-data; boundary=b", multipart.FromBytes([]byte(body), 8))
		_, err := NewParser(config.Default(), nil).Parse(context.Background(), req)

		var target *FormDataParseError
		require.ErrorAs(t, err, &target)
		require.ErrorIs(t, err, multipart.ErrInvalidHeader)
	})

	t.Run("no boundary", func(t *testing.T) {
		req := NewRequest("multipart/form-data", multipart.FromBytes(nil, 1))
		_, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.ErrorIs(t, err, multipart.ErrNoBoundary)
	})

	t.Run("truncated", func(t *testing.T) {
		body := "--b\r\nContent-Disposition: form-data; name=a\r\n\r\nvalue"
		req := NewRequest("multipart/form-data; boundary=b", multipart.FromBytes([]byte(body), 8))
		_, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.ErrorIs(t, err, multipart.ErrUnexpectedEOF)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		handler := func(_ context.Context, file *FileUpload) (any, error) {
			cancel()
			return file.Bytes()
		}

		req := newRequest(t, 4,
			entry{Name: "file", Filename: "a", Content: strings.Repeat("a", 1000), File: true},
		)
		_, err := NewParser(config.Default(), handler).Parse(ctx, req)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCharset(t *testing.T) {
	// "привет" in windows-1251
	cp1251 := string([]byte{0xef, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2})

	t.Run("part charset", func(t *testing.T) {
		req := newRequest(t, 16, entry{Name: "greeting", Type: "text/plain; charset=windows-1251", Content: cp1251})
		form, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, form, 1)
		require.Equal(t, "привет", form[0].Value)
		require.Equal(t, "windows-1251", form[0].Charset)
	})

	t.Run("_charset_ field", func(t *testing.T) {
		req := newRequest(t, 16,
			entry{Name: "_charset_", Content: "cp1251"},
			entry{Name: "greeting", Content: cp1251},
			entry{Name: "override", Type: "text/plain; charset=utf-8", Content: "привет"},
		)
		form, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.NoError(t, err)

		want := Form{
			{Name: "greeting", Type: "text/plain", Charset: "cp1251", Value: "привет"},
			{Name: "override", Type: "text/plain", Charset: "utf-8", Value: "привет"},
		}
		if diff := cmp.Diff(want, form); diff != "" {
			t.Errorf("form mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty _charset_", func(t *testing.T) {
		req := newRequest(t, 16, entry{Name: "_charset_"})
		_, err := NewParser(config.Default(), nil).Parse(context.Background(), req)
		require.ErrorIs(t, err, ErrEmptyCharset)
	})

	t.Run("unknown charset", func(t *testing.T) {
		require.Equal(t, "raw", decodeText("raw", "x-unknown"))
		require.Equal(t, "raw", decodeText("raw", ""))
		require.Equal(t, "привет", decodeText("привет", "UTF-8"))
	})
}

func TestURLEncoded(t *testing.T) {
	parse := func(cfg *config.Config, body string) (Form, error) {
		req := NewRequest("application/x-www-form-urlencoded; charset=utf-8", multipart.FromBytes([]byte(body), 4))
		return NewParser(cfg, nil).Parse(context.Background(), req)
	}

	t.Run("positive", func(t *testing.T) {
		form, err := parse(config.Default(), "username=Alice&hobby=chess&hobby=go+lang&note=%21")
		require.NoError(t, err)

		want := Form{
			{Name: "username", Type: "text/plain", Charset: "utf8", Value: "Alice"},
			{Name: "hobby", Type: "text/plain", Charset: "utf8", Value: "chess"},
			{Name: "hobby", Type: "text/plain", Charset: "utf8", Value: "go lang"},
			{Name: "note", Type: "text/plain", Charset: "utf8", Value: "!"},
		}
		if diff := cmp.Diff(want, form); diff != "" {
			t.Errorf("form mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parse(config.Default(), "a=%zz")
		var target *FormDataParseError
		require.ErrorAs(t, err, &target)
		require.ErrorIs(t, err, ErrFormData)
	})

	t.Run("too large", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxURLEncodedSize = 10
		_, err := parse(cfg, "a=0123456789")
		require.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("unsupported", func(t *testing.T) {
		for _, contentType := range []string{"", "application/json", "text/plain"} {
			req := NewRequest(contentType, multipart.FromBytes([]byte("{}"), 4))
			_, err := NewParser(nil, nil).Parse(context.Background(), req)
			require.ErrorIs(t, err, ErrUnsupportedMediaType, contentType)
		}
	})
}

func TestStoreHandler(t *testing.T) {
	store, err := disk.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	parser := NewParser(config.Default(), StoreHandler(store, zap.NewNop()))

	t.Run("stored", func(t *testing.T) {
		content := strings.Repeat("0123456789", 10_000)
		cfg := config.Default()
		cfg.Multipart.MaxFileSize = 0
		req := newRequest(t, 4096,
			entry{Name: "doc", Filename: "doc.txt", Type: "text/plain", Content: content, File: true},
			entry{Name: "empty", Filename: "", File: true},
		)

		form, err := NewParser(cfg, StoreHandler(store, nil)).Parse(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, form, 1, "empty file inputs are omitted")

		obj, ok := form[0].File.(storage.Object)
		require.True(t, ok)
		require.EqualValues(t, len(content), obj.Size)
		require.Equal(t, "doc.txt", obj.Filename)

		rc, err := store.Open(context.Background(), obj.Key)
		require.NoError(t, err)
		defer rc.Close()
		var stored bytes.Buffer
		_, err = stored.ReadFrom(rc)
		require.NoError(t, err)
		require.Equal(t, content, stored.String())
	})

	t.Run("cleanup after failure", func(t *testing.T) {
		cfg := config.Default()
		cfg.Form.MaxFiles = 1
		req := newRequest(t, 64,
			entry{Name: "a", Filename: "a.txt", Content: "a", File: true},
			entry{Name: "b", Filename: "b.txt", Content: "b", File: true},
		)

		form, err := NewParser(cfg, StoreHandler(store, nil)).Parse(context.Background(), req)
		require.Error(t, err)
		require.Len(t, form, 1)

		key := form[0].File.(storage.Object).Key
		require.NoError(t, Cleanup(context.Background(), store, form))
		_, err = store.Open(context.Background(), key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("oversized file isn't stored", func(t *testing.T) {
		req := newRequest(t, 1024,
			entry{Name: "big", Filename: "big.bin", Content: strings.Repeat("x", 3*1024*1024), File: true},
		)
		_, err := parser.Parse(context.Background(), req)

		var target *multipart.MaxFileSizeExceededError
		require.ErrorAs(t, err, &target)
	})
}

func TestJSON(t *testing.T) {
	form := Form{
		{Name: "username", Type: "text/plain", Value: "Alice"},
		{Name: "avatar", Filename: "a.png", Type: "image/png", File: storage.Object{Key: "k", Size: 3, Sum: "ff"}},
	}

	data, err := form.JSON()
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"name": "username", "type": "text/plain", "value": "Alice"},
		{"name": "avatar", "filename": "a.png", "type": "image/png", "file": {"key": "k", "size": 3, "blake2b": "ff"}}
	]`, string(data))

	data, err = Form(nil).JSON()
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func BenchmarkParse(b *testing.B) {
	parser := NewParser(config.Default(), func(context.Context, *FileUpload) (any, error) {
		return true, nil
	})

	var buff bytes.Buffer
	w := stdmultipart.NewWriter(&buff)
	for i := 0; i < 10; i++ {
		fw, _ := w.CreateFormField(fmt.Sprintf("field%d", i))
		_, _ = fw.Write([]byte("value"))
	}
	ff, _ := w.CreateFormFile("file", "file.bin")
	_, _ = ff.Write(bytes.Repeat([]byte("x"), 64*1024))
	_ = w.Close()
	body := buff.Bytes()

	b.SetBytes(int64(len(body)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := NewRequest(w.FormDataContentType(), multipart.FromBytes(body, 4096))
		if _, err := parser.Parse(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
