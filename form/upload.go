package form

import (
	"context"
	"io"

	"github.com/indigo-web/formdata/multipart"
	"github.com/indigo-web/formdata/storage"
	"go.uber.org/zap"
)

// UploadHandler decides what happens to a file part. The returned value ends up in
// Data.File; returning nil omits the field from the form entirely. The body isn't required
// to be consumed: whatever is left unread is skipped.
type UploadHandler func(ctx context.Context, file *FileUpload) (any, error)

// FileUpload is a file part being received. It implements io.Reader over the part body,
// which can be consumed only once, either via Read or via Bytes/Text.
type FileUpload struct {
	FieldName string
	Filename  string
	MediaType string
	Headers   multipart.Headers

	part   *multipart.Part
	stream io.Reader
}

func newFileUpload(part *multipart.Part, filename, mediaType string) *FileUpload {
	return &FileUpload{
		FieldName: part.Name,
		Filename:  filename,
		MediaType: mediaType,
		Headers:   part.Headers,
		part:      part,
	}
}

func (f *FileUpload) Read(p []byte) (int, error) {
	if f.stream == nil {
		stream, err := f.part.Stream()
		if err != nil {
			return 0, err
		}

		f.stream = stream
	}

	return f.stream.Read(p)
}

func (f *FileUpload) Bytes() ([]byte, error) {
	return f.part.Bytes()
}

func (f *FileUpload) Text() (string, error) {
	return f.part.Text()
}

// Size returns the number of bytes received so far.
func (f *FileUpload) Size() int64 {
	return f.part.Size()
}

// MemoryFile is a file kept in memory entirely.
type MemoryFile struct {
	Filename  string `json:"filename"`
	MediaType string `json:"type"`
	Data      []byte `json:"data"`
}

// MemoryHandler is the default upload handler. Files are limited only by
// config.Multipart.MaxFileSize, so it must be set to something reasonable.
func MemoryHandler(_ context.Context, file *FileUpload) (any, error) {
	data, err := file.Bytes()
	if err != nil {
		return nil, err
	}

	return &MemoryFile{
		Filename:  file.Filename,
		MediaType: file.MediaType,
		Data:      data,
	}, nil
}

// StoreHandler streams files into the storage under random keys. Resulting form entries
// carry storage.Object. File inputs with nothing selected (empty filename) are omitted.
func StoreHandler(store storage.Storage, log *zap.Logger) UploadHandler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(ctx context.Context, file *FileUpload) (any, error) {
		if len(file.Filename) == 0 {
			log.Debug("skipping empty file input", zap.String("field", file.FieldName))
			return nil, nil
		}

		obj, err := store.Put(ctx, storage.NewKey(), file, storage.Meta{
			Filename:  file.Filename,
			MediaType: file.MediaType,
		})
		if err != nil {
			return nil, err
		}

		log.Debug("stored uploaded file",
			zap.String("field", file.FieldName),
			zap.String("key", obj.Key),
			zap.Int64("size", obj.Size),
		)

		return obj, nil
	}
}

// Cleanup deletes the stored files of the form. Useful when the form turned out to be
// broken after some files were already stored by StoreHandler.
func Cleanup(ctx context.Context, store storage.Storage, form Form) error {
	var keys []string

	for _, entry := range form {
		if obj, ok := entry.File.(storage.Object); ok {
			keys = append(keys, obj.Key)
		}
	}

	if len(keys) == 0 {
		return nil
	}

	return store.Delete(ctx, keys...)
}
