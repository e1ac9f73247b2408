package form

import (
	"errors"
	"fmt"

	"github.com/indigo-web/formdata/multipart"
)

// ErrFormData is the class of all errors produced by the form assembly itself.
var ErrFormData = errors.New("form: malformed form data")

var (
	ErrUnsupportedMediaType = errors.New("unsupported content type")
	ErrEmptyCharset         = errors.New("empty _charset_ field")
	ErrBodyTooLarge         = errors.New("urlencoded body is too large")
)

// FormDataParseError wraps failures of the urlencoded fallback and any otherwise untyped
// failure, e.g. a broken body source or a failed upload handler.
type FormDataParseError struct {
	Err error
}

func (f *FormDataParseError) Error() string {
	return "form: " + f.Err.Error()
}

func (f *FormDataParseError) Unwrap() error {
	return f.Err
}

func (f *FormDataParseError) Is(target error) bool {
	return target == ErrFormData
}

// MaxFilesExceededError is a quota error, so it belongs to multipart.ErrParse class as well.
type MaxFilesExceededError struct {
	MaxFiles int
}

func (m *MaxFilesExceededError) Error() string {
	return fmt.Sprintf("form: more than %d files", m.MaxFiles)
}

func (m *MaxFilesExceededError) Is(target error) bool {
	return target == ErrFormData || target == multipart.ErrParse
}

// MaxFieldSizeExceededError is returned when a text field is bigger than allowed. Like
// MaxFilesExceededError, it is a quota error.
type MaxFieldSizeExceededError struct {
	MaxFieldSize int
}

func (m *MaxFieldSizeExceededError) Error() string {
	return fmt.Sprintf("form: text field exceeds %d bytes", m.MaxFieldSize)
}

func (m *MaxFieldSizeExceededError) Is(target error) bool {
	return target == ErrFormData || target == multipart.ErrParse
}
