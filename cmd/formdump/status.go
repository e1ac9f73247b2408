package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/indigo-web/formdata/form"
	"github.com/indigo-web/formdata/multipart"
)

type HTTPError struct {
	Message string
	Code    int
}

func NewError(code int, message string) HTTPError {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest           = NewError(http.StatusBadRequest, "bad request")
	ErrRequestTimeout       = NewError(http.StatusRequestTimeout, "request timeout")
	ErrBodyTooLarge         = NewError(http.StatusRequestEntityTooLarge, "request body is too large")
	ErrUnsupportedMediaType = NewError(http.StatusUnsupportedMediaType, "unsupported media type")
	ErrInternalServerError  = NewError(http.StatusInternalServerError, "internal server error")
)

// statusOf maps parsing errors into responses: quotas are 413, malformed bodies are 400.
func statusOf(err error) HTTPError {
	var (
		fileSize   *multipart.MaxFileSizeExceededError
		headerSize *multipart.MaxHeaderSizeExceededError
		files      *form.MaxFilesExceededError
		field      *form.MaxFieldSizeExceededError
	)

	switch {
	case errors.As(err, &fileSize), errors.As(err, &headerSize), errors.As(err, &files),
		errors.As(err, &field), errors.Is(err, multipart.ErrBufferOverflow),
		errors.Is(err, form.ErrBodyTooLarge):
		return NewError(ErrBodyTooLarge.Code, err.Error())
	case errors.Is(err, form.ErrUnsupportedMediaType):
		return ErrUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return ErrRequestTimeout
	case errors.Is(err, multipart.ErrParse), errors.Is(err, form.ErrFormData):
		return NewError(ErrBadRequest.Code, err.Error())
	default:
		return ErrInternalServerError
	}
}
