package form

import (
	"net/http"

	"github.com/indigo-web/formdata/multipart"
)

// Request is the body to be parsed along with its content type.
type Request interface {
	ContentType() string
	multipart.Retriever
}

type request struct {
	multipart.Retriever
	contentType string
}

func (r request) ContentType() string {
	return r.contentType
}

func NewRequest(contentType string, body multipart.Retriever) Request {
	return request{
		Retriever:   body,
		contentType: contentType,
	}
}

// FromHTTP adapts the request of net/http. The body is read in chunks of readSize bytes.
func FromHTTP(r *http.Request, readSize int) Request {
	return NewRequest(r.Header.Get("Content-Type"), multipart.FromReader(r.Body, readSize))
}
