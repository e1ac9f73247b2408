package mime

import (
	"strings"

	"github.com/indigo-web/formdata/internal/strutil"
	"github.com/indigo-web/utils/strcomp"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	JSON           MIME = "application/json"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	MultipartMixed MIME = "multipart/mixed"
	PNG            MIME = "image/png"
	JPEG           MIME = "image/jpeg"
)

// Complies returns whether two MIMEs are compatible. Empty MIME is
// considered compatible with any other MIME
func Complies(mime MIME, with string) bool {
	// get rid of parameters if any
	with, _ = strutil.CutHeader(with)
	with = strutil.RStripWS(with)
	return len(with) == 0 || strcomp.EqualFold(with, mime)
}

// IsMultipart tells whether the content type belongs to the multipart family, e.g.
// multipart/form-data or multipart/mixed.
func IsMultipart(contentType string) bool {
	const prefix = "multipart/"
	contentType = strutil.LStripWS(contentType)

	return len(contentType) > len(prefix) && strings.EqualFold(contentType[:len(prefix)], prefix)
}

// IsText tells whether values of the type are meant to be presented as text.
func IsText(mime MIME) bool {
	mime, _ = strutil.CutHeader(mime)
	return len(mime) == 0 || strings.HasPrefix(strings.ToLower(mime), "text/")
}
