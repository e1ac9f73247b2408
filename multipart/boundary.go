package multipart

import (
	"github.com/indigo-web/formdata/internal/strutil"
	"github.com/indigo-web/formdata/mime"
	"github.com/indigo-web/utils/strcomp"
)

// maxBoundaryLen is defined by RFC 2046, section 5.1.1.
const maxBoundaryLen = 70

// Boundary extracts the boundary parameter from a multipart Content-Type value, e.g.
// `multipart/form-data; boundary=----WebKitFormBoundary7MA4YWxkTrZu0gW`.
func Boundary(contentType string) (boundary string, err error) {
	if !mime.IsMultipart(contentType) {
		return "", ErrNotMultipart
	}

	var found bool

	for key, value := range strutil.WalkParams(strutil.CutParams(contentType)) {
		if !strcomp.EqualFold(key, "boundary") {
			continue
		}

		if found {
			// ambiguous
			return "", ErrNoBoundary
		}

		boundary, found = value, true
	}

	switch {
	case len(boundary) == 0:
		return "", ErrNoBoundary
	case len(boundary) > maxBoundaryLen:
		return "", ErrBoundaryTooLong
	default:
		return boundary, nil
	}
}
