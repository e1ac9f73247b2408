package multipart

import (
	"iter"
	"strings"

	"github.com/indigo-web/formdata/internal/strutil"
	"github.com/indigo-web/utils/strcomp"
)

type Header struct {
	Key, Value string
}

// Headers is an ordered list of part headers as they appeared on the wire.
type Headers []Header

// Get returns the first value of the header. Keys are compared case-insensitively.
func (h Headers) Get(key string) (string, bool) {
	for value := range h.Values(key) {
		return value, true
	}

	return "", false
}

// Value returns the first value of the header or an empty string.
func (h Headers) Value(key string) string {
	value, _ := h.Get(key)
	return value
}

// Values returns an iterator over all values of the header.
func (h Headers) Values(key string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, header := range h {
			if strcomp.EqualFold(header.Key, key) {
				if !yield(header.Value) {
					break
				}
			}
		}
	}
}

// parseHeaders parses a header block without the terminating CRLFCRLF. Obsolete line
// folding is accepted: a line beginning with a whitespace continues the previous value.
func parseHeaders(block string) (headers Headers, err error) {
	for len(block) > 0 {
		var line string
		line, block, _ = strings.Cut(block, "\r\n")
		if len(line) == 0 {
			return nil, ErrInvalidHeader
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(headers) == 0 {
				return nil, ErrInvalidHeader
			}

			last := &headers[len(headers)-1]
			last.Value += " " + strutil.StripWS(line)
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, ErrInvalidHeader
		}

		key := strutil.RStripWS(line[:colon])
		if len(key) == 0 {
			return nil, ErrInvalidHeader
		}

		headers = append(headers, Header{
			Key:   key,
			Value: strutil.StripWS(line[colon+1:]),
		})
	}

	return headers, nil
}

type disposition struct {
	Name, Filename string
	HasFilename    bool
}

// parseDisposition extracts name and filename parameters from Content-Disposition value,
// e.g. `form-data; name="file1"; filename="a.txt"`. The extended filename* parameter
// (RFC 5987) takes precedence over the plain one.
func parseDisposition(value string) (d disposition) {
	_, params := strutil.CutHeader(value)
	var extended bool

	for key, param := range strutil.WalkParams(params) {
		switch {
		case strcomp.EqualFold(key, "name"):
			d.Name = param
		case strcomp.EqualFold(key, "filename"):
			d.HasFilename = true
			if !extended {
				d.Filename = param
			}
		case strcomp.EqualFold(key, "filename*"):
			if filename, ok := decodeExtValue(param); ok {
				d.Filename, d.HasFilename, extended = filename, true, true
			}
		}
	}

	return d
}

// decodeExtValue decodes values in form of charset'language'percent-encoded-value. Only the
// percent-encoding is resolved, the charset is assumed to be UTF-8-compatible.
func decodeExtValue(value string) (string, bool) {
	_, rest, found := strings.Cut(value, "'")
	if !found {
		return "", false
	}

	_, encoded, found := strings.Cut(rest, "'")
	if !found {
		return "", false
	}

	return strutil.URLDecode(encoded)
}

// parseContentType splits Content-Type value into the media type and its charset parameter.
func parseContentType(value string) (mediaType, charset string) {
	mediaType, params := strutil.CutHeader(value)

	for key, param := range strutil.WalkParams(params) {
		if strcomp.EqualFold(key, "charset") {
			charset = param
		}
	}

	return strutil.StripWS(mediaType), charset
}
