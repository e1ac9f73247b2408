package form

import (
	"github.com/indigo-web/formdata/mime"
)

// decodeText converts the text into UTF-8. Unknown charsets and undecodable texts are
// returned as is.
func decodeText(text string, charset mime.Charset) string {
	enc, name, ok := mime.Encoding(charset)
	if !ok || name == "utf-8" {
		return text
	}

	decoded, err := enc.NewDecoder().String(text)
	if err != nil {
		return text
	}

	return decoded
}
