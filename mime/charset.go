package mime

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

type Charset = string

const (
	UTF8   Charset = "utf8"
	UTF16  Charset = "utf16"
	ASCII  Charset = "ascii"
	CP1251 Charset = "cp1251"
	CP1252 Charset = "cp1252"
)

// Encoding looks the charset label up, following the WHATWG encoding registry. The
// canonical name is returned along with the encoding, e.g. windows-1251 for cp1251.
func Encoding(charset Charset) (enc encoding.Encoding, name string, ok bool) {
	if len(charset) == 0 {
		return nil, "", false
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, "", false
	}

	name, _ = htmlindex.Name(enc)
	return enc, name, true
}

// IsUTF8 reports whether texts in the charset need no conversion.
func IsUTF8(charset Charset) bool {
	_, name, ok := Encoding(charset)
	return ok && name == "utf-8"
}
