package strutil

import (
	"strings"

	"github.com/indigo-web/formdata/internal/hex"
)

// URLDecode decodes percent-encoded sequences and tells whether the string was properly formed.
// Pluses are left untouched; use FormDecode for application/x-www-form-urlencoded data.
func URLDecode(str string) (string, bool) {
	return decode(str, false)
}

// FormDecode behaves like URLDecode, but additionally decodes pluses as spaces.
func FormDecode(str string) (string, bool) {
	return decode(str, true)
}

func decode(str string, plus bool) (string, bool) {
	special := "%"
	if plus {
		special = "%+"
	}

	if strings.IndexAny(str, special) == -1 {
		return str, true
	}

	var b strings.Builder
	b.Grow(len(str))
	s := str

	for len(s) > 0 {
		i := strings.IndexAny(s, special)
		if i == -1 {
			break
		}

		b.WriteString(s[:i])
		if s[i] == '+' {
			b.WriteByte(' ')
			s = s[i+1:]
			continue
		}

		s = s[i+1:]
		if len(s) < 2 {
			return "", false
		}

		x, y := hex.Halfbyte[s[0]], hex.Halfbyte[s[1]]
		if x|y == 0xFF {
			return "", false
		}

		b.WriteByte(x<<4 | y)
		s = s[2:]
	}

	b.WriteString(s)

	return b.String(), true
}
