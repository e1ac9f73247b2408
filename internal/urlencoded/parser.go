package urlencoded

import (
	"errors"
	"strings"

	"github.com/indigo-web/formdata/internal/strutil"
)

var (
	ErrEmptyKey      = errors.New("urlencoded: empty key")
	ErrBadEncoding   = errors.New("urlencoded: malformed percent-encoding")
	ErrIllegalSymbol = errors.New("urlencoded: illegal symbol")
)

type CB = func(key, value string)

// Parse walks over application/x-www-form-urlencoded pairs, calling cb for every one of
// them in order of appearance. Both keys and values are decoded, including pluses as spaces.
// Keys without value (flags) are passed with defFlagValue. A trailing ampersand is tolerated.
func Parse(data string, cb CB, defFlagValue string) error {
	for len(data) > 0 {
		var pair string
		pair, data, _ = strings.Cut(data, "&")
		if containsIllegalSymbol(pair) {
			return ErrIllegalSymbol
		}

		key, value, hasValue := strings.Cut(pair, "=")
		key, ok := strutil.FormDecode(key)
		if !ok {
			return ErrBadEncoding
		}

		if len(key) == 0 {
			return ErrEmptyKey
		}

		if !hasValue {
			cb(key, defFlagValue)
			continue
		}

		value, ok = strutil.FormDecode(value)
		if !ok {
			return ErrBadEncoding
		}

		cb(key, value)
	}

	return nil
}

func containsIllegalSymbol(data string) bool {
	for i := 0; i < len(data); i++ {
		if illegalSymbol(data[i]) {
			return true
		}
	}

	return false
}

func illegalSymbol(c byte) bool {
	// exclude all non-printable characters and whitespaces
	return c < 0x21 || c > 0x7e
}
