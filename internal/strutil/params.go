package strutil

import (
	"iter"
	"strings"
)

// WalkParams iterates over header parameters, e.g. `name="field"; filename="a;b.txt"`.
// Unlike a naive split, semicolons inside quoted values don't terminate the parameter.
// Keys are returned as is, values are unquoted. Parameters without a value (flags) are
// yielded with an empty value.
func WalkParams(params string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for len(params) > 0 {
			var param string
			param, params = cutParam(params)
			params = LStripWS(params)

			param = StripWS(param)
			if len(param) == 0 {
				continue
			}

			key, value, _ := strings.Cut(param, "=")
			if !yield(RStripWS(key), Unquote(LStripWS(value))) {
				return
			}
		}
	}
}

func cutParam(params string) (param, rest string) {
	var quoted bool

	for i := 0; i < len(params); i++ {
		switch params[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				return params[:i], params[i+1:]
			}
		}
	}

	return params, ""
}
