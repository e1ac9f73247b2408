// Package search implements byte sequence lookups over one or two segments. Two segments
// appear whenever the searched window wraps around a ring buffer, therefore the functions
// treat head followed by tail as a single sequence without ever concatenating them.
package search

import "bytes"

// IndexOf returns the index of the first needle occurrence in haystack, or -1.
func IndexOf(haystack, needle []byte) int {
	return bytes.Index(haystack, needle)
}

// CombinedIndexOf returns the index of the first needle occurrence in the logical sequence
// head+tail, or -1. The returned offset is relative to the beginning of head.
func CombinedIndexOf(head, tail, needle []byte) int {
	if len(tail) == 0 {
		return bytes.Index(head, needle)
	}

	if len(needle) == 0 {
		return 0
	}

	if i := bytes.Index(head, needle); i != -1 {
		return i
	}

	// candidates crossing the split point: those start in the last len(needle)-1 bytes of head
	for i := max(0, len(head)-len(needle)+1); i < len(head); i++ {
		if straddles(head[i:], tail, needle) {
			return i
		}
	}

	if i := bytes.Index(tail, needle); i != -1 {
		return len(head) + i
	}

	return -1
}

// straddles checks whether needle begins with head and is continued in tail.
func straddles(head, tail, needle []byte) bool {
	rest := len(needle) - len(head)
	if rest > len(tail) {
		return false
	}

	return bytes.Equal(head, needle[:len(head)]) && bytes.Equal(tail[:rest], needle[len(head):])
}

// HasPrefix tells whether the logical sequence head+tail begins with the prefix.
func HasPrefix(head, tail, prefix []byte) bool {
	if len(head)+len(tail) < len(prefix) {
		return false
	}

	if len(head) >= len(prefix) {
		return bytes.Equal(head[:len(prefix)], prefix)
	}

	return straddles(head, tail, prefix)
}

// At returns the byte at the logical offset i of head+tail.
func At(head, tail []byte, i int) byte {
	if i < len(head) {
		return head[i]
	}

	return tail[i-len(head)]
}
