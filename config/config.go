package config

import (
	"github.com/indigo-web/formdata/mime"
)

type (
	MultipartBuffer struct {
		Default, Maximal int
	}

	Multipart struct {
		// Buffer controls the ring buffer holding not yet consumed input. Default is the
		// initial capacity, Maximal is a hard ceiling: whatever the size of the body, a single
		// request never occupies more than Maximal bytes of parser memory.
		Buffer MultipartBuffer
		// MaxHeaderSize limits a single part's header block. Zero disables the check, however
		// the block is still bounded by Buffer.Maximal.
		MaxHeaderSize int
		// MaxFileSize limits the body of every file part. Zero disables the check.
		MaxFileSize int64
		// ReadSize is the size of chunks pulled from io.Reader-backed sources.
		ReadSize int
	}

	Form struct {
		// MaxFiles is the maximal number of file parts in a single form. Zero disables the
		// check.
		MaxFiles int
		// MaxFieldSize limits the value of a single text field, as those are collected in
		// memory. Zero disables the check, leaving text fields unbounded.
		MaxFieldSize int
		// EntriesPrealloc is the number of preallocated seats for form.Form.
		EntriesPrealloc int
		// MaxURLEncodedSize limits application/x-www-form-urlencoded bodies, as those are
		// read at once.
		MaxURLEncodedSize int
		// DefaultCoding sets the default charset of text fields unless one is explicitly set
		// either by the part itself or by the _charset_ field.
		DefaultCoding mime.Charset
		// DefaultContentType sets the default MIME of text fields unless one is explicitly set.
		DefaultContentType mime.MIME
	}
)

// Config holds limits and pre-allocations used across the parsers.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Multipart Multipart
	Form      Form
}

// Default returns default config. The limits are deliberately modest, as every request
// gets its own buffer.
func Default() *Config {
	return &Config{
		Multipart: Multipart{
			Buffer: MultipartBuffer{
				Default: 4 * 1024,
				Maximal: 64 * 1024,
			},
			MaxHeaderSize: 8 * 1024,
			MaxFileSize:   2 * 1024 * 1024, // 2 megabytes
			ReadSize:      4 * 1024,
		},
		Form: Form{
			MaxFiles:           20,
			MaxFieldSize:       64 * 1024,
			EntriesPrealloc:    8,
			MaxURLEncodedSize:  1024 * 1024,
			DefaultCoding:      mime.UTF8,
			DefaultContentType: mime.Plain,
		},
	}
}
