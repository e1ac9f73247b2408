package multipart

import (
	"io"

	"github.com/indigo-web/chunkedbody"
)

// Retriever is a source of body chunks. The returned chunk is valid only until the next
// call. The last chunk may be returned along with io.EOF.
type Retriever interface {
	Retrieve() ([]byte, error)
}

type RetrieverFunc func() ([]byte, error)

func (r RetrieverFunc) Retrieve() ([]byte, error) {
	return r()
}

// FromReader pulls chunks of at most size bytes from the reader.
func FromReader(r io.Reader, size int) Retriever {
	return &readerSource{
		src: r,
		buf: make([]byte, max(size, 1)),
	}
}

type readerSource struct {
	src io.Reader
	buf []byte
}

func (r *readerSource) Retrieve() ([]byte, error) {
	n, err := r.src.Read(r.buf)
	return r.buf[:n], err
}

// FromBytes serves the data in chunks of chunkSize bytes. Mostly useful for already read
// bodies and tests.
func FromBytes(data []byte, chunkSize int) Retriever {
	chunkSize = max(chunkSize, 1)

	return RetrieverFunc(func() ([]byte, error) {
		if len(data) == 0 {
			return nil, io.EOF
		}

		n := min(len(data), chunkSize)
		chunk := data[:n]
		data = data[n:]

		return chunk, nil
	})
}

// Chunked decodes a body transferred with Transfer-Encoding: chunked. Trailers aren't
// expected.
func Chunked(r io.Reader, size int) Retriever {
	return &chunkedSource{
		src:    r,
		buf:    make([]byte, max(size, 1)),
		parser: chunkedbody.NewParser(chunkedbody.DefaultSettings()),
	}
}

type chunkedSource struct {
	src     io.Reader
	parser  *chunkedbody.Parser
	buf     []byte
	pending []byte
	readErr error
	eof     bool
}

func (c *chunkedSource) Retrieve() ([]byte, error) {
	for {
		if c.eof {
			return nil, io.EOF
		}

		if len(c.pending) == 0 {
			if err := c.fill(); err != nil {
				return nil, err
			}

			continue
		}

		chunk, extra, err := c.parser.Parse(c.pending, false)
		c.pending = extra

		switch err {
		case nil:
		case io.EOF:
			c.eof = true
			return chunk, io.EOF
		default:
			return nil, err
		}

		if len(chunk) > 0 {
			return chunk, nil
		}
	}
}

func (c *chunkedSource) fill() error {
	if c.readErr != nil {
		if c.readErr == io.EOF {
			// the terminating zero-length chunk wasn't met
			return io.ErrUnexpectedEOF
		}

		return c.readErr
	}

	n, err := c.src.Read(c.buf)
	c.pending, c.readErr = c.buf[:n], err

	return nil
}
