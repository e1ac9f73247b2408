package multipart

import (
	"io"
	"sync"

	"github.com/indigo-web/utils/uf"
)

// Part is a single entry of a multipart body. The metadata is available right away, as
// the part is created once its header block is parsed, however the body is delivered
// incrementally, as the input arrives.
//
// The body can be consumed only once and only in one way: either via Text, Bytes or Stream.
// Any subsequent call returns ErrBodyUsed.
type Part struct {
	// Name is the name parameter of Content-Disposition.
	Name string
	// Filename is the filename (or filename*) parameter of Content-Disposition.
	Filename string
	// MediaType is Content-Type value without parameters. Empty if not presented.
	MediaType string
	// Charset is the charset parameter of Content-Type. Empty if not presented.
	Charset string
	Headers Headers

	isFile bool
	body   body
}

func newPart(headers Headers) *Part {
	d := parseDisposition(headers.Value("Content-Disposition"))
	mediaType, charset := parseContentType(headers.Value("Content-Type"))

	part := &Part{
		Name:      d.Name,
		Filename:  d.Filename,
		MediaType: mediaType,
		Charset:   charset,
		Headers:   headers,
		isFile:    d.HasFilename,
	}
	part.body.cond.L = &part.body.mu

	return part
}

// IsFile tells whether the part carries a filename parameter. Empty filename counts, too:
// browsers send it for file inputs with nothing selected.
func (p *Part) IsFile() bool {
	return p.isFile
}

func (p *Part) IsText() bool {
	return !p.isFile
}

// Size returns the number of body bytes received so far.
func (p *Part) Size() int64 {
	p.body.mu.Lock()
	defer p.body.mu.Unlock()

	return p.body.size
}

// Bytes collects the whole body.
func (p *Part) Bytes() ([]byte, error) {
	if err := p.body.claim(); err != nil {
		return nil, err
	}

	return io.ReadAll(bodyReader{&p.body})
}

// Text collects the whole body and returns it as a string. No charset conversion is done.
func (p *Part) Text() (string, error) {
	data, err := p.Bytes()
	return uf.B2S(data), err
}

// Stream returns a reader over the body. The reader returns io.EOF once the part is over,
// and an error in case the body was terminated abnormally (e.g. MaxFileSizeExceededError
// or ErrUnexpectedEOF).
func (p *Part) Stream() (io.Reader, error) {
	if err := p.body.claim(); err != nil {
		return nil, err
	}

	return bodyReader{&p.body}, nil
}

type bodyReader struct {
	body *body
}

func (b bodyReader) Read(p []byte) (int, error) {
	return b.body.read(p)
}

// body is a one-shot queue of bytes between the parser (producer) and the consumer.
type body struct {
	mu   sync.Mutex
	cond sync.Cond
	buf  []byte
	off  int
	size int64
	err  error
	// feed requests more input from the stream, returning false if no more is going to come.
	// Without it, the reader waits for the producer running in another goroutine.
	feed      func() bool
	closed    bool
	used      bool
	discarded bool
	// cut is set when the body was discarded while being read.
	cut bool
}

func (b *body) claim() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used {
		return ErrBodyUsed
	}

	b.used = true
	return nil
}

func (b *body) write(head, tail []byte) {
	b.mu.Lock()
	b.size += int64(len(head) + len(tail))
	if !b.closed && !b.discarded {
		b.buf = append(append(b.buf, head...), tail...)
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// close marks the end of the body. Non-nil error is returned to the consumer after all the
// pending data is read. Subsequent calls are no-op.
func (b *body) close(err error) {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.err = err
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// discard drops any pending and future data. Reading a discarded body results in io.EOF,
// unless its stream was cut short.
func (b *body) discard() {
	b.mu.Lock()
	// a stream claimed before must not end with a clean io.EOF if anything was dropped
	b.cut = b.used && (!b.closed || b.off < len(b.buf))
	b.discarded, b.used = true, true
	b.buf, b.off = nil, 0
	b.mu.Unlock()
}

func (b *body) read(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.off == len(b.buf) && !b.closed && !b.discarded {
		if b.feed == nil {
			b.cond.Wait()
			continue
		}

		b.mu.Unlock()
		more := b.feed()
		b.mu.Lock()

		if !more && b.off == len(b.buf) && !b.closed {
			return 0, ErrUnexpectedEOF
		}
	}

	if b.off < len(b.buf) {
		n = copy(p, b.buf[b.off:])
		b.off += n
		if b.off == len(b.buf) {
			b.buf, b.off = b.buf[:0], 0
		}

		return n, nil
	}

	if b.cut {
		return 0, ErrBodyDiscarded
	}

	if b.err != nil && !b.discarded {
		return 0, b.err
	}

	return 0, io.EOF
}
