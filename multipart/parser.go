package multipart

import (
	"github.com/indigo-web/formdata/config"
	"github.com/indigo-web/formdata/internal/buffer"
	"github.com/indigo-web/formdata/internal/search"
)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
	dashes   = []byte("--")
)

// Parser is an incremental multipart state machine. It's fed via Push with arbitrarily
// sized chunks and never blocks nor does any I/O itself. Parts are returned as soon as their
// header blocks are parsed, and their bodies are filled as the data arrives.
//
// The parser keeps only the bytes it can't decide upon yet: an incomplete header block or
// a tail which might turn out to be the beginning of a delimiter. Their amount is bounded
// by cfg.Buffer.Maximal.
//
// The parser isn't safe for concurrent use.
type Parser struct {
	cfg config.Multipart
	buf *buffer.Ring
	// delimiter is CRLF--boundary. The very first one may go without the leading CRLF, so
	// delimiter[2:] is used to skip the preamble.
	delimiter []byte
	state     State
	part      *Part
	emitted   int64
	scratch   []byte
	parts     []*Part
	err       error
}

// NewParser returns a new parser. The boundary must not be empty, see Boundary for how to
// extract it.
func NewParser(boundary string, cfg config.Multipart) *Parser {
	if len(boundary) == 0 {
		panic("multipart: empty boundary")
	}

	delimiter := make([]byte, 0, len(boundary)+4)
	delimiter = append(append(delimiter, "\r\n--"...), boundary...)
	// the buffer must be able to hold at least a delimiter along with its suffix, otherwise
	// the parser might get stuck
	maximal := max(cfg.Buffer.Maximal, 2*len(delimiter))

	return &Parser{
		cfg:       cfg,
		buf:       buffer.NewRing(min(cfg.Buffer.Default, maximal), maximal),
		delimiter: delimiter,
		state:     StatePreamble,
	}
}

// Push feeds the parser with a chunk of the input. It returns parts, whose headers were
// completed during the call. The chunk isn't retained, so it may be reused by the caller
// right after the call.
//
// Once an error is returned, every subsequent call returns it again.
func (p *Parser) Push(chunk []byte) ([]*Part, error) {
	p.parts = nil
	if p.err != nil {
		return nil, p.err
	}

	for len(chunk) > 0 && p.state != StateDone {
		n := min(len(chunk), p.buf.Free())
		if n == 0 {
			return p.parts, p.fail(ErrBufferOverflow)
		}

		if err := p.buf.Append(chunk[:n]); err != nil {
			return p.parts, p.fail(ErrBufferOverflow)
		}

		chunk = chunk[n:]
		if err := p.advance(); err != nil {
			return p.parts, p.fail(err)
		}
	}

	return p.parts, nil
}

// Finish tells the parser there's no more input. If the closing delimiter wasn't met yet,
// the parser fails with ErrUnexpectedEOF. The error is propagated into the body of the
// current part as well.
func (p *Parser) Finish() error {
	switch {
	case p.err != nil:
		return p.err
	case p.state == StateDone:
		return nil
	default:
		return p.fail(ErrUnexpectedEOF)
	}
}

// Done tells whether the closing delimiter was met.
func (p *Parser) Done() bool {
	return p.state == StateDone
}

func (p *Parser) State() State {
	return p.state
}

func (p *Parser) fail(err error) error {
	p.err = err
	p.state = StateFailed
	if p.part != nil {
		p.part.body.close(err)
		p.part = nil
	}

	p.buf.Reset()
	return err
}

func (p *Parser) advance() error {
	for {
		var (
			progressed bool
			err        error
		)

		switch p.state {
		case StatePreamble:
			progressed = p.preamble()
		case StateBoundarySuffix:
			progressed, err = p.boundarySuffix()
		case StateHeaders:
			progressed, err = p.headers()
		case StateBody:
			progressed, err = p.body()
		case StateDone:
			// epilogue is ignored
			p.buf.Reset()
			return nil
		default:
			return p.err
		}

		if err != nil || !progressed {
			return err
		}
	}
}

func (p *Parser) preamble() bool {
	dashBoundary := p.delimiter[len(crlf):]
	head, tail := p.buf.Peek(p.buf.Len())

	if i := search.CombinedIndexOf(head, tail, dashBoundary); i != -1 {
		p.buf.Discard(i + len(dashBoundary))
		p.state = StateBoundarySuffix
		return true
	}

	// only the tail might be the beginning of the boundary
	if excess := p.buf.Len() - (len(dashBoundary) - 1); excess > 0 {
		p.buf.Discard(excess)
	}

	return false
}

func (p *Parser) boundarySuffix() (bool, error) {
	if p.buf.Len() == 0 {
		return false, nil
	}

	head, tail := p.buf.Peek(p.buf.Len())
	switch search.At(head, tail, 0) {
	case ' ', '\t':
		// transport padding
		p.buf.Discard(1)
		return true, nil
	case '\r', '-':
	default:
		return false, ErrInvalidBoundarySuffix
	}

	if p.buf.Len() < 2 {
		return false, nil
	}

	switch {
	case search.HasPrefix(head, tail, crlf):
		p.buf.Discard(len(crlf))
		p.state = StateHeaders
	case search.HasPrefix(head, tail, dashes):
		p.buf.Discard(len(dashes))
		p.state = StateDone
	default:
		return false, ErrInvalidBoundarySuffix
	}

	return true, nil
}

func (p *Parser) headers() (bool, error) {
	n := p.buf.Len()
	if n < len(crlf) {
		return false, nil
	}

	head, tail := p.buf.Peek(n)
	if search.HasPrefix(head, tail, crlf) {
		// empty header block
		p.buf.Discard(len(crlf))
		p.startPart(nil)
		return true, nil
	}

	end := search.CombinedIndexOf(head, tail, crlfcrlf)
	limit := p.cfg.MaxHeaderSize

	if end == -1 {
		// the last bytes might be an incomplete terminator
		if limit > 0 && n-(len(crlfcrlf)-1) > limit {
			return false, &MaxHeaderSizeExceededError{MaxHeaderSize: limit}
		}

		return false, nil
	}

	if limit > 0 && end > limit {
		return false, &MaxHeaderSizeExceededError{MaxHeaderSize: limit}
	}

	head, tail = p.buf.Read(end)
	p.scratch = append(append(p.scratch[:0], head...), tail...)
	p.buf.Discard(len(crlfcrlf))

	headers, err := parseHeaders(string(p.scratch))
	if err != nil {
		return false, err
	}

	p.startPart(headers)
	return true, nil
}

func (p *Parser) startPart(headers Headers) {
	p.part = newPart(headers)
	p.parts = append(p.parts, p.part)
	p.emitted = 0
	p.state = StateBody
}

func (p *Parser) body() (bool, error) {
	n := p.buf.Len()
	if n == 0 {
		return false, nil
	}

	head, tail := p.buf.Peek(n)
	if i := search.CombinedIndexOf(head, tail, p.delimiter); i != -1 {
		if err := p.emit(i); err != nil {
			return false, err
		}

		p.buf.Discard(len(p.delimiter))
		p.part.body.close(nil)
		p.part = nil
		p.state = StateBoundarySuffix
		return true, nil
	}

	// everything except the last len(delimiter)-1 bytes is definitely the content, as
	// the delimiter can't start there. The uncertain tail is kept until more data arrives.
	if certain := n - (len(p.delimiter) - 1); certain > 0 {
		return false, p.emit(certain)
	}

	return false, nil
}

func (p *Parser) emit(n int) error {
	if n == 0 {
		return nil
	}

	if p.part.isFile && p.cfg.MaxFileSize > 0 && p.emitted+int64(n) > p.cfg.MaxFileSize {
		return &MaxFileSizeExceededError{MaxFileSize: p.cfg.MaxFileSize}
	}

	p.emitted += int64(n)
	p.part.body.write(p.buf.Read(n))

	return nil
}
