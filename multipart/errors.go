package multipart

import (
	"errors"
	"fmt"
)

// ErrParse is the class every malformed-body error belongs to, including the quota errors.
// Use errors.Is(err, ErrParse) to tell a bad request from I/O or usage errors.
var ErrParse = errors.New("multipart: malformed body")

type ParseError struct {
	Message string
}

func (p *ParseError) Error() string {
	return "multipart: " + p.Message
}

func (p *ParseError) Is(target error) bool {
	return target == ErrParse
}

var (
	ErrNotMultipart          = &ParseError{"content type is not multipart"}
	ErrNoBoundary            = &ParseError{"missing boundary parameter"}
	ErrBoundaryTooLong       = &ParseError{"boundary is longer than 70 characters"}
	ErrUnexpectedEOF         = &ParseError{"unexpected end of stream"}
	ErrInvalidHeader         = &ParseError{"invalid header block"}
	ErrInvalidBoundarySuffix = &ParseError{"boundary is followed by neither CRLF nor --"}
	ErrBufferOverflow        = &ParseError{"buffer capacity exceeded"}
)

// ErrBodyUsed is returned when a part's body is being consumed for the second time. It isn't
// a parse error, but a misuse of the API.
var ErrBodyUsed = errors.New("multipart: part body has already been consumed")

// ErrBodyDiscarded is returned by a body stream, which was still being read when the next
// part was requested. The rest of the body is lost.
var ErrBodyDiscarded = errors.New("multipart: part body was discarded before read to the end")

type MaxHeaderSizeExceededError struct {
	MaxHeaderSize int
}

func (m *MaxHeaderSizeExceededError) Error() string {
	return fmt.Sprintf("multipart: header block exceeds %d bytes", m.MaxHeaderSize)
}

func (m *MaxHeaderSizeExceededError) Is(target error) bool {
	return target == ErrParse
}

type MaxFileSizeExceededError struct {
	MaxFileSize int64
}

func (m *MaxFileSizeExceededError) Error() string {
	return fmt.Sprintf("multipart: file exceeds %d bytes", m.MaxFileSize)
}

func (m *MaxFileSizeExceededError) Is(target error) bool {
	return target == ErrParse
}
