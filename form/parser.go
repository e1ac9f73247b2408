package form

import (
	"context"
	"errors"
	"io"

	"github.com/indigo-web/formdata/config"
	"github.com/indigo-web/formdata/internal/urlencoded"
	"github.com/indigo-web/formdata/mime"
	"github.com/indigo-web/formdata/multipart"
	"github.com/indigo-web/utils/uf"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const charsetField = "_charset_"

// Parser assembles forms out of request bodies. It's stateless, so a single instance can
// serve many requests concurrently.
type Parser struct {
	cfg     *config.Config
	handler UploadHandler
	log     *zap.Logger
}

type Option func(*Parser)

func WithLogger(log *zap.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// NewParser returns a new parser. If no handler is passed, MemoryHandler is used.
func NewParser(cfg *config.Config, handler UploadHandler, opts ...Option) *Parser {
	if cfg == nil {
		cfg = config.Default()
	}

	if handler == nil {
		handler = MemoryHandler
	}

	p := &Parser{
		cfg:     cfg,
		handler: handler,
		log:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse reads the whole body and assembles the form. Both multipart/form-data and
// application/x-www-form-urlencoded bodies are supported.
//
// Errors of the multipart family (multipart.ErrParse) and context errors are returned
// as is, everything else is wrapped into FormDataParseError. Entries assembled before the
// failure are returned along with the error, so the caller is able to release the files
// they refer to.
func (p *Parser) Parse(ctx context.Context, req Request) (Form, error) {
	contentType := req.ContentType()

	switch {
	case mime.IsMultipart(contentType):
		return p.parseMultipart(ctx, req, contentType)
	case len(contentType) > 0 && mime.Complies(mime.FormUrlencoded, contentType):
		return p.parseURLEncoded(ctx, req)
	default:
		return nil, &FormDataParseError{Err: ErrUnsupportedMediaType}
	}
}

func (p *Parser) parseMultipart(ctx context.Context, req Request, contentType string) (Form, error) {
	boundary, err := multipart.Boundary(contentType)
	if err != nil {
		return nil, err
	}

	reader := multipart.NewReader(ctx, req, boundary, p.cfg.Multipart, multipart.WithLogger(p.log))
	defer reader.Close()

	var (
		form    = make(Form, 0, p.cfg.Form.EntriesPrealloc)
		charset = p.cfg.Form.DefaultCoding
		files   int
	)

	for part, err := range reader.Parts() {
		if err != nil {
			return form, p.wrap(err)
		}

		if len(part.Name) == 0 {
			return form, &FormDataParseError{Err: multipart.ErrInvalidHeader}
		}

		mediaType := part.MediaType

		if part.IsFile() {
			if len(mediaType) == 0 {
				mediaType = mime.OctetStream
			}

			if limit := p.cfg.Form.MaxFiles; limit > 0 && files >= limit {
				return form, &MaxFilesExceededError{MaxFiles: limit}
			}

			files++
			// browsers on some systems send decomposed forms
			filename := norm.NFC.String(part.Filename)
			value, err := p.handler(ctx, newFileUpload(part, filename, mediaType))
			if err != nil {
				return form, p.wrap(err)
			}

			if value == nil {
				p.log.Debug("file omitted by the upload handler", zap.String("field", part.Name))
				continue
			}

			form = append(form, Data{
				Name:     part.Name,
				Filename: filename,
				Type:     mediaType,
				Charset:  part.Charset,
				File:     value,
			})
			continue
		}

		if len(mediaType) == 0 {
			mediaType = p.cfg.Form.DefaultContentType
		}

		text, err := p.readField(part)
		if err != nil {
			return form, p.wrap(err)
		}

		if part.Name == charsetField {
			if len(text) == 0 {
				return form, &FormDataParseError{Err: ErrEmptyCharset}
			}

			charset = text
			continue
		}

		partCharset := part.Charset
		if len(partCharset) == 0 {
			partCharset = charset
		}

		form = append(form, Data{
			Name:    part.Name,
			Type:    mediaType,
			Charset: partCharset,
			Value:   decodeText(text, partCharset),
		})
	}

	return form, nil
}

// readField collects the text part, bounded by cfg.Form.MaxFieldSize.
func (p *Parser) readField(part *multipart.Part) (string, error) {
	limit := p.cfg.Form.MaxFieldSize
	if limit <= 0 {
		return part.Text()
	}

	stream, err := part.Stream()
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(stream, int64(limit)+1))
	if err != nil {
		return "", err
	}

	if len(data) > limit {
		return "", &MaxFieldSizeExceededError{MaxFieldSize: limit}
	}

	return uf.B2S(data), nil
}

func (p *Parser) parseURLEncoded(ctx context.Context, req Request) (Form, error) {
	var (
		body  []byte
		limit = p.cfg.Form.MaxURLEncodedSize
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := req.Retrieve()
		body = append(body, chunk...)
		if limit > 0 && len(body) > limit {
			return nil, &FormDataParseError{Err: ErrBodyTooLarge}
		}

		if err == io.EOF {
			break
		} else if err != nil {
			return nil, &FormDataParseError{Err: err}
		}
	}

	form := make(Form, 0, p.cfg.Form.EntriesPrealloc)
	err := urlencoded.Parse(uf.B2S(body), func(key, value string) {
		form = append(form, Data{
			Name:    key,
			Type:    p.cfg.Form.DefaultContentType,
			Charset: p.cfg.Form.DefaultCoding,
			Value:   value,
		})
	}, "")
	if err != nil {
		return nil, &FormDataParseError{Err: err}
	}

	return form, nil
}

func (p *Parser) wrap(err error) error {
	p.log.Debug("form parsing failed", zap.Error(err))

	switch {
	case errors.Is(err, multipart.ErrParse),
		errors.Is(err, ErrFormData),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &FormDataParseError{Err: err}
	}
}
