package multipart

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/indigo-web/formdata/config"
	"go.uber.org/zap"
)

/*
Reader drives a Parser with chunks pulled from a Retriever, exposing the parts as a
sequence the consumer pulls from.

The idea is:
  - a background goroutine reads a chunk from the source every time it's asked to via
    the single-slot demand channel, pushes it into the parser and appends the produced
    parts to a FIFO queue. Then it signals the single-slot wake channel
  - the consumer pops parts from the queue. If it's empty, it asks for a chunk and
    waits for the wake signal. The same happens when the consumer drains a part body,
    which has no pending data yet
  - once the source is exhausted (or failed), the goroutine marks the reader as done and
    signals for the last time

So reading never races ahead of the consumer, but the consumer in turn never waits for
something nobody is going to read, regardless of whether it's paused in the middle of
a body or waits for the next part. Only one of them is doing the work at any moment.
*/
type Reader struct {
	parser *Parser
	src    Retriever
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	demand chan struct{}
	wake   chan struct{}

	mu    sync.Mutex
	queue []*Part
	// open is the last part produced by the parser, its body might still be in progress.
	open *Part
	done bool
	err  error

	// prev is the part returned last time. Accessed by the consumer only.
	prev *Part
}

type Option func(*Reader)

func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		r.log = log
	}
}

// NewReader starts reading the source in the background. Cancelling the context stops
// the reading and terminates the sequence with the context's error.
//
// The background goroutine lives until the source is exhausted, the context is done or
// Close is called. A reader dropped in the middle of the stream is never collected, so
// Close must always be called, preferably deferred right after NewReader.
func NewReader(ctx context.Context, src Retriever, boundary string, cfg config.Multipart, opts ...Option) *Reader {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reader{
		parser: NewParser(boundary, cfg),
		src:    src,
		log:    zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
		demand: make(chan struct{}, 1),
		wake:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(r)
	}

	context.AfterFunc(ctx, func() {
		r.finish(ctx.Err())
	})
	go r.run()

	return r
}

// NextPart returns the next part. The previous part's body is discarded if it wasn't fully
// read: a stream of it returns ErrBodyDiscarded once the already received bytes run out.
// When no more parts are left, io.EOF is returned. If the input ended before the
// closing delimiter, ErrUnexpectedEOF is returned instead.
func (r *Reader) NextPart() (*Part, error) {
	if r.prev != nil {
		r.prev.body.discard()
		r.prev = nil
	}

	for {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}

		r.mu.Lock()
		if len(r.queue) > 0 {
			part := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			r.mu.Unlock()

			r.prev = part
			return part, nil
		}

		done, err := r.done, r.err
		r.mu.Unlock()

		if done {
			if err != nil {
				return nil, err
			}

			return nil, io.EOF
		}

		r.request()
		<-r.wake
	}
}

// Parts returns an iterator over the remaining parts. An error, if any, is yielded as the
// last element.
func (r *Reader) Parts() iter.Seq2[*Part, error] {
	return func(yield func(*Part, error) bool) {
		for {
			part, err := r.NextPart()
			switch err {
			case nil:
			case io.EOF:
				return
			default:
				yield(nil, err)
				return
			}

			if !yield(part, nil) {
				return
			}
		}
	}
}

// Done tells whether the closing delimiter was reached. Meaningful only after NextPart
// returned io.EOF.
func (r *Reader) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done && r.err == nil
}

// Close stops the reading. Parts, which bodies weren't completely received, are terminated
// with context.Canceled.
func (r *Reader) Close() error {
	r.cancel()
	return nil
}

func (r *Reader) run() {
	for {
		select {
		case <-r.demand:
		case <-r.ctx.Done():
			return
		}

		if r.ctx.Err() != nil {
			// both were ready, cancellation wins
			return
		}

		data, err := r.src.Retrieve()
		if r.ctx.Err() != nil {
			return
		}

		if len(data) > 0 {
			parts, perr := r.parser.Push(data)
			r.enqueue(parts)

			if perr != nil {
				r.finish(perr)
				return
			}
		}

		if r.parser.Done() {
			r.finish(nil)
			return
		}

		switch err {
		case nil:
		case io.EOF:
			r.finish(r.parser.Finish())
			return
		default:
			r.finish(err)
			return
		}

		r.signal()
	}
}

func (r *Reader) enqueue(parts []*Part) {
	if len(parts) == 0 {
		return
	}

	for _, part := range parts {
		part.body.mu.Lock()
		part.body.feed = r.feed
		part.body.mu.Unlock()
	}

	r.mu.Lock()
	r.queue = append(r.queue, parts...)
	r.open = parts[len(parts)-1]
	r.mu.Unlock()
}

func (r *Reader) finish(err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}

	r.done, r.err = true, err
	open := r.open
	r.mu.Unlock()

	if err != nil {
		if open != nil {
			open.body.close(err)
		}

		r.log.Debug("multipart stream terminated", zap.Error(err))
	}

	r.signal()
}

// feed is called by part bodies waiting for more data.
func (r *Reader) feed() bool {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done {
		return false
	}

	r.request()
	<-r.wake

	return true
}

func (r *Reader) request() {
	select {
	case r.demand <- struct{}{}:
	default:
	}
}

func (r *Reader) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
