// Package storage defines where uploaded files end up. The form parser streams file parts
// into a Storage as they arrive, so big uploads are never held in memory.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"hash"
	"io"

	"github.com/dchest/uniuri"
	"golang.org/x/crypto/blake2b"
)

var ErrNotFound = errors.New("storage: no such object")

// Meta describes the object being stored.
type Meta struct {
	Filename  string
	MediaType string
}

// Object is a stored file.
type Object struct {
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	Sum       string `json:"blake2b"`
	MediaType string `json:"type,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

type Storage interface {
	// Put consumes the reader until io.EOF and stores everything under the key. If the
	// reader fails, the partially written object is discarded and the error is returned.
	Put(ctx context.Context, key string, r io.Reader, meta Meta) (Object, error)
	// Open returns the object contents. If no such object exists, ErrNotFound is returned.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a set of objects. Non-existent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

const keyLen = 24

// NewKey returns a random key suitable for any backend.
func NewKey() string {
	return uniuri.NewLen(keyLen)
}

// Digest counts and hashes everything written into it.
type Digest struct {
	hash hash.Hash
	size int64
}

func NewDigest() *Digest {
	// can't fail without a key
	h, _ := blake2b.New256(nil)
	return &Digest{hash: h}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.size += int64(len(p))
	return d.hash.Write(p)
}

// Tee returns a reader which passes everything read from r through the digest.
func (d *Digest) Tee(r io.Reader) io.Reader {
	return io.TeeReader(r, d)
}

func (d *Digest) Size() int64 {
	return d.size
}

// Sum returns the hex-encoded BLAKE2b-256 checksum.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.hash.Sum(nil))
}

// Object fills in the object description from the digest.
func (d *Digest) Object(key string, meta Meta) Object {
	return Object{
		Key:       key,
		Size:      d.Size(),
		Sum:       d.Sum(),
		MediaType: meta.MediaType,
		Filename:  meta.Filename,
	}
}
