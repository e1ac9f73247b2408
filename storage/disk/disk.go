// Package disk stores files in a local directory. Objects are spread across two levels of
// subdirectories derived from the key hash, so no single directory grows too big.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/indigo-web/formdata/storage"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

var ErrInvalidKey = errors.New("disk: invalid key")

type Store struct {
	root string
	log  *zap.Logger
}

var _ storage.Storage = new(Store)

// New creates the root directory if it doesn't exist yet.
func New(root string, log *zap.Logger) (*Store, error) {
	if len(root) == 0 {
		return nil, errors.New("disk: root directory not set")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Store{root: root, log: log}, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta storage.Meta) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}

	path, err := s.path(key)
	if err != nil {
		return storage.Object{}, err
	}

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return storage.Object{}, fmt.Errorf("disk: %w", err)
	}

	// the object appears under its name only once completely written
	tmp, err := os.CreateTemp(dir, "."+key+".*")
	if err != nil {
		return storage.Object{}, fmt.Errorf("disk: %w", err)
	}

	digest := storage.NewDigest()
	if _, err = io.Copy(tmp, digest.Tee(r)); err == nil {
		err = tmp.Sync()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}

	if err != nil {
		if rerr := os.Remove(tmp.Name()); rerr != nil && !os.IsNotExist(rerr) {
			s.log.Warn("failed to remove temporary file", zap.String("path", tmp.Name()), zap.Error(rerr))
		}

		return storage.Object{}, fmt.Errorf("disk: put %s: %w", key, err)
	}

	s.log.Debug("stored object", zap.String("key", key), zap.Int64("size", digest.Size()))

	return digest.Object(key, meta), nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("disk: %w", err)
	}

	return f, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			return err
		}

		if err = os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return fmt.Errorf("disk: %w", err)
		}

		s.log.Debug("deleted object", zap.String("key", key))
	}

	return nil
}

// path returns root/xx/yy/key, where xx and yy are the lowest bytes of the key hash.
func (s *Store) path(key string) (string, error) {
	if len(key) == 0 || key[0] == '.' || strings.ContainsAny(key, `/\`) {
		return "", ErrInvalidKey
	}

	h := xxh3.HashString(key)

	return filepath.Join(
		s.root,
		fmt.Sprintf("%02x", byte(h)),
		fmt.Sprintf("%02x", byte(h>>8)),
		key,
	), nil
}
