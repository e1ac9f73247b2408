// Package s3 stores files in an S3-compatible bucket. Uploads are streamed with unknown
// size, so nothing is buffered except a single multipart chunk.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/indigo-web/formdata/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Without it, minio-go allocates 500 MiB buffer for uploads of unknown size.
const partSize = 1 * 1024 * 1024

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// Prefix is prepended to every key.
	Prefix string
	Secure bool
	// Breaker controls when uploads are stopped from reaching a failing backend.
	Breaker BreakerConfig
}

type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func DefaultBreaker() BreakerConfig {
	return BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

type Store struct {
	cl      *minio.Client
	bucket  string
	prefix  string
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker[minio.UploadInfo]
}

var _ storage.Storage = new(Store)

func New(cfg Config, log *zap.Logger) (*Store, error) {
	if len(cfg.Endpoint) == 0 {
		return nil, errors.New("s3: endpoint not set")
	}

	if len(cfg.Bucket) == 0 {
		return nil, errors.New("s3: bucket not set")
	}

	if log == nil {
		log = zap.NewNop()
	}

	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}

	return &Store{
		cl:      cl,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		log:     log,
		breaker: newBreaker(cfg.Bucket, cfg.Breaker, log),
	}, nil
}

func newBreaker(name string, cfg BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker[minio.UploadInfo] {
	return gobreaker.NewCircuitBreaker[minio.UploadInfo](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("s3 circuit breaker state changed",
				zap.String("bucket", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta storage.Meta) (storage.Object, error) {
	digest := storage.NewDigest()
	src := &trackingReader{r: digest.Tee(r)}
	opts := minio.PutObjectOptions{
		PartSize:    partSize,
		ContentType: meta.MediaType,
	}
	if len(meta.Filename) > 0 {
		opts.UserMetadata = map[string]string{"filename": meta.Filename}
	}

	_, err := s.breaker.Execute(func() (minio.UploadInfo, error) {
		info, err := s.cl.PutObject(ctx, s.bucket, s.prefix+key, src, -1, opts)
		if err != nil && src.err != nil {
			// the upload failed because of the client, the backend is fine
			return info, nil
		}

		return info, err
	})

	switch {
	case src.err != nil:
		return storage.Object{}, fmt.Errorf("s3: put %s: %w", key, src.err)
	case err != nil:
		s.log.Error("failed to put object", zap.String("key", s.prefix+key), zap.Error(err))
		return storage.Object{}, fmt.Errorf("s3: put %s: %w", key, err)
	}

	return digest.Object(key, meta), nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.cl.GetObject(ctx, s.bucket, s.prefix+key, minio.GetObjectOptions{})
	if err == nil {
		// GetObject is lazy, errors appear only once the object is touched
		_, err = obj.Stat()
	}

	if err != nil {
		if obj != nil {
			_ = obj.Close()
		}

		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("s3: %w", err)
	}

	return obj, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	var lastErr error

	for _, key := range keys {
		err := s.cl.RemoveObject(ctx, s.bucket, s.prefix+key, minio.RemoveObjectOptions{})
		if err != nil {
			s.log.Error("failed to delete object", zap.String("key", s.prefix+key), zap.Error(err))
			lastErr = err
		}
	}

	return lastErr
}

// trackingReader remembers the error of the underlying reader, so it can be told apart
// from backend errors.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (n int, err error) {
	n, err = t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}

	return n, err
}
