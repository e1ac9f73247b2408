package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigo-web/formdata/config"
	"github.com/indigo-web/formdata/form"
	"github.com/indigo-web/formdata/storage"
	"github.com/indigo-web/formdata/storage/disk"
	"github.com/indigo-web/formdata/storage/s3"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Accept uploads over HTTP",
		Description: `POST /upload parses the body and stores the files, replying with the form as JSON.
GET /files/{key} returns a stored file. Files are stored in --dir unless --s3-bucket
is set.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to listen on",
				Value:   "localhost:8080",
				EnvVars: []string{"FORMDUMP_ADDR"},
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory to store files in",
				Value: "uploads",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Maximal duration of a single upload",
				Value: 5 * time.Minute,
			},
			&cli.StringFlag{Name: "s3-endpoint", EnvVars: []string{"FORMDUMP_S3_ENDPOINT"}},
			&cli.StringFlag{Name: "s3-bucket", EnvVars: []string{"FORMDUMP_S3_BUCKET"}},
			&cli.StringFlag{Name: "s3-region", EnvVars: []string{"FORMDUMP_S3_REGION"}},
			&cli.StringFlag{Name: "s3-prefix", EnvVars: []string{"FORMDUMP_S3_PREFIX"}},
			&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"FORMDUMP_S3_ACCESS_KEY"}},
			&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"FORMDUMP_S3_SECRET_KEY"}},
			&cli.BoolFlag{Name: "s3-secure", Value: true},
		}, limitFlags()...),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := storageFromFlags(c, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    c.String("addr"),
		Handler: newServer(configFromFlags(c), store, c.Duration("timeout"), log),
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", srv.Addr))
	if err = srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func storageFromFlags(c *cli.Context, log *zap.Logger) (storage.Storage, error) {
	if len(c.String("s3-bucket")) == 0 {
		return disk.New(c.String("dir"), log.Named("disk"))
	}

	return s3.New(s3.Config{
		Endpoint:  c.String("s3-endpoint"),
		AccessKey: c.String("s3-access-key"),
		SecretKey: c.String("s3-secret-key"),
		Bucket:    c.String("s3-bucket"),
		Region:    c.String("s3-region"),
		Prefix:    c.String("s3-prefix"),
		Secure:    c.Bool("s3-secure"),
		Breaker:   s3.DefaultBreaker(),
	}, log.Named("s3"))
}

type server struct {
	cfg     *config.Config
	store   storage.Storage
	parser  *form.Parser
	timeout time.Duration
	log     *zap.Logger
}

func newServer(cfg *config.Config, store storage.Storage, timeout time.Duration, log *zap.Logger) http.Handler {
	s := &server{
		cfg:     cfg,
		store:   store,
		parser:  form.NewParser(cfg, form.StoreHandler(store, log), form.WithLogger(log)),
		timeout: timeout,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.upload)
	mux.HandleFunc("GET /files/{key}", s.download)

	return mux
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.parser.Parse(ctx, form.FromHTTP(r, s.cfg.Multipart.ReadSize))
	if err != nil {
		// the request is broken, so are the files it brought
		if cerr := form.Cleanup(context.Background(), s.store, result); cerr != nil {
			s.log.Error("failed to clean up stored files", zap.Error(cerr))
		}

		status := statusOf(err)
		s.log.Info("rejected upload", zap.Int("status", status.Code), zap.Error(err))
		writeJSON(w, status.Code, map[string]string{"error": status.Message})
		return
	}

	data, err := result.JSON()
	if err != nil {
		http.Error(w, ErrInternalServerError.Message, ErrInternalServerError.Code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(data)
}

func (s *server) download(w http.ResponseWriter, r *http.Request) {
	rc, err := s.store.Open(r.Context(), r.PathValue("key"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		s.log.Error("failed to open file", zap.Error(err))
		http.Error(w, ErrInternalServerError.Message, ErrInternalServerError.Code)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = io.Copy(w, rc); err != nil {
		s.log.Debug("failed to send file", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		http.Error(w, ErrInternalServerError.Message, ErrInternalServerError.Code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
