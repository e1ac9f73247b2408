package main

import (
	"context"
	"io"
	"os"

	"github.com/indigo-web/formdata/form"
	"github.com/indigo-web/formdata/multipart"
	"github.com/indigo-web/formdata/storage"
	"github.com/urfave/cli/v2"
)

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a body and print the form as JSON",
		ArgsUsage: "[FILE]",
		Description: `Reads the body from FILE, or from stdin if FILE is - or omitted. Files are not
printed, only their sizes and checksums are.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "content-type",
				Usage: "Content-Type of the body",
			},
			&cli.StringFlag{
				Name:  "boundary",
				Usage: "Multipart boundary, a shorthand for --content-type 'multipart/form-data; boundary=...'",
			},
			&cli.BoolFlag{
				Name:  "chunked",
				Usage: "The body is encoded with Transfer-Encoding: chunked",
			},
		}, limitFlags()...),
		Action: parseAction,
	}
}

func parseAction(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	contentType := c.String("content-type")
	if boundary := c.String("boundary"); len(boundary) > 0 {
		contentType = "multipart/form-data; boundary=" + boundary
	}

	if len(contentType) == 0 {
		return cli.Exit("either --content-type or --boundary must be set", 2)
	}

	src := io.Reader(os.Stdin)
	if path := c.Args().First(); len(path) > 0 && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		src = f
	}

	cfg := configFromFlags(c)
	body := multipart.FromReader(src, cfg.Multipart.ReadSize)
	if c.Bool("chunked") {
		body = multipart.Chunked(src, cfg.Multipart.ReadSize)
	}

	parser := form.NewParser(cfg, digestHandler, form.WithLogger(log))
	result, err := parser.Parse(c.Context, form.NewRequest(contentType, body))
	if err != nil {
		return err
	}

	data, err := result.JSON()
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// digestHandler consumes the file, keeping only its size and checksum.
func digestHandler(_ context.Context, file *form.FileUpload) (any, error) {
	digest := storage.NewDigest()
	if _, err := io.Copy(digest, file); err != nil {
		return nil, err
	}

	return digest.Object("", storage.Meta{
		Filename:  file.Filename,
		MediaType: file.MediaType,
	}), nil
}
