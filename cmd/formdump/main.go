// Command formdump parses multipart/form-data bodies. It either dumps a body from a file
// (parse) or accepts uploads over HTTP (serve).
package main

import (
	"fmt"
	"os"

	"github.com/indigo-web/formdata/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Name = "formdump"
	app.Usage = "streaming multipart/form-data parser"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{"FORMDUMP_DEBUG"},
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			cli.OsExiter(1)
		}
	}
	app.Commands = []*cli.Command{
		parseCommand(),
		serveCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("debug") {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func limitFlags() []cli.Flag {
	defaults := config.Default()

	return []cli.Flag{
		&cli.Int64Flag{
			Name:  "max-file-size",
			Usage: "Maximal size of a single file in bytes, 0 disables the limit",
			Value: defaults.Multipart.MaxFileSize,
		},
		&cli.IntFlag{
			Name:  "max-header-size",
			Usage: "Maximal size of a part's header block in bytes, 0 disables the limit",
			Value: defaults.Multipart.MaxHeaderSize,
		},
		&cli.IntFlag{
			Name:  "max-files",
			Usage: "Maximal number of files in a form, 0 disables the limit",
			Value: defaults.Form.MaxFiles,
		},
		&cli.IntFlag{
			Name:  "max-field-size",
			Usage: "Maximal size of a text field in bytes, 0 disables the limit",
			Value: defaults.Form.MaxFieldSize,
		},
		&cli.IntFlag{
			Name:  "buffer-size",
			Usage: "Maximal size of the parser's buffer in bytes",
			Value: defaults.Multipart.Buffer.Maximal,
		},
		&cli.IntFlag{
			Name:  "read-size",
			Usage: "Size of chunks the body is read by",
			Value: defaults.Multipart.ReadSize,
		},
	}
}

func configFromFlags(c *cli.Context) *config.Config {
	cfg := config.Default()
	cfg.Multipart.MaxFileSize = c.Int64("max-file-size")
	cfg.Multipart.MaxHeaderSize = c.Int("max-header-size")
	cfg.Multipart.Buffer.Maximal = c.Int("buffer-size")
	cfg.Multipart.Buffer.Default = min(cfg.Multipart.Buffer.Default, cfg.Multipart.Buffer.Maximal)
	cfg.Multipart.ReadSize = c.Int("read-size")
	cfg.Form.MaxFiles = c.Int("max-files")
	cfg.Form.MaxFieldSize = c.Int("max-field-size")

	return cfg
}
