// Package main provides the samediff CLI: run the built-in op validation
// suite, list op kinds, and export or inspect saved graphs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/samediff/internal/config"
	"github.com/born-ml/samediff/internal/logger"
)

const version = "v0.1.0-dev"

// errChecksFailed is returned when at least one case failed; main turns it
// into exit status 1 without extra output.
var errChecksFailed = errors.New("one or more checks failed")

// app carries the output streams and the loaded configuration.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	cfg        config.Config
	log        logger.Logger
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.command().Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errChecksFailed) {
			_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "samediff",
		Usage:   "Graph autodiff engine and op gradient checker",
		Version: version,
		Writer:  a.stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml (default $" + config.EnvConfig + " or the user config dir)",
				Destination: &a.configPath,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			path := a.configPath
			if path == "" {
				path = config.Path()
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return ctx, err
			}
			a.cfg = cfg
			a.log = cfg.Logger(a.stderr)
			return logger.WithContext(ctx, a.log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			a.checkCmd(),
			a.opsCmd(),
			a.exportCmd(),
			a.inspectCmd(),
			a.versionCmd(),
		},
	}
}

func (a *app) versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(a.stdout, "samediff %s\n", version)
			return err
		},
	}
}
