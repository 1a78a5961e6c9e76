package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/samediff/internal/serialization"
	"github.com/born-ml/samediff/internal/suite"
	"github.com/born-ml/samediff/internal/tensor"
)

func (a *app) exportCmd() *cli.Command {
	var (
		output     string
		seed       int64
		skipValues bool
	)
	return &cli.Command{
		Name:      "export",
		Usage:     "Save the graph of a suite case as " + serialization.FileExtension,
		ArgsUsage: "<case>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "destination file", Destination: &output},
			&cli.Int64Flag{Name: "seed", Usage: "seed for random case inputs", Value: 1, Destination: &seed},
			&cli.BoolFlag{Name: "skip-values", Usage: "omit variable and constant values", Destination: &skipValues},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("export takes exactly one case name")
			}
			name := c.Args().First()
			var found *suite.Case
			for _, cs := range suite.Cases() {
				if cs.Name == name {
					found = &cs
					break
				}
			}
			if found == nil {
				return fmt.Errorf("unknown case %q", name)
			}

			tc, err := found.Build(tensor.NewSource(suite.CaseSeed(uint64(seed), name))) //nolint:gosec // seeds are bit patterns
			if err != nil {
				return fmt.Errorf("build %s: %w", name, err)
			}
			if output == "" {
				output = strings.ReplaceAll(name, "/", "_") + serialization.FileExtension
			}
			if err := serialization.SaveWithOptions(output, tc.Graph(), serialization.WriterOptions{SkipValues: skipValues}); err != nil {
				return err
			}
			a.log.Info("graph exported", "case", name, "path", output, "skip_values", skipValues)
			_, err = fmt.Fprintln(a.stdout, output)
			return err
		},
	}
}
