package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/suite"
)

func (a *app) opsCmd() *cli.Command {
	var internal bool
	return &cli.Command{
		Name:  "ops",
		Usage: "List registered op kinds",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "include backprop helper kinds", Destination: &internal},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			covered := make(map[ops.Kind][]string)
			for _, cs := range suite.Cases() {
				covered[cs.Kind] = append(covered[cs.Kind], cs.Name)
			}

			var rows [][]string
			for _, k := range ops.Kinds() {
				if suite.Internal(k) && !internal {
					continue
				}
				def, err := ops.Lookup(k)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					k.String(),
					arity(def),
					strconv.FormatBool(def.Differentiable),
					strings.Join(covered[k], ","),
				})
			}
			renderTable(a.stdout, []string{"NAME", "INPUTS", "DIFFERENTIABLE", "CASES"}, rows)
			return nil
		},
	}
}

func arity(d *ops.Def) string {
	switch {
	case d.MaxInputs == ops.Variadic:
		return strconv.Itoa(d.MinInputs) + "+"
	case d.MinInputs == d.MaxInputs:
		return strconv.Itoa(d.MinInputs)
	default:
		return strconv.Itoa(d.MinInputs) + "-" + strconv.Itoa(d.MaxInputs)
	}
}
