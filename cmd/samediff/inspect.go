package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/samediff/internal/serialization"
)

// graphInfo is the JSON form of a loaded graph.
type graphInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Variables []varInfo `json:"variables"`
	Ops       []opInfo  `json:"ops"`
	Losses    []string  `json:"losses,omitempty"`
}

type varInfo struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Type  string `json:"type"`
	Bound bool   `json:"bound"`
}

type opInfo struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func (a *app) inspectCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the variables and ops of a saved graph",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the graph as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("inspect takes exactly one file")
			}
			g, err := serialization.LoadWithOptions(c.Args().First(), serialization.ReaderOptions{Logger: a.log})
			if err != nil {
				return err
			}
			if !asJSON {
				g.WriteSummary(a.stdout)
				return nil
			}

			info := graphInfo{ID: g.ID().String(), Name: g.Name()}
			for _, v := range g.Variables() {
				info.Variables = append(info.Variables, varInfo{
					Name:  v.Name(),
					Role:  v.Role().String(),
					Type:  fmt.Sprintf("%s%s", v.DType(), v.Shape()),
					Bound: v.Value() != nil,
				})
			}
			for _, op := range g.Ops() {
				oi := opInfo{Name: op.Name(), Kind: op.Kind().String()}
				for _, in := range op.Inputs() {
					oi.Inputs = append(oi.Inputs, in.Name())
				}
				for _, out := range op.Outputs() {
					oi.Outputs = append(oi.Outputs, out.Name())
				}
				info.Ops = append(info.Ops, oi)
			}
			for _, l := range g.Losses() {
				info.Losses = append(info.Losses, l.Name())
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(data))
			return err
		},
	}
}
