package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/suite"
)

// caseResult is the JSON form of a suite result.
type caseResult struct {
	Case       string  `json:"case"`
	Kind       string  `json:"kind"`
	Passed     bool    `json:"passed"`
	Error      string  `json:"error,omitempty"`
	Report     string  `json:"report,omitempty"`
	Checked    int     `json:"gradient_elements,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

func (a *app) checkCmd() *cli.Command {
	var (
		seed        int64
		parallelism int
		asJSON      bool
		listOnly    bool
		epsilon     float64
		maxRelError float64
		minAbsError float64
	)

	return &cli.Command{
		Name:      "check",
		Usage:     "Run the built-in op validation suite",
		ArgsUsage: "[case or kind or glob ...]",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "seed", Usage: "seed for random case inputs", Value: 1, Destination: &seed},
			&cli.IntFlag{Name: "parallel", Aliases: []string{"p"}, Usage: "cases run concurrently (0 = GOMAXPROCS)", Destination: &parallelism},
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "list", Usage: "list matching cases without running them", Destination: &listOnly},
			&cli.Float64Flag{Name: "epsilon", Usage: "finite-difference step", Destination: &epsilon},
			&cli.Float64Flag{Name: "max-rel-error", Usage: "maximum relative gradient error", Destination: &maxRelError},
			&cli.Float64Flag{Name: "min-abs-error", Usage: "absolute error floor", Destination: &minAbsError},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cases := suite.Filter(suite.Cases(), c.Args().Slice()...)
			if len(cases) == 0 {
				return fmt.Errorf("no cases match %v", c.Args().Slice())
			}
			if listOnly {
				rows := make([][]string, len(cases))
				for i, cs := range cases {
					rows[i] = []string{cs.Name, cs.Kind.String()}
				}
				renderTable(a.stdout, []string{"CASE", "KIND"}, rows)
				return nil
			}
			if _, err := samediff.ResolveBackend(a.cfg.Device); err != nil {
				return err
			}

			opts := suite.Options{
				Parallelism: parallelism,
				Seed:        uint64(seed), //nolint:gosec // seeds are bit patterns
				Config:      a.cfg.GradCheck(),
				Logger:      a.log,
			}
			if !c.IsSet("parallel") && a.cfg.Parallelism != nil {
				opts.Parallelism = *a.cfg.Parallelism
			}
			if !c.IsSet("seed") && a.cfg.Seed != nil {
				opts.Seed = *a.cfg.Seed
			}
			if c.IsSet("epsilon") {
				opts.Config.Epsilon = epsilon
			}
			if c.IsSet("max-rel-error") {
				opts.Config.MaxRelError = maxRelError
			}
			if c.IsSet("min-abs-error") {
				opts.Config.MinAbsError = minAbsError
			}

			results, err := suite.Run(ctx, cases, opts)
			if err != nil {
				return err
			}
			if asJSON {
				err = a.printResultsJSON(results)
			} else {
				a.printResults(results)
			}
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Failed() {
					return errChecksFailed
				}
			}
			return nil
		},
	}
}

func (a *app) printResults(results []suite.Result) {
	rows := make([][]string, len(results))
	failed := 0
	for i, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "ERROR"
			failed++
		case !r.Passed:
			status = "FAIL"
			failed++
		}
		rows[i] = []string{r.Case, r.Kind.String(), status, r.Duration.Round(time.Microsecond).String()}
	}
	renderTable(a.stdout, []string{"CASE", "KIND", "RESULT", "TIME"}, rows)

	for _, r := range results {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(a.stdout, "\n%s: %v\n", r.Case, r.Err)
		case r.Report != nil:
			_, _ = fmt.Fprintf(a.stdout, "\n%s\n", r.Report)
		}
	}
	_, _ = fmt.Fprintf(a.stdout, "\n%d of %d case(s) passed\n", len(results)-failed, len(results))
}

func (a *app) printResultsJSON(results []suite.Result) error {
	out := make([]caseResult, len(results))
	for i, r := range results {
		out[i] = caseResult{
			Case:       r.Case,
			Kind:       r.Kind.String(),
			Passed:     r.Passed,
			DurationMS: float64(r.Duration.Microseconds()) / 1000,
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
		if r.Report != nil {
			out[i].Report = r.Report.String()
			out[i].Checked = r.Report.ElementsChecked
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}
