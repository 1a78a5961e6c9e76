package suite

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// Options configures Run.
type Options struct {
	// Parallelism bounds concurrently running cases; <= 0 uses GOMAXPROCS.
	Parallelism int
	// Seed is mixed with each case name, so a case draws the same inputs
	// whatever else runs with it.
	Seed uint64
	// Config holds the numeric settings; zero fields take the defaults.
	Config gradcheck.Config
	Logger logger.Logger
}

// Result is the outcome of one case.
type Result struct {
	Case     string
	Kind     ops.Kind
	Passed   bool
	Report   *gradcheck.Report // nil when passed or when the case errored
	Err      error             // the case could not be built or run
	Skipped  bool              // ctx was done before the case started; Err holds the cause
	Duration time.Duration
}

// Failed reports whether the case failed a check or errored.
func (r Result) Failed() bool { return !r.Passed }

// Run executes cases concurrently and returns one result per case in input
// order. Case failures are reported in results; the error is non-nil only
// when ctx is done before every case ran.
func Run(ctx context.Context, cases []Case, opts Options) ([]Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(cases))
	for i, c := range cases {
		results[i] = Result{Case: c.Name, Kind: c.Kind, Skipped: true}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			results[i] = runCase(c, opts, log)
			return nil
		})
	}
	err := g.Wait()

	ran, passed := 0, 0
	for _, r := range results {
		if r.Skipped {
			continue
		}
		ran++
		if r.Passed {
			passed++
		}
	}
	log.Info("suite finished", "cases", ran, "skipped", len(cases)-ran, "passed", passed, "failed", ran-passed)
	return results, err
}

func runCase(c Case, opts Options, log logger.Logger) (res Result) {
	start := time.Now()
	res = Result{Case: c.Name, Kind: c.Kind}
	log = log.With("case", c.Name)
	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.Err = fmt.Errorf("case %s panicked: %v", c.Name, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Warn("case errored", "error", res.Err)
		}
	}()

	tc, err := c.Build(tensor.NewSource(CaseSeed(opts.Seed, c.Name)))
	if err != nil {
		res.Err = fmt.Errorf("build %s: %w", c.Name, err)
		return res
	}
	cfg := opts.Config.WithDefaults()
	if c.Adjust != nil {
		cfg = c.Adjust(cfg)
	}
	cfg.Logger = log
	report, err := tc.Config(cfg).Run()
	if err != nil {
		res.Err = err
		return res
	}
	res.Report = report
	res.Passed = report == nil
	return res
}

// CaseSeed derives the input seed of the named case from the run seed, so a
// case sees the same inputs whatever else runs with it.
func CaseSeed(seed uint64, name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ h.Sum64()
}
