// Package batch runs many song comparisons concurrently.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/song"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyManifest is returned for a manifest without pairs.
var ErrEmptyManifest = errors.New("manifest has no pairs")

// Pair names an original and a candidate to compare.
type Pair struct {
	Name       string `json:"name,omitempty"`
	Original   string `json:"original"`
	Comparison string `json:"comparison"`
}

// Label returns the pair's name, falling back to the candidate's file name.
func (p Pair) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return filepath.Base(p.Comparison)
}

// Manifest lists the pairs of a batch run. Relative paths resolve against
// the manifest's directory.
type Manifest struct {
	Tolerance float64 `json:"time_tolerance,omitempty"`
	Pairs     []Pair  `json:"pairs"`
}

// LoadManifest reads a JSON manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Pairs) == 0 {
		return nil, ErrEmptyManifest
	}

	base := filepath.Dir(path)
	for i := range m.Pairs {
		p := &m.Pairs[i]
		if p.Original == "" || p.Comparison == "" {
			return nil, fmt.Errorf("manifest pair %d: original and comparison are required", i)
		}
		p.Original = resolve(base, p.Original)
		p.Comparison = resolve(base, p.Comparison)
	}
	return &m, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Outcome is the result of one pair. Exactly one of Result and Error is set.
type Outcome struct {
	Pair   Pair            `json:"pair"`
	Result *compare.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OK reports whether the pair compared successfully.
func (o Outcome) OK() bool {
	return o.Error == ""
}

// Runner compares pairs with a fixed number of workers.
type Runner struct {
	analyzer   *song.Analyzer
	comparator *compare.Comparator
	workers    int
	progress   io.Writer
	log        *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of concurrent comparisons.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithProgress draws a progress bar on w.
func WithProgress(w io.Writer) Option {
	return func(r *Runner) {
		r.progress = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a Runner. The default worker count is one less than the
// number of CPUs, at least 2.
func NewRunner(analyzer *song.Analyzer, comparator *compare.Comparator, opts ...Option) *Runner {
	w := runtime.NumCPU() - 1
	if w < 2 {
		w = 2
	}
	r := &Runner{
		analyzer:   analyzer,
		comparator: comparator,
		workers:    w,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run compares every pair. Per-pair failures are recorded in the outcome and
// do not stop the batch; outcomes are in input order. Only cancellation of
// ctx returns an error.
func (r *Runner) Run(ctx context.Context, pairs []Pair) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(pairs))
	if len(pairs) == 0 {
		return outcomes, nil
	}

	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if r.progress != nil {
		p = mpb.NewWithContext(ctx, mpb.WithOutput(r.progress), mpb.WithWidth(64))
		bar = p.AddBar(int64(len(pairs)),
			mpb.PrependDecorators(
				decor.Name("Comparing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)
	}

	jobs := make(chan int)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range pairs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < r.workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				outcomes[i] = r.compare(pairs[i])
				if bar != nil {
					bar.Increment()
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	r.log.Info("batch finished",
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", failed),
		zap.Int("workers", r.workers))
	return outcomes, nil
}

func (r *Runner) compare(p Pair) Outcome {
	out := Outcome{Pair: p}
	fail := func(err error) Outcome {
		r.log.Warn("comparison failed", zap.String("pair", p.Label()), zap.Error(err))
		out.Error = err.Error()
		return out
	}

	original, err := r.analyzer.Open(p.Original)
	if err != nil {
		return fail(err)
	}
	candidate, err := r.analyzer.Open(p.Comparison)
	if err != nil {
		return fail(err)
	}

	res, err := r.comparator.Compare(
		original.Song(filepath.Base(p.Original)),
		candidate.Song(filepath.Base(p.Comparison)),
	)
	if err != nil {
		return fail(err)
	}
	out.Result = res
	return out
}

// Summary renders one line per outcome: label, score and grade, or the error.
func Summary(outcomes []Outcome) string {
	var b strings.Builder
	width := 0
	for _, o := range outcomes {
		width = max(width, len(o.Pair.Label()))
	}
	for _, o := range outcomes {
		if o.OK() {
			fmt.Fprintf(&b, "%-*s  %6.2f  %s\n", width, o.Pair.Label(), o.Result.OverallScore.Overall, o.Result.OverallScore.GradeLabel)
		} else {
			fmt.Fprintf(&b, "%-*s  error: %s\n", width, o.Pair.Label(), o.Error)
		}
	}
	return b.String()
}
