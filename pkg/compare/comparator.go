package compare

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// DefaultTimeTolerance is the default matching window in seconds.
const DefaultTimeTolerance = 0.5

// Comparator runs the full comparison pipeline. It holds only configuration
// and is safe for concurrent use.
type Comparator struct {
	tolerance   float64
	requireBoth bool
	log         *zap.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithTolerance sets the matching window in seconds.
func WithTolerance(seconds float64) Option {
	return func(c *Comparator) {
		c.tolerance = seconds
	}
}

// WithRequireBothSides rejects comparisons where either song has no notes.
// By default only a comparison of two empty songs is rejected.
func WithRequireBothSides(require bool) Option {
	return func(c *Comparator) {
		c.requireBoth = require
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Comparator.
func New(opts ...Option) (*Comparator, error) {
	c := &Comparator{
		tolerance: DefaultTimeTolerance,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !(c.tolerance > 0) || math.IsInf(c.tolerance, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, c.tolerance)
	}
	return c, nil
}

// Tolerance returns the matching window in seconds.
func (c *Comparator) Tolerance() float64 {
	return c.tolerance
}

// Compare scores comparison against original.
func (c *Comparator) Compare(original, comparison Song) (*Result, error) {
	if err := ValidateNotes("original", original.Notes); err != nil {
		return nil, err
	}
	if err := ValidateNotes("comparison", comparison.Notes); err != nil {
		return nil, err
	}

	emptyA, emptyB := len(original.Notes) == 0, len(comparison.Notes) == 0
	if (emptyA && emptyB) || (c.requireBoth && (emptyA || emptyB)) {
		return nil, fmt.Errorf("%w: original has %d, comparison has %d",
			ErrNoNotes, len(original.Notes), len(comparison.Notes))
	}

	c.log.Debug("comparing songs",
		zap.String("original", original.Name),
		zap.String("comparison", comparison.Name),
		zap.Int("original_notes", len(original.Notes)),
		zap.Int("comparison_notes", len(comparison.Notes)),
		zap.Float64("tolerance", c.tolerance))

	dist := CompareDistributions(original.Notes, comparison.Notes)
	matching := MatchNotes(original.Notes, comparison.Notes, c.tolerance)
	timing := TimingStatistics(matching.Matches, c.tolerance)
	score := OverallScore(dist.SimilarityPercentage, matching.MatchPercentage, timing.TimingAccuracy)

	c.log.Debug("comparison complete",
		zap.Int("matches", matching.MatchCount),
		zap.Float64("score", score.Overall),
		zap.String("grade", score.Grade))

	return &Result{
		OriginalFile:     original.Name,
		ComparisonFile:   comparison.Name,
		TimeTolerance:    c.tolerance,
		NoteDistribution: dist,
		NoteMatching:     matching,
		TimingAnalysis:   timing,
		OverallScore:     score,
	}, nil
}
