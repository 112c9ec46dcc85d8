// Package track loads pitch tracks produced by an external pitch estimator
// and prepares them for note conversion.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/james-see/notecompare/pkg/notes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultConfidenceThreshold gates out frames the estimator is unsure about.
const DefaultConfidenceThreshold = 0.5

// ErrConfidenceLength is returned when confidences do not line up with frequencies.
var ErrConfidenceLength = errors.New("confidences must match frequencies in length")

// Track is a pitch track as parallel series. Confidences may be empty, in
// which case every frame is treated as fully confident.
type Track struct {
	Times       []float64 `json:"times"`
	Frequencies []float64 `json:"frequencies"`
	Confidences []float64 `json:"confidences,omitempty"`
}

// Len returns the number of frames.
func (t *Track) Len() int {
	return len(t.Times)
}

// Duration returns the time of the last frame, or 0 for an empty track.
func (t *Track) Duration() float64 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1]
}

// Validate checks series lengths and time ordering.
func (t *Track) Validate() error {
	if err := notes.Validate(t.Times, t.Frequencies); err != nil {
		return err
	}
	if len(t.Confidences) > 0 && len(t.Confidences) != len(t.Frequencies) {
		return fmt.Errorf("%w: %d confidences, %d frequencies", ErrConfidenceLength, len(t.Confidences), len(t.Frequencies))
	}
	return nil
}

// confident reports whether frame i passes the threshold.
func (t *Track) confident(i int, threshold float64) bool {
	if len(t.Confidences) == 0 {
		return true
	}
	return t.Confidences[i] >= threshold
}

// Gate returns a copy of the track where frames below the confidence
// threshold are unvoiced (frequency 0).
func (t *Track) Gate(threshold float64) *Track {
	out := &Track{
		Times:       append([]float64(nil), t.Times...),
		Frequencies: append([]float64(nil), t.Frequencies...),
		Confidences: append([]float64(nil), t.Confidences...),
	}
	for i := range out.Frequencies {
		if !t.confident(i, threshold) {
			out.Frequencies[i] = 0
		}
	}
	return out
}

// PitchStats summarizes the voiced, confident frames of a track.
type PitchStats struct {
	MeanFrequency   float64 `json:"mean_frequency"`
	MedianFrequency float64 `json:"median_frequency"`
	MinFrequency    float64 `json:"min_frequency"`
	MaxFrequency    float64 `json:"max_frequency"`
	StdFrequency    float64 `json:"std_frequency"`
	PitchCoverage   float64 `json:"pitch_coverage"`
}

// Stats computes pitch statistics over frames with a positive frequency that
// pass the confidence threshold. All values are 0 when no frame qualifies.
func (t *Track) Stats(threshold float64) PitchStats {
	var valid []float64
	for i, f := range t.Frequencies {
		if f > 0 && !math.IsInf(f, 0) && t.confident(i, threshold) {
			valid = append(valid, f)
		}
	}
	if len(valid) == 0 {
		return PitchStats{}
	}

	sort.Float64s(valid)
	mean, std := stat.PopMeanStdDev(valid, nil)
	return PitchStats{
		MeanFrequency:   mean,
		MedianFrequency: median(valid),
		MinFrequency:    floats.Min(valid),
		MaxFrequency:    floats.Max(valid),
		StdFrequency:    std,
		PitchCoverage:   float64(len(valid)) / float64(len(t.Frequencies)),
	}
}

// median of sorted values, averaging the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
