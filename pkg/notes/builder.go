package notes

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Default builder settings.
const (
	DefaultMinDuration   = 0.1 // seconds
	DefaultPianoRollStep = 0.1 // seconds
	MostCommonLimit      = 10
	PianoRollLowestMIDI  = 12  // C0
	PianoRollHighestMIDI = 108 // C8
	pianoRollRowsInRange = PianoRollHighestMIDI - PianoRollLowestMIDI + 1

	// MaxPianoRollColumns bounds the grid width; about 2.7 hours at the default step.
	MaxPianoRollColumns = 100000
)

// Builder turns parallel time/frequency series into notes, segments,
// statistics and piano rolls. A Builder holds only configuration and is safe
// for concurrent use.
type Builder struct {
	mapper      *Mapper
	minDuration float64
	log         *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithA4 sets the reference pitch.
func WithA4(a4 float64) Option {
	return func(b *Builder) {
		b.mapper = NewMapper(a4)
	}
}

// WithMinDuration sets the shortest segment that is kept.
func WithMinDuration(d float64) Option {
	return func(b *Builder) {
		if d >= 0 {
			b.minDuration = d
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder creates a Builder with defaults applied before opts.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		mapper:      NewMapper(DefaultA4),
		minDuration: DefaultMinDuration,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mapper returns the frequency mapper in use.
func (b *Builder) Mapper() *Mapper {
	return b.mapper
}

// MinDuration returns the configured minimum segment duration.
func (b *Builder) MinDuration() float64 {
	return b.minDuration
}

// Validate checks that times and freqs form a usable pitch track.
func Validate(times, freqs []float64) error {
	if len(times) != len(freqs) {
		return fmt.Errorf("%w: %d times, %d frequencies", ErrLengthMismatch, len(times), len(freqs))
	}
	for i := range times {
		if math.IsNaN(times[i]) {
			return fmt.Errorf("%w: NaN at index %d", ErrNonMonotonicTime, i)
		}
		if i > 0 && times[i] < times[i-1] {
			return fmt.Errorf("%w: %.6f after %.6f at index %d", ErrNonMonotonicTime, times[i], times[i-1], i)
		}
	}
	return nil
}

// Events maps every voiced sample to a NoteEvent, preserving order.
func (b *Builder) Events(times, freqs []float64) ([]NoteEvent, error) {
	if err := Validate(times, freqs); err != nil {
		return nil, err
	}

	events := make([]NoteEvent, 0, len(freqs))
	for i, f := range freqs {
		n, ok := b.mapper.FrequencyToNote(f)
		if !ok {
			continue
		}
		events = append(events, NoteEvent{
			Time:           times[i],
			Note:           n.PitchClass,
			Octave:         n.Octave,
			Frequency:      f,
			CentsDeviation: n.Cents,
			FullNote:       n.FullNote(),
		})
	}

	b.log.Debug("converted frequencies to notes",
		zap.Int("samples", len(freqs)),
		zap.Int("notes", len(events)))
	return events, nil
}

// run is the open segment while folding over a track.
type run struct {
	note   Note
	start  float64
	freqs  []float64
	active bool
}

func (r *run) close(end, minDuration float64, out []NoteSegment) []NoteSegment {
	if !r.active {
		return out
	}
	duration := end - r.start
	if duration >= minDuration {
		out = append(out, NoteSegment{
			StartTime:    r.start,
			EndTime:      end,
			Duration:     duration,
			Note:         r.note.PitchClass,
			Octave:       r.note.Octave,
			FullNote:     r.note.FullNote(),
			AvgFrequency: stat.Mean(r.freqs, nil),
		})
	}
	r.active = false
	r.freqs = r.freqs[:0]
	return out
}

// Segments groups consecutive samples of the same note into segments.
//
// A run ends at the time of the sample that breaks it (an unvoiced frame or a
// different note). A run still open at the end of the track ends at the last
// sample's time, so a trailing single-sample run has zero duration. Runs
// shorter than the minimum duration are dropped. Runs separated by an
// unvoiced frame are never merged.
func (b *Builder) Segments(times, freqs []float64) ([]NoteSegment, error) {
	if err := Validate(times, freqs); err != nil {
		return nil, err
	}
	if len(freqs) == 0 {
		return []NoteSegment{}, nil
	}

	segments := []NoteSegment{}
	var cur run
	for i, f := range freqs {
		t := times[i]
		n, ok := b.mapper.FrequencyToNote(f)
		switch {
		case !ok:
			segments = cur.close(t, b.minDuration, segments)
		case !cur.active || n.PitchClass != cur.note.PitchClass || n.Octave != cur.note.Octave:
			segments = cur.close(t, b.minDuration, segments)
			cur = run{note: n, start: t, freqs: append(cur.freqs[:0], f), active: true}
		default:
			cur.freqs = append(cur.freqs, f)
		}
	}
	segments = cur.close(times[len(times)-1], b.minDuration, segments)

	b.log.Debug("created note segments", zap.Int("segments", len(segments)))
	return segments, nil
}

// Statistics summarizes the notes of a track.
func (b *Builder) Statistics(times, freqs []float64) (*Statistics, error) {
	events, err := b.Events(times, freqs)
	if err != nil {
		return nil, err
	}
	return Summarize(events), nil
}

// Summarize computes statistics over an event list. An empty list yields zero
// counts, an empty distribution and a nil octave range.
func Summarize(events []NoteEvent) *Statistics {
	s := &Statistics{
		MostCommon:   []NoteCount{},
		Distribution: map[string]int{},
	}
	if len(events) == 0 {
		return s
	}

	counts := CountNotes(events)
	freqs := make([]float64, len(events))
	rng := OctaveRange{Min: events[0].Octave, Max: events[0].Octave}
	for i, ev := range events {
		freqs[i] = ev.Frequency
		if ev.Octave < rng.Min {
			rng.Min = ev.Octave
		}
		if ev.Octave > rng.Max {
			rng.Max = ev.Octave
		}
	}

	for _, c := range counts {
		s.Distribution[c.Note] = c.Count
	}
	s.TotalNotes = len(events)
	s.UniqueNotes = len(counts)
	s.MostCommon = MostCommon(counts, MostCommonLimit)
	s.OctaveRange = &rng
	s.AvgFrequency = stat.Mean(freqs, nil)
	return s
}

// CountNotes counts events per full note, in order of first occurrence.
func CountNotes(events []NoteEvent) []NoteCount {
	index := make(map[string]int)
	var counts []NoteCount
	for _, ev := range events {
		i, ok := index[ev.FullNote]
		if !ok {
			i = len(counts)
			index[ev.FullNote] = i
			counts = append(counts, NoteCount{Note: ev.FullNote})
		}
		counts[i].Count++
	}
	return counts
}

// MostCommon ranks counts by descending count, keeping first-occurrence order
// among ties. A non-positive limit returns every entry.
func MostCommon(counts []NoteCount, limit int) []NoteCount {
	ranked := make([]NoteCount, len(counts))
	copy(ranked, counts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// PianoRoll builds a binary occupancy grid with one row per MIDI note from C0
// to C8 and one column per resolution step up to the last timestamp. Each
// voiced sample sets one cell. Pitches outside C0..C8 are dropped.
func (b *Builder) PianoRoll(times, freqs []float64, resolution float64) (*PianoRoll, error) {
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResolution, resolution)
	}
	if err := Validate(times, freqs); err != nil {
		return nil, err
	}

	roll := &PianoRoll{
		Resolution: resolution,
		Times:      []float64{},
		Notes:      make([]int, pianoRollRowsInRange),
		Matrix:     [][]int{},
	}
	for i := range roll.Notes {
		roll.Notes[i] = PianoRollLowestMIDI + i
	}
	if len(times) == 0 {
		return roll, nil
	}

	maxTime := times[len(times)-1]
	width := math.Ceil((maxTime + resolution) / resolution)
	if math.IsNaN(width) || width > MaxPianoRollColumns {
		return nil, fmt.Errorf("%w: %v s over %v s needs %.0f columns, limit %d",
			ErrInvalidResolution, resolution, maxTime, width, MaxPianoRollColumns)
	}
	columns := max(int(width), 1)
	roll.Times = make([]float64, columns)
	for c := range roll.Times {
		roll.Times[c] = float64(c) * resolution
	}
	roll.Matrix = make([][]int, pianoRollRowsInRange)
	for r := range roll.Matrix {
		roll.Matrix[r] = make([]int, columns)
	}

	dropped := 0
	for i, f := range freqs {
		n, ok := b.mapper.FrequencyToNote(f)
		if !ok {
			continue
		}
		col := int(math.Floor(times[i] / resolution))
		if n.MIDI < PianoRollLowestMIDI || n.MIDI > PianoRollHighestMIDI || col < 0 || col >= columns {
			dropped++
			continue
		}
		roll.Matrix[n.MIDI-PianoRollLowestMIDI][col] = 1
	}

	b.log.Debug("built piano roll",
		zap.Int("columns", columns),
		zap.Int("dropped", dropped))
	return roll, nil
}
