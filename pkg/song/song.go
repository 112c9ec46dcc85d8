// Package song builds and persists song analysis documents: the notes,
// segments and statistics detected in one recording or MIDI reference.
package song

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/midi"
	"github.com/james-see/notecompare/pkg/notes"
	"github.com/james-see/notecompare/pkg/track"
	"go.uber.org/zap"
)

// Source types recorded in Metadata.
const (
	SourcePitchTrack = "pitch_track"
	SourceMIDI       = "midi"
)

// ErrNotAnalysis is returned when a JSON file is neither an analysis document
// nor a pitch track.
var ErrNotAnalysis = errors.New("file is not a song analysis or pitch track")

// Metadata describes how a document was produced.
type Metadata struct {
	Timestamp           string  `json:"timestamp"`
	Source              string  `json:"source,omitempty"`
	SourceType          string  `json:"source_type"`
	Duration            float64 `json:"duration"`
	A4                  float64 `json:"a4,omitempty"`
	MinNoteDuration     float64 `json:"min_note_duration,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

// Document is the persisted analysis of one song.
type Document struct {
	Metadata        Metadata            `json:"metadata"`
	Statistics      *notes.Statistics   `json:"statistics"`
	PitchStatistics *track.PitchStats   `json:"pitch_statistics,omitempty"`
	Key             *notes.KeyEstimate  `json:"key,omitempty"`
	Notes           []notes.NoteEvent   `json:"notes"`
	Segments        []notes.NoteSegment `json:"segments"`
}

// Song returns the document's notes as a comparison input.
func (d *Document) Song(name string) compare.Song {
	return compare.Song{Name: name, Notes: d.Notes}
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Decode reads an analysis document. Missing notes are an empty list.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if err := compare.ValidateNotes("song", d.Notes); err != nil {
		return nil, err
	}
	if d.Statistics == nil {
		d.Statistics = notes.Summarize(d.Notes)
	}
	return &d, nil
}

// Analyzer converts pitch tracks and MIDI files into documents.
type Analyzer struct {
	builder   *notes.Builder
	midi      *midi.Converter
	threshold float64
	log       *zap.Logger
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBuilder sets the note builder.
func WithBuilder(b *notes.Builder) Option {
	return func(a *Analyzer) {
		if b != nil {
			a.builder = b
		}
	}
}

// WithMIDIConverter sets the converter used for MIDI inputs.
func WithMIDIConverter(c *midi.Converter) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.midi = c
		}
	}
}

// WithConfidenceThreshold sets the gate applied to pitch-track frames.
func WithConfidenceThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		if threshold >= 0 && threshold <= 1 {
			a.threshold = threshold
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock sets the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer creates an Analyzer with defaults applied before opts.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		builder:   notes.NewBuilder(),
		midi:      midi.NewConverter(),
		threshold: track.DefaultConfidenceThreshold,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Builder returns the note builder in use.
func (a *Analyzer) Builder() *notes.Builder {
	return a.builder
}

func (a *Analyzer) timestamp() string {
	return a.now().UTC().Format(time.RFC3339)
}

// Analyze gates a pitch track by confidence and converts it to a document.
func (a *Analyzer) Analyze(source string, t *track.Track) (*Document, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	gated := t.Gate(a.threshold)

	events, err := a.builder.Events(gated.Times, gated.Frequencies)
	if err != nil {
		return nil, err
	}
	segments, err := a.builder.Segments(gated.Times, gated.Frequencies)
	if err != nil {
		return nil, err
	}
	pitch := t.Stats(a.threshold)

	doc := &Document{
		Metadata: Metadata{
			Timestamp:           a.timestamp(),
			Source:              source,
			SourceType:          SourcePitchTrack,
			Duration:            t.Duration(),
			A4:                  a.builder.Mapper().A4(),
			MinNoteDuration:     a.builder.MinDuration(),
			ConfidenceThreshold: a.threshold,
		},
		Statistics:      notes.Summarize(events),
		PitchStatistics: &pitch,
		Key:             notes.EstimateKey(events),
		Notes:           events,
		Segments:        segments,
	}

	a.log.Info("analyzed pitch track",
		zap.String("source", source),
		zap.Int("frames", t.Len()),
		zap.Int("notes", len(events)),
		zap.Int("segments", len(segments)))
	return doc, nil
}

// FromMIDI converts a parsed MIDI sequence to a document.
func (a *Analyzer) FromMIDI(source string, seq *midi.Sequence) *Document {
	doc := &Document{
		Metadata: Metadata{
			Timestamp:  a.timestamp(),
			Source:     source,
			SourceType: SourceMIDI,
			Duration:   seq.Info.Duration,
			A4:         a.builder.Mapper().A4(),
		},
		Statistics: notes.Summarize(seq.Events),
		Key:        notes.EstimateKey(seq.Events),
		Notes:      seq.Events,
		Segments:   seq.Segments,
	}
	a.log.Info("analyzed MIDI file",
		zap.String("source", source),
		zap.Int("notes", len(seq.Events)))
	return doc
}

// Open loads any supported input as a document: a saved analysis, a JSON or
// CSV pitch track, or a MIDI file.
func (a *Analyzer) Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return a.Read(filepath.Base(path), data)
}

// Read is Open for in-memory content; name is used for format detection.
func (a *Analyzer) Read(name string, data []byte) (*Document, error) {
	format := track.DetectFormat(name)
	if format == track.FormatUnknown {
		format = track.DetectFormatFromContent(data)
	}

	switch format {
	case track.FormatMIDI:
		seq, err := a.midi.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return a.FromMIDI(name, seq), nil
	case track.FormatJSON:
		isDoc, err := isAnalysis(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if isDoc {
			doc, err := Decode(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return doc, nil
		}
	}

	t, err := track.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a.Analyze(name, t)
}

// isAnalysis reports whether a JSON object carries a notes list rather than
// raw pitch series.
func isAnalysis(data []byte) (bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, ok := probe["notes"]; ok {
		return true, nil
	}
	if _, ok := probe["times"]; ok {
		return false, nil
	}
	return false, ErrNotAnalysis
}

// OutputName derives "<stem>_analysis.json" next to the input.
func OutputName(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_analysis.json"
}
