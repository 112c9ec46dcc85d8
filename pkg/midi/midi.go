// Package midi exports detected notes to Standard MIDI Files and reads MIDI
// references back as note events.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/james-see/notecompare/pkg/notes"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

// Export defaults.
const (
	DefaultTicksPerQuarter = 480
	DefaultTempo           = 120.0 // BPM
	DefaultVelocity        = 100
	TrackName              = "Detected Melody"
)

// ErrNoNotes is returned when there is nothing to export.
var ErrNoNotes = errors.New("no notes to export")

// Converter handles MIDI file generation and parsing
type Converter struct {
	ticksPerQuarter uint16
	tempo           float64
	velocity        uint8
	minDuration     float64
	mapper          *notes.Mapper
	log             *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithTempo sets the tempo written to exported files.
func WithTempo(bpm float64) Option {
	return func(c *Converter) {
		if bpm > 0 {
			c.tempo = bpm
		}
	}
}

// WithVelocity sets the note-on velocity of exported notes.
func WithVelocity(v uint8) Option {
	return func(c *Converter) {
		if v > 0 && v <= 127 {
			c.velocity = v
		}
	}
}

// WithMinDuration sets the shortest note length used when exporting events.
func WithMinDuration(d float64) Option {
	return func(c *Converter) {
		if d > 0 {
			c.minDuration = d
		}
	}
}

// WithA4 sets the reference pitch used for imported note frequencies.
func WithA4(a4 float64) Option {
	return func(c *Converter) {
		c.mapper = notes.NewMapper(a4)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.log = l
		}
	}
}

// NewConverter creates a new MIDI converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		ticksPerQuarter: DefaultTicksPerQuarter,
		tempo:           DefaultTempo,
		velocity:        DefaultVelocity,
		minDuration:     notes.DefaultMinDuration,
		mapper:          notes.NewMapper(notes.DefaultA4),
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// placed is a note with absolute start and end in seconds.
type placed struct {
	key        uint8
	start, end float64
}

// FromSegments creates MIDI data with one note per segment.
func (c *Converter) FromSegments(segments []notes.NoteSegment) ([]byte, error) {
	out := make([]placed, 0, len(segments))
	for _, seg := range segments {
		key, ok := c.key(seg.Note, seg.Octave)
		if !ok {
			continue
		}
		out = append(out, placed{key: key, start: seg.StartTime, end: seg.EndTime})
	}
	return c.encode(out)
}

// FromEvents creates MIDI data from frame-level note events. Each note lasts
// until the next event, but never less than the minimum duration; the last
// note gets the minimum duration.
func (c *Converter) FromEvents(events []notes.NoteEvent) ([]byte, error) {
	out := make([]placed, 0, len(events))
	for i, ev := range events {
		key, ok := c.key(ev.Note, ev.Octave)
		if !ok {
			continue
		}
		duration := c.minDuration
		if i < len(events)-1 {
			duration = events[i+1].Time - ev.Time
		}
		duration = max(duration, c.minDuration)
		out = append(out, placed{key: key, start: ev.Time, end: ev.Time + duration})
	}
	return c.encode(out)
}

// WriteSegmentsFile writes segments as a MIDI file
func (c *Converter) WriteSegmentsFile(segments []notes.NoteSegment, filename string) error {
	data, err := c.FromSegments(segments)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// WriteEventsFile writes note events as a MIDI file
func (c *Converter) WriteEventsFile(events []notes.NoteEvent, filename string) error {
	data, err := c.FromEvents(events)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func (c *Converter) key(pitchClass string, octave int) (uint8, bool) {
	n, err := notes.MIDINumber(pitchClass, octave)
	if err != nil {
		c.log.Warn("skipping note", zap.String("note", pitchClass), zap.Error(err))
		return 0, false
	}
	if n < 0 || n > 127 {
		c.log.Warn("MIDI note out of range", zap.String("note", notes.FullNote(pitchClass, octave)), zap.Int("midi", n))
		return 0, false
	}
	return uint8(n), true
}

func (c *Converter) ticksPerSecond() float64 {
	return float64(c.ticksPerQuarter) * c.tempo / 60
}

func (c *Converter) encode(placedNotes []placed) ([]byte, error) {
	if len(placedNotes) == 0 {
		return nil, ErrNoNotes
	}

	type message struct {
		tick uint32
		off  bool
		key  uint8
	}

	tps := c.ticksPerSecond()
	msgs := make([]message, 0, 2*len(placedNotes))
	for _, p := range placedNotes {
		on := secondsToTicks(p.start, tps)
		off := secondsToTicks(p.end, tps)
		if off <= on {
			off = on + 1
		}
		msgs = append(msgs, message{tick: on, key: p.key}, message{tick: off, off: true, key: p.key})
	}
	// Note-offs sort before note-ons on the same tick so repeated keys retrigger.
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].off && !msgs[j].off
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(c.ticksPerQuarter)

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(TrackName))
	track.Add(0, smf.MetaTempo(c.tempo))
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, gomidi.ProgramChange(0, 0))

	channel := uint8(0)
	var currentTick uint32
	for _, m := range msgs {
		delta := m.tick - currentTick
		if m.off {
			track.Add(delta, gomidi.NoteOff(channel, m.key))
		} else {
			track.Add(delta, gomidi.NoteOn(channel, m.key, c.velocity))
		}
		currentTick = m.tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}

	c.log.Debug("encoded MIDI",
		zap.Int("notes", len(placedNotes)),
		zap.Float64("tempo", c.tempo))
	return buf.Bytes(), nil
}

func secondsToTicks(sec, ticksPerSecond float64) uint32 {
	if sec <= 0 {
		return 0
	}
	return uint32(sec*ticksPerSecond + 0.5)
}
