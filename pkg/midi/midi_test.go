package midi

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/notecompare/pkg/notes"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestFromSegmentsRoundTrip(t *testing.T) {
	segments := []notes.NoteSegment{
		{StartTime: 0.0, EndTime: 0.5, Note: "A", Octave: 4},
		{StartTime: 0.5, EndTime: 1.0, Note: "A", Octave: 4},
		{StartTime: 1.2, EndTime: 1.7, Note: "C#", Octave: 5},
	}

	c := NewConverter()
	data, err := c.FromSegments(segments)
	if err != nil {
		t.Fatalf("FromSegments() error = %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Fatalf("FromSegments() header = %q, want MThd", data[:4])
	}

	seq, err := c.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(seq.Segments) != len(segments) {
		t.Fatalf("Parse() returned %d segments, want %d", len(seq.Segments), len(segments))
	}
	for i, want := range segments {
		got := seq.Segments[i]
		if got.FullNote != notes.FullNote(want.Note, want.Octave) {
			t.Errorf("segment %d note = %s, want %s%d", i, got.FullNote, want.Note, want.Octave)
		}
		if !near(got.StartTime, want.StartTime) || !near(got.EndTime, want.EndTime) {
			t.Errorf("segment %d = [%v, %v], want [%v, %v]", i, got.StartTime, got.EndTime, want.StartTime, want.EndTime)
		}
	}

	if len(seq.Events) != 3 || seq.Events[2].Note != "C#" || seq.Events[2].Octave != 5 {
		t.Errorf("Parse() events = %+v", seq.Events)
	}
	if !near(seq.Events[0].Frequency, 440) {
		t.Errorf("A4 frequency = %v, want 440", seq.Events[0].Frequency)
	}
	if seq.Info.Tempo != DefaultTempo {
		t.Errorf("Info.Tempo = %v, want %v", seq.Info.Tempo, DefaultTempo)
	}
	if seq.Info.TotalNotes != 3 || seq.Info.Tracks != 1 || seq.Info.TimeSignatureChanges != 1 {
		t.Errorf("Info = %+v", seq.Info)
	}
	if !near(seq.Info.Duration, 1.7) {
		t.Errorf("Info.Duration = %v, want 1.7", seq.Info.Duration)
	}
}

func TestFromEventsDurations(t *testing.T) {
	events := []notes.NoteEvent{
		{Time: 0.0, Note: "C", Octave: 4},
		{Time: 0.5, Note: "E", Octave: 4},
		{Time: 0.55, Note: "G", Octave: 4},
	}

	c := NewConverter(WithTempo(90))
	data, err := c.FromEvents(events)
	if err != nil {
		t.Fatalf("FromEvents() error = %v", err)
	}
	seq, err := c.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(seq.Segments) != 3 {
		t.Fatalf("Parse() returned %d segments, want 3", len(seq.Segments))
	}

	// Next onset, floored at the minimum duration; the last note gets the minimum.
	wantDurations := []float64{0.5, notes.DefaultMinDuration, notes.DefaultMinDuration}
	for i, want := range wantDurations {
		if !near(seq.Segments[i].Duration, want) {
			t.Errorf("segment %d duration = %v, want %v", i, seq.Segments[i].Duration, want)
		}
	}
	if math.Abs(seq.Info.Tempo-90) > 1e-3 {
		t.Errorf("Info.Tempo = %v, want 90", seq.Info.Tempo)
	}
}

func TestSkipsInvalidNotes(t *testing.T) {
	segments := []notes.NoteSegment{
		{StartTime: 0, EndTime: 0.5, Note: "H", Octave: 4},
		{StartTime: 0, EndTime: 0.5, Note: "C", Octave: 11},
		{StartTime: 0.5, EndTime: 1, Note: "D", Octave: 3},
	}

	c := NewConverter()
	data, err := c.FromSegments(segments)
	if err != nil {
		t.Fatalf("FromSegments() error = %v", err)
	}
	seq, err := c.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(seq.Events) != 1 || seq.Events[0].FullNote != "D3" {
		t.Errorf("Parse() events = %+v, want only D3", seq.Events)
	}
}

func TestNoNotes(t *testing.T) {
	c := NewConverter()
	if _, err := c.FromSegments(nil); !errors.Is(err, ErrNoNotes) {
		t.Errorf("FromSegments(nil) error = %v, want ErrNoNotes", err)
	}
	if _, err := c.FromEvents([]notes.NoteEvent{{Note: "X"}}); !errors.Is(err, ErrNoNotes) {
		t.Errorf("FromEvents() error = %v, want ErrNoNotes", err)
	}
}

func TestParseInvalid(t *testing.T) {
	c := NewConverter()
	if _, err := c.Parse([]byte("not a midi file")); err == nil {
		t.Error("Parse() should fail on garbage")
	}
	if _, err := c.ParseFile(filepath.Join(t.TempDir(), "missing.mid")); err == nil {
		t.Error("ParseFile() should fail on a missing file")
	}
}

func TestWriteSegmentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melody.mid")
	c := NewConverter()
	segments := []notes.NoteSegment{{StartTime: 0, EndTime: 1, Note: "G", Octave: 2}}
	if err := c.WriteSegmentsFile(segments, path); err != nil {
		t.Fatalf("WriteSegmentsFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	seq, err := c.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(seq.Events) != 1 || seq.Events[0].FullNote != "G2" {
		t.Errorf("ParseFile() events = %+v", seq.Events)
	}
}

func TestTempoMap(t *testing.T) {
	m := newTempoMap([]tempoChange{
		{tick: 960, microsecondsPerBeat: 1000000},
	}, 480)

	tests := []struct {
		tick int64
		want float64
	}{
		{0, 0},
		{480, 0.5},
		{960, 1.0},
		{1440, 2.0},
	}
	for _, tt := range tests {
		if got := m.seconds(tt.tick); !near(got, tt.want) {
			t.Errorf("seconds(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}
	if got := m.bpmAt(0); got != 120 {
		t.Errorf("bpmAt(0) = %v, want 120", got)
	}
	if got := m.bpmAt(1000); got != 60 {
		t.Errorf("bpmAt(1000) = %v, want 60", got)
	}
}
