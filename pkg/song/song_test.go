package song

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/james-see/notecompare/pkg/midi"
	"github.com/james-see/notecompare/pkg/notes"
	"github.com/james-see/notecompare/pkg/track"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

// a440Track holds 0.5 s of A4, a low-confidence blip, then 0.5 s of C5.
func a440Track() *track.Track {
	tr := &track.Track{}
	add := func(tm, freq, conf float64) {
		tr.Times = append(tr.Times, tm)
		tr.Frequencies = append(tr.Frequencies, freq)
		tr.Confidences = append(tr.Confidences, conf)
	}
	for i := 0; i <= 50; i++ {
		add(float64(i)*0.01, 440, 0.9)
	}
	add(0.51, 1000, 0.1)
	for i := 52; i <= 102; i++ {
		add(float64(i)*0.01, 523.25, 0.9)
	}
	return tr
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(WithClock(fixedClock))
	doc, err := a.Analyze("take.csv", a440Track())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if doc.Metadata.Timestamp != "2024-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", doc.Metadata.Timestamp)
	}
	if doc.Metadata.SourceType != SourcePitchTrack || doc.Metadata.A4 != notes.DefaultA4 {
		t.Errorf("Metadata = %+v", doc.Metadata)
	}
	if doc.Statistics.TotalNotes != 102 {
		t.Errorf("TotalNotes = %d, want 102 (gated frame dropped)", doc.Statistics.TotalNotes)
	}
	for _, ev := range doc.Notes {
		if ev.FullNote != "A4" && ev.FullNote != "C5" {
			t.Fatalf("unexpected note %s at %v", ev.FullNote, ev.Time)
		}
	}
	if len(doc.Segments) != 2 || doc.Segments[0].FullNote != "A4" || doc.Segments[1].FullNote != "C5" {
		t.Errorf("Segments = %+v, want A4 then C5", doc.Segments)
	}
	if doc.PitchStatistics == nil || doc.PitchStatistics.MaxFrequency != 523.25 {
		t.Errorf("PitchStatistics = %+v", doc.PitchStatistics)
	}
	if doc.Key == nil || doc.Key.Key == "" {
		t.Errorf("Key = %+v", doc.Key)
	}
}

func TestAnalyzeInvalidTrack(t *testing.T) {
	a := NewAnalyzer()
	_, err := a.Analyze("bad", &track.Track{Times: []float64{0, 1}, Frequencies: []float64{440}})
	if !errors.Is(err, notes.ErrLengthMismatch) {
		t.Errorf("Analyze() error = %v, want ErrLengthMismatch", err)
	}
}

func TestAnalyzeTinyFrequencySaves(t *testing.T) {
	a := NewAnalyzer(WithClock(fixedClock))
	doc, err := a.Analyze("tiny", &track.Track{
		Times:       []float64{0, 0.1, 0.2},
		Frequencies: []float64{440, 1e-322, 440},
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(doc.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(doc.Notes))
	}
	if c := doc.Notes[1].CentsDeviation; math.IsNaN(c) || c <= -50 || c > 50 {
		t.Errorf("cents = %v, outside (-50, 50]", c)
	}

	path := filepath.Join(t.TempDir(), "tiny_analysis.json")
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := a.Open(path); err != nil {
		t.Errorf("Open() error = %v", err)
	}
}

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	a := NewAnalyzer(WithClock(fixedClock))
	doc, err := a.Analyze("take", a440Track())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "take_analysis.json")
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := a.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(loaded.Notes) != len(doc.Notes) || len(loaded.Segments) != len(doc.Segments) {
		t.Errorf("Open() = %d notes %d segments, want %d and %d",
			len(loaded.Notes), len(loaded.Segments), len(doc.Notes), len(doc.Segments))
	}
	if loaded.Metadata.Timestamp != doc.Metadata.Timestamp {
		t.Errorf("Open() timestamp = %q", loaded.Metadata.Timestamp)
	}

	s := loaded.Song("take")
	if s.Name != "take" || len(s.Notes) != len(doc.Notes) {
		t.Errorf("Song() = %s with %d notes", s.Name, len(s.Notes))
	}
}

func TestReadFormats(t *testing.T) {
	a := NewAnalyzer()

	csvDoc, err := a.Read("take.csv", []byte("time,frequency\n0,440\n0.1,440\n0.2,440\n"))
	if err != nil {
		t.Fatalf("Read(csv) error = %v", err)
	}
	if csvDoc.Statistics.TotalNotes != 3 {
		t.Errorf("csv TotalNotes = %d, want 3", csvDoc.Statistics.TotalNotes)
	}

	trackDoc, err := a.Read("take.json", []byte(`{"times":[0,0.1],"frequencies":[261.63,261.63]}`))
	if err != nil {
		t.Fatalf("Read(track json) error = %v", err)
	}
	if trackDoc.Metadata.SourceType != SourcePitchTrack || trackDoc.Notes[0].FullNote != "C4" {
		t.Errorf("track json = %+v", trackDoc)
	}

	analysis := `{"notes":[{"time":0.5,"note":"E","octave":4,"frequency":329.63,"cents_deviation":0,"full_note":"E4"}]}`
	docFromJSON, err := a.Read("song.json", []byte(analysis))
	if err != nil {
		t.Fatalf("Read(analysis) error = %v", err)
	}
	if docFromJSON.Statistics == nil || docFromJSON.Statistics.TotalNotes != 1 {
		t.Errorf("analysis statistics = %+v", docFromJSON.Statistics)
	}

	data, err := midi.NewConverter().FromSegments([]notes.NoteSegment{
		{StartTime: 0, EndTime: 0.5, Note: "G", Octave: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	midiDoc, err := a.Read("ref.mid", data)
	if err != nil {
		t.Fatalf("Read(midi) error = %v", err)
	}
	if midiDoc.Metadata.SourceType != SourceMIDI || len(midiDoc.Notes) != 1 || midiDoc.Notes[0].FullNote != "G3" {
		t.Errorf("midi doc = %+v", midiDoc)
	}
}

func TestReadErrors(t *testing.T) {
	a := NewAnalyzer()
	tests := []struct {
		name string
		file string
		data string
		want error
	}{
		{"neither notes nor times", "x.json", `{"foo": 1}`, ErrNotAnalysis},
		{"bad note", "x.json", `{"notes":[{"time":0,"note":"H","octave":4,"full_note":"H4"}]}`, nil},
		{"unknown format", "x.wav", "RIFF", track.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Read(tt.file, []byte(tt.data))
			if err == nil {
				t.Fatal("Read() should fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Read() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := a.Open(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want ErrNotExist", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"take.csv", "take_analysis.json"},
		{"dir/song.f0", "dir/song_analysis.json"},
		{"noext", "noext_analysis.json"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.input); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
