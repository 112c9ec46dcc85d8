package notes

import (
	"errors"
	"reflect"
	"testing"
)

func TestScaleNotes(t *testing.T) {
	tests := []struct {
		root, kind string
		expected   []string
	}{
		{"C", "major", []string{"C", "D", "E", "F", "G", "A", "B"}},
		{"A", "minor", []string{"A", "B", "C", "D", "E", "F", "G"}},
		{"F#", "major", []string{"F#", "G#", "A#", "B", "C#", "D#", "F"}},
	}

	for _, tt := range tests {
		t.Run(tt.root+" "+tt.kind, func(t *testing.T) {
			got, err := ScaleNotes(tt.root, tt.kind)
			if err != nil {
				t.Fatalf("ScaleNotes() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ScaleNotes(%q, %q) = %v, want %v", tt.root, tt.kind, got, tt.expected)
			}
		})
	}

	chromatic, _ := ScaleNotes("C", "chromatic")
	if !reflect.DeepEqual(chromatic, NoteNames) {
		t.Errorf("chromatic scale from C = %v, want %v", chromatic, NoteNames)
	}

	if _, err := ScaleNotes("X", "major"); !errors.Is(err, ErrUnknownPitchClass) {
		t.Errorf("ScaleNotes(X) error = %v, want ErrUnknownPitchClass", err)
	}
	if _, err := ScaleNotes("C", "lydian"); !errors.Is(err, ErrUnknownScale) {
		t.Errorf("ScaleNotes(lydian) error = %v, want ErrUnknownScale", err)
	}
}

func TestEstimateKey(t *testing.T) {
	times := []float64{0, 0.1, 0.2, 0.3, 0.4}
	freqs := []float64{d4, c4, 523.25, d4, 130.81}

	events, err := NewBuilder().Events(times, freqs)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	key := EstimateKey(events)
	// C appears in three octaves and outranks D.
	if key.Key != "C" {
		t.Errorf("EstimateKey() key = %q, want C", key.Key)
	}
	if key.Confidence != 0.5 {
		t.Errorf("EstimateKey() confidence = %v, want 0.5", key.Confidence)
	}
	if key.Distribution["C"] != 3 || key.Distribution["D"] != 2 {
		t.Errorf("EstimateKey() distribution = %v", key.Distribution)
	}

	empty := EstimateKey(nil)
	if empty.Key != "" || empty.Confidence != 0 {
		t.Errorf("EstimateKey(nil) = %+v, want empty", empty)
	}
}
