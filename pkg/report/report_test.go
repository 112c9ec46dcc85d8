package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/james-see/notecompare/pkg/compare"
	"github.com/james-see/notecompare/pkg/notes"
)

func event(full string, at float64) notes.NoteEvent {
	pc, oct, _ := notes.ParseFullNote(full)
	return notes.NoteEvent{Time: at, Note: pc, Octave: oct, FullNote: full, Frequency: 261.63}
}

func sampleResult(t *testing.T) *compare.Result {
	t.Helper()
	original := []notes.NoteEvent{event("C4", 0), event("D4", 0.5), event("E4", 1.0)}
	comparison := []notes.NoteEvent{event("C4", 0.1), event("D4", 0.5), event("F4", 1.0)}

	c, err := compare.New(compare.WithTolerance(0.5))
	if err != nil {
		t.Fatalf("compare.New() error = %v", err)
	}
	res, err := c.Compare(
		compare.Song{Name: "original.json", Notes: original},
		compare.Song{Name: "mine.json", Notes: comparison},
	)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	return res
}

func TestFormat(t *testing.T) {
	out := Format(sampleResult(t))

	for _, want := range []string{
		"SONG COMPARISON REPORT",
		"Original Song: original.json",
		"Your Song: mine.json",
		"Grade: ",
		"Common Notes: 2 notes",
		"  C4, D4\n",
		"Notes in Original but NOT in Your Song (1):\n  E4",
		"Extra Notes in Your Song (1):\n  F4",
		"Matched Notes: 2 / 3",
		"SAMPLE MATCHING NOTES (First 2 of 2)",
		"1. C4 @ 0.00s -> 0.10s (Δ 0.1s, Δ 0.0Hz)",
		"SAMPLE MISSING NOTES (First 1 of 1)",
		"1. E4 @ 1.00s (MISSING in your song)",
		"SAMPLE EXTRA NOTES (First 1 of 1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() output missing %q\n%s", want, out)
		}
	}
}

func TestFormatDeterministic(t *testing.T) {
	res := sampleResult(t)
	if Format(res) != Format(res) {
		t.Error("Format() is not deterministic")
	}
}

func TestFormatTruncatesSamples(t *testing.T) {
	var original []notes.NoteEvent
	for i := 0; i < 25; i++ {
		original = append(original, event("C4", float64(i)))
	}
	c, _ := compare.New()
	res, err := c.Compare(compare.Song{Notes: original}, compare.Song{Notes: original})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	out := Format(res)
	if !strings.Contains(out, "SAMPLE MATCHING NOTES (First 10 of 25)") {
		t.Errorf("Format() should announce truncation:\n%s", out)
	}
	if strings.Contains(out, "\n11. ") {
		t.Error("Format() listed more than 10 samples")
	}
}

func TestFormatTruncatesCommonNotes(t *testing.T) {
	var original []notes.NoteEvent
	for midi := 40; midi < 65; midi++ {
		pc, oct := notes.MIDIToNote(midi)
		original = append(original, event(notes.FullNote(pc, oct), float64(midi)))
	}
	c, _ := compare.New()
	res, _ := c.Compare(compare.Song{Notes: original}, compare.Song{Notes: original})

	out := Format(res)
	if !strings.Contains(out, "Common Notes: 25 notes") || !strings.Contains(out, "...\n") {
		t.Errorf("Format() should truncate common notes:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	res := sampleResult(t)
	want := fmt.Sprintf("original.json vs mine.json: %s%% (%s), 2/3 matched", num(res.OverallScore.Overall), res.OverallScore.Grade)
	if got := Summary(res); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100.0"},
		{0, "0.0"},
		{0.3, "0.3"},
		{88.25, "88.25"},
	}
	for _, tt := range tests {
		if got := num(tt.in); got != tt.want {
			t.Errorf("num(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
