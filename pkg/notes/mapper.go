package notes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultA4 is the concert pitch reference in Hz.
const DefaultA4 = 440.0

// Mapper quantizes frequencies to equal-tempered notes relative to an A4 reference.
type Mapper struct {
	a4 float64
}

// NewMapper creates a Mapper. A non-positive reference falls back to DefaultA4.
func NewMapper(a4 float64) *Mapper {
	if a4 <= 0 || math.IsNaN(a4) || math.IsInf(a4, 0) {
		a4 = DefaultA4
	}
	return &Mapper{a4: a4}
}

// A4 returns the reference frequency.
func (m *Mapper) A4() float64 {
	return m.a4
}

// FrequencyToNote maps a frequency to the nearest note. The boolean is false
// for unvoiced input (zero, negative, NaN or infinite frequency).
//
// Half-steps are rounded to the nearest integer with exact ties going to the
// lower semitone, so the cents deviation always lies in (-50, 50].
func (m *Mapper) FrequencyToNote(freq float64) (Note, bool) {
	if !(freq > 0) || math.IsInf(freq, 0) {
		return Note{}, false
	}

	halfSteps := 12 * (math.Log2(freq) - math.Log2(m.a4))
	if math.IsNaN(halfSteps) || math.IsInf(halfSteps, 0) {
		return Note{}, false
	}
	nearest := nearestHalfStep(halfSteps)
	cents := 100 * (halfSteps - nearest)

	midi := 69 + int(nearest)
	pc, octave := splitMIDI(midi)

	return Note{
		PitchClass: pc,
		Octave:     octave,
		Cents:      cents,
		MIDI:       midi,
	}, true
}

// nearestHalfStep rounds to the nearest integer; exact ties go down.
func nearestHalfStep(h float64) float64 {
	return math.Ceil(h - 0.5)
}

// NoteToFrequency returns the equal-tempered frequency of a note.
func (m *Mapper) NoteToFrequency(pitchClass string, octave int) (float64, error) {
	midi, err := MIDINumber(pitchClass, octave)
	if err != nil {
		return 0, err
	}
	return m.MIDIToFrequency(midi), nil
}

// MIDIToFrequency returns the frequency of a MIDI note number.
func (m *Mapper) MIDIToFrequency(midi int) float64 {
	return m.a4 * math.Pow(2, float64(midi-69)/12)
}

// PitchClassIndex returns the position of pitchClass in NoteNames.
func PitchClassIndex(pitchClass string) (int, error) {
	for i, name := range NoteNames {
		if name == pitchClass {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownPitchClass, pitchClass)
}

// MIDINumber returns the MIDI note number of a pitch class and octave.
func MIDINumber(pitchClass string, octave int) (int, error) {
	idx, err := PitchClassIndex(pitchClass)
	if err != nil {
		return 0, err
	}
	return (octave+1)*12 + idx, nil
}

// MIDIToNote returns the pitch class and octave of a MIDI note number.
func MIDIToNote(midi int) (string, int) {
	return splitMIDI(midi)
}

// FullNote joins a pitch class and octave, e.g. ("C#", 4) -> "C#4".
func FullNote(pitchClass string, octave int) string {
	return pitchClass + strconv.Itoa(octave)
}

// ParseFullNote splits a full note such as "C#4" or "B-1".
func ParseFullNote(full string) (string, int, error) {
	i := strings.IndexFunc(full, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownPitchClass, full)
	}
	pc := full[:i]
	if _, err := PitchClassIndex(pc); err != nil {
		return "", 0, err
	}
	octave, err := strconv.Atoi(full[i:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid octave in %q: %w", full, err)
	}
	return pc, octave, nil
}

// splitMIDI uses floored division so negative note numbers map to octave -2 and below.
func splitMIDI(midi int) (string, int) {
	idx := ((midi % 12) + 12) % 12
	octave := floorDiv(midi, 12) - 1
	return NoteNames[idx], octave
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
