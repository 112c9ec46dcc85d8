// Package notes converts pitch tracks into musical notes, note segments,
// piano-roll grids and note statistics.
package notes

// NoteNames is the chromatic pitch-class ordering, starting at C.
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is the result of mapping a single frequency.
type Note struct {
	PitchClass string
	Octave     int
	Cents      float64 // deviation from the quantized pitch, in (-50, 50]
	MIDI       int
}

// FullNote returns the octave-qualified name, e.g. "C#4".
func (n Note) FullNote() string {
	return FullNote(n.PitchClass, n.Octave)
}

// NoteEvent is one voiced frame of a pitch track.
type NoteEvent struct {
	Time           float64 `json:"time"`
	Note           string  `json:"note"`
	Octave         int     `json:"octave"`
	Frequency      float64 `json:"frequency"`
	CentsDeviation float64 `json:"cents_deviation"`
	FullNote       string  `json:"full_note"`
}

// NoteSegment is a maximal run of consecutive events with the same note.
type NoteSegment struct {
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Duration     float64 `json:"duration"`
	Note         string  `json:"note"`
	Octave       int     `json:"octave"`
	FullNote     string  `json:"full_note"`
	AvgFrequency float64 `json:"avg_frequency"`
}

// NoteCount pairs a full note with its number of occurrences.
type NoteCount struct {
	Note  string `json:"note"`
	Count int    `json:"count"`
}

// OctaveRange is the lowest and highest octave seen.
type OctaveRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Statistics aggregates a note event list.
type Statistics struct {
	TotalNotes   int            `json:"total_notes"`
	UniqueNotes  int            `json:"unique_notes"`
	MostCommon   []NoteCount    `json:"most_common"`
	Distribution map[string]int `json:"note_distribution"`
	OctaveRange  *OctaveRange   `json:"octave_range"`
	AvgFrequency float64        `json:"avg_frequency"`
}

// PianoRoll is a binary pitch × time occupancy grid.
type PianoRoll struct {
	Resolution float64   `json:"time_resolution"`
	Times      []float64 `json:"times"`
	Notes      []int     `json:"notes"` // MIDI number of each row
	Matrix     [][]int   `json:"matrix"`
}

// KeyEstimate is a coarse guess at the tonal centre of a piece.
type KeyEstimate struct {
	Key          string         `json:"detected_key,omitempty"`
	Confidence   float64        `json:"confidence"`
	Distribution map[string]int `json:"note_distribution,omitempty"`
}
