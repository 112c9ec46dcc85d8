package midi

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/james-see/notecompare/pkg/notes"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

const defaultMicrosecondsPerBeat = 500000 // 120 BPM

// Info describes a parsed MIDI file.
type Info struct {
	Duration             float64 `json:"duration"`
	Tempo                float64 `json:"tempo"`
	TotalNotes           int     `json:"total_notes"`
	Tracks               int     `json:"n_tracks"`
	TimeSignatureChanges int     `json:"time_signature_changes"`
	KeySignatureChanges  int     `json:"key_signature_changes"`
}

// Sequence is the note content of a MIDI file. Events hold one entry per
// note-on; Segments pair note-ons with their note-offs.
type Sequence struct {
	Events   []notes.NoteEvent   `json:"notes"`
	Segments []notes.NoteSegment `json:"segments"`
	Info     Info                `json:"info"`
}

// ParseFile reads a MIDI file and extracts its notes
func (c *Converter) ParseFile(filename string) (*Sequence, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return c.Parse(data)
}

type tempoChange struct {
	tick                int64
	microsecondsPerBeat uint32
}

type rawNote struct {
	tick int64
	key  uint8
	on   bool
}

// Parse parses MIDI data and extracts its notes across all tracks.
func (c *Converter) Parse(data []byte) (*Sequence, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	ticksPerQuarter := uint16(DefaultTicksPerQuarter)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = mt.Resolution()
	}

	seq := &Sequence{Info: Info{Tracks: len(s.Tracks)}}
	var (
		tempos  []tempoChange
		raw     []rawNote
		endTick int64
	)

	for _, track := range s.Tracks {
		var currentTick int64
		for _, ev := range track {
			currentTick += int64(ev.Delta)
			endTick = max(endTick, currentTick)
			msg := ev.Message

			if len(msg) >= 2 && msg[0] == 0xFF {
				switch msg[1] {
				case 0x51: // set tempo FF 51 03 tt tt tt
					if len(msg) >= 6 && msg[2] == 0x03 {
						us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
						if us > 0 {
							tempos = append(tempos, tempoChange{tick: currentTick, microsecondsPerBeat: us})
						}
					}
				case 0x58:
					seq.Info.TimeSignatureChanges++
				case 0x59:
					seq.Info.KeySignatureChanges++
				}
				continue
			}

			// Note On: 0x9n nn vv, Note Off: 0x8n nn vv or Note On with velocity 0
			if len(msg) >= 3 {
				status := msg[0] & 0xF0
				switch {
				case status == 0x90 && msg[2] > 0:
					raw = append(raw, rawNote{tick: currentTick, key: msg[1], on: true})
				case status == 0x80 || status == 0x90:
					raw = append(raw, rawNote{tick: currentTick, key: msg[1]})
				}
			}
		}
	}

	clock := newTempoMap(tempos, ticksPerQuarter)
	seq.Info.Tempo = clock.bpmAt(0)
	seq.Info.Duration = clock.seconds(endTick)

	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].tick != raw[j].tick {
			return raw[i].tick < raw[j].tick
		}
		// Offs first on a shared tick, matching the export order.
		return !raw[i].on && raw[j].on
	})

	open := make(map[uint8][]float64)
	for _, n := range raw {
		t := clock.seconds(n.tick)
		if n.on {
			seq.Events = append(seq.Events, c.event(n.key, t))
			open[n.key] = append(open[n.key], t)
			continue
		}
		starts := open[n.key]
		if len(starts) == 0 {
			continue
		}
		seq.Segments = append(seq.Segments, c.segment(n.key, starts[0], t))
		open[n.key] = starts[1:]
	}

	end := seq.Info.Duration
	for key, starts := range open {
		for _, start := range starts {
			seq.Segments = append(seq.Segments, c.segment(key, start, end))
		}
	}
	sort.SliceStable(seq.Segments, func(i, j int) bool {
		return seq.Segments[i].StartTime < seq.Segments[j].StartTime
	})

	seq.Info.TotalNotes = len(seq.Events)
	c.log.Debug("parsed MIDI",
		zap.Int("tracks", seq.Info.Tracks),
		zap.Int("notes", seq.Info.TotalNotes),
		zap.Float64("duration", seq.Info.Duration))
	return seq, nil
}

func (c *Converter) event(key uint8, t float64) notes.NoteEvent {
	pc, octave := notes.MIDIToNote(int(key))
	return notes.NoteEvent{
		Time:      t,
		Note:      pc,
		Octave:    octave,
		Frequency: c.mapper.MIDIToFrequency(int(key)),
		FullNote:  notes.FullNote(pc, octave),
	}
}

func (c *Converter) segment(key uint8, start, end float64) notes.NoteSegment {
	pc, octave := notes.MIDIToNote(int(key))
	return notes.NoteSegment{
		StartTime:    start,
		EndTime:      end,
		Duration:     end - start,
		Note:         pc,
		Octave:       octave,
		FullNote:     notes.FullNote(pc, octave),
		AvgFrequency: c.mapper.MIDIToFrequency(int(key)),
	}
}

// tempoMap converts absolute ticks to seconds across tempo changes.
type tempoMap struct {
	changes         []tempoChange
	ticksPerQuarter float64
}

func newTempoMap(changes []tempoChange, ticksPerQuarter uint16) *tempoMap {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	if len(changes) == 0 || changes[0].tick > 0 {
		changes = append([]tempoChange{{microsecondsPerBeat: defaultMicrosecondsPerBeat}}, changes...)
	}
	return &tempoMap{changes: changes, ticksPerQuarter: float64(ticksPerQuarter)}
}

func (m *tempoMap) seconds(tick int64) float64 {
	var sec float64
	for i, ch := range m.changes {
		if ch.tick >= tick {
			break
		}
		until := tick
		if i+1 < len(m.changes) && m.changes[i+1].tick < tick {
			until = m.changes[i+1].tick
		}
		sec += float64(until-ch.tick) * float64(ch.microsecondsPerBeat) / (m.ticksPerQuarter * 1e6)
	}
	return sec
}

// bpmAt returns the tempo in effect at tick.
func (m *tempoMap) bpmAt(tick int64) float64 {
	us := m.changes[0].microsecondsPerBeat
	for _, ch := range m.changes {
		if ch.tick > tick {
			break
		}
		us = ch.microsecondsPerBeat
	}
	return 60000000.0 / float64(us)
}
