package notes

import "fmt"

// Scale interval patterns in half steps from the root.
var scaleIntervals = map[string][]int{
	"major":     {0, 2, 4, 5, 7, 9, 11},
	"minor":     {0, 2, 3, 5, 7, 8, 10},
	"chromatic": {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// ScaleNotes lists the pitch classes of a major, minor or chromatic scale.
func ScaleNotes(root, kind string) ([]string, error) {
	rootIdx, err := PitchClassIndex(root)
	if err != nil {
		return nil, err
	}
	intervals, ok := scaleIntervals[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScale, kind)
	}

	out := make([]string, len(intervals))
	for i, iv := range intervals {
		out[i] = NoteNames[(rootIdx+iv)%12]
	}
	return out, nil
}

// keyConfidence is fixed: the most common pitch class is only a heuristic tonic.
const keyConfidence = 0.5

// EstimateKey takes the most common pitch class (ties by first occurrence) as
// the tonic. An empty event list yields an empty key with zero confidence.
func EstimateKey(events []NoteEvent) *KeyEstimate {
	if len(events) == 0 {
		return &KeyEstimate{}
	}

	index := make(map[string]int)
	var counts []NoteCount
	for _, ev := range events {
		i, ok := index[ev.Note]
		if !ok {
			i = len(counts)
			index[ev.Note] = i
			counts = append(counts, NoteCount{Note: ev.Note})
		}
		counts[i].Count++
	}

	dist := make(map[string]int, len(counts))
	for _, c := range counts {
		dist[c.Note] = c.Count
	}
	return &KeyEstimate{
		Key:          MostCommon(counts, 1)[0].Note,
		Confidence:   keyConfidence,
		Distribution: dist,
	}
}
