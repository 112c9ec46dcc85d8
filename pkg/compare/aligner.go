package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/james-see/notecompare/pkg/notes"
)

// Similarity weights for the distribution comparison.
const (
	jaccardWeight   = 0.4
	frequencyWeight = 0.6
)

// ValidateNotes checks that every event carries a known pitch class and a
// full note equal to its pitch class and octave.
func ValidateNotes(side string, events []notes.NoteEvent) error {
	for i, ev := range events {
		if ev.FullNote == "" {
			return fmt.Errorf("%w: %s note %d has no full_note", ErrInvalidNote, side, i)
		}
		pc, octave, err := notes.ParseFullNote(ev.FullNote)
		if err != nil {
			return fmt.Errorf("%w: %s note %d: %v", ErrInvalidNote, side, i, err)
		}
		if pc != ev.Note || octave != ev.Octave || notes.FullNote(pc, octave) != ev.FullNote {
			return fmt.Errorf("%w: %s note %d full_note %q does not match %s%d", ErrInvalidNote, side, i, ev.FullNote, ev.Note, ev.Octave)
		}
		if math.IsNaN(ev.Time) {
			return fmt.Errorf("%w: %s note %d has no time", ErrInvalidNote, side, i)
		}
	}
	return nil
}

func countByNote(events []notes.NoteEvent) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.FullNote]++
	}
	return counts
}

// CompareDistributions compares the multisets of full notes used by two
// songs. Similarity is 40% Jaccard overlap of the note sets plus 60% mean
// agreement of relative frequencies over the common notes, as a percentage.
// It is 0 when either side is empty.
func CompareDistributions(original, comparison []notes.NoteEvent) Distribution {
	countsA := countByNote(original)
	countsB := countByNote(comparison)

	common := []string{}
	onlyA := []string{}
	onlyB := []string{}
	for n := range countsA {
		if _, ok := countsB[n]; ok {
			common = append(common, n)
		} else {
			onlyA = append(onlyA, n)
		}
	}
	for n := range countsB {
		if _, ok := countsA[n]; !ok {
			onlyB = append(onlyB, n)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	totalA, totalB := len(original), len(comparison)
	similarity := 0.0
	if totalA > 0 && totalB > 0 {
		union := len(common) + len(onlyA) + len(onlyB)
		jaccard := float64(len(common)) / float64(union)

		agreement := 0.0
		if len(common) > 0 {
			for _, n := range common {
				relA := float64(countsA[n]) / float64(totalA)
				relB := float64(countsB[n]) / float64(totalB)
				agreement += 1 - math.Abs(relA-relB)
			}
			agreement /= float64(len(common))
		}

		similarity = (jaccard*jaccardWeight + agreement*frequencyWeight) * 100
	}

	return Distribution{
		SimilarityPercentage:   round(similarity, 2),
		TotalNotesOriginal:     totalA,
		TotalNotesComparison:   totalB,
		CommonNotes:            common,
		CommonNotesCount:       len(common),
		NotesOnlyInOriginal:    onlyA,
		NotesOnlyInComparison:  onlyB,
		DistributionOriginal:   countsA,
		DistributionComparison: countsB,
	}
}

// MatchNotes greedily pairs notes of the same full note whose times differ by
// at most tolerance seconds.
//
// Originals are visited in list order. Each takes the closest unmatched
// comparison note; on equal distance the earlier comparison note wins. A
// comparison note is matched at most once. The result is not a globally
// optimal assignment and depends on the order of original.
func MatchNotes(original, comparison []notes.NoteEvent, tolerance float64) Matching {
	pool := make([]int, len(comparison))
	for i := range pool {
		pool[i] = i
	}

	m := Matching{
		Matches:             []MatchRecord{},
		UnmatchedOriginal:   []UnmatchedNote{},
		UnmatchedComparison: []UnmatchedNote{},
	}

	for i, a := range original {
		best := -1
		bestDiff := math.Inf(1)
		for p, j := range pool {
			b := comparison[j]
			if b.FullNote != a.FullNote {
				continue
			}
			diff := math.Abs(a.Time - b.Time)
			if diff <= tolerance && diff < bestDiff {
				best, bestDiff = p, diff
			}
		}

		if best < 0 {
			m.UnmatchedOriginal = append(m.UnmatchedOriginal, UnmatchedNote{
				Note:      a.FullNote,
				Time:      a.Time,
				Frequency: a.Frequency,
				Index:     i,
			})
			continue
		}

		j := pool[best]
		b := comparison[j]
		m.Matches = append(m.Matches, MatchRecord{
			Note:                a.FullNote,
			OriginalTime:        a.Time,
			ComparisonTime:      b.Time,
			TimeDifference:      round(bestDiff, 3),
			OriginalFrequency:   a.Frequency,
			ComparisonFrequency: b.Frequency,
			FrequencyDifference: round(math.Abs(a.Frequency-b.Frequency), 2),
			OriginalIndex:       i,
			ComparisonIndex:     j,
		})
		pool = append(pool[:best], pool[best+1:]...)
	}

	for _, j := range pool {
		b := comparison[j]
		m.UnmatchedComparison = append(m.UnmatchedComparison, UnmatchedNote{
			Note:      b.FullNote,
			Time:      b.Time,
			Frequency: b.Frequency,
			Index:     j,
		})
	}

	m.MatchCount = len(m.Matches)
	m.UnmatchedOriginalCount = len(m.UnmatchedOriginal)
	m.UnmatchedComparisonCount = len(m.UnmatchedComparison)
	if len(original) > 0 {
		m.MatchPercentage = round(float64(m.MatchCount)/float64(len(original))*100, 2)
	}
	return m
}

// round rounds half away from zero to the given number of decimals.
func round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
